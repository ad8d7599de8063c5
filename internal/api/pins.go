package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"geonear/internal/geocell"
	"geonear/internal/geoerr"
)

type placeBody struct {
	locationInput
	Data json.RawMessage `json:"data,omitempty"`
}

type pinView struct {
	Pin  string          `json:"pin"`
	Cell geocell.Cell    `json:"cell"`
	Lat  float64         `json:"lat"`
	Lon  float64         `json:"lon"`
	BBox geocell.Box     `json:"bbox"`
	Data json.RawMessage `json:"data,omitempty"`
}

// dataJSON：合法 JSON 原样返回，否则作为字符串编码
func dataJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return b
	}
	s, _ := json.Marshal(string(b))
	return s
}

func (h *handlers) view(ctx context.Context, pin string) (pinView, error) {
	ix := h.g.Index()
	cell, err := ix.Lookup(ctx, pin)
	if err != nil {
		return pinView{}, err
	}
	b, err := geocell.BBox(cell)
	if err != nil {
		return pinView{}, err
	}
	data, _, err := ix.Data(ctx, pin)
	if err != nil {
		return pinView{}, err
	}
	lat, lon := b.Center()
	return pinView{Pin: pin, Cell: cell, Lat: lat, Lon: lon, BBox: b, Data: dataJSON(data)}, nil
}

func (h *handlers) place(w http.ResponseWriter, r *http.Request, pin string, status int) {
	var body placeBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, geoerr.Invalid("bad body: %v", err))
		return
	}
	loc, err := body.spec(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var data []byte
	if len(body.Data) > 0 && string(body.Data) != "null" {
		data = body.Data
	}
	if _, err := h.g.Pin(r.Context(), pin, loc, data); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.view(r.Context(), pin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func (h *handlers) putPin(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, r.PathValue("id"), http.StatusOK)
}

// createPin：生成随机 pin id 后放置
func (h *handlers) createPin(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, uuid.NewString(), http.StatusCreated)
}

func (h *handlers) getPin(w http.ResponseWriter, r *http.Request) {
	v, err := h.view(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handlers) deletePin(w http.ResponseWriter, r *http.Request) {
	if err := h.g.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) countPins(w http.ResponseWriter, r *http.Request) {
	n, err := h.g.Index().Count(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (h *handlers) pinAddress(w http.ResponseWriter, r *http.Request) {
	pin := r.PathValue("id")
	addr, err := h.g.Describe(r.Context(), pin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pin": pin, "address": addr})
}
