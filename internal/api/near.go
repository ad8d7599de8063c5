package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geonear/internal/area"
	"geonear/internal/geocell"
	"geonear/internal/geoerr"
	"geonear/internal/globe"
	"geonear/internal/render"
)

type memberView struct {
	Pin  string       `json:"pin"`
	Cell geocell.Cell `json:"cell,omitempty"`
	Data any          `json:"data,omitempty"`
}

type nearView struct {
	Center  geocell.Cell   `json:"center"`
	Reach   int            `json:"reach"`
	Cells   []geocell.Cell `json:"cells"`
	Size    int64          `json:"size"`
	Members []memberView   `json:"members"`
}

// nearArea：解析 query 中的定位与 depth，返回中心格子与区域
func (h *handlers) nearArea(r *http.Request) (geocell.Cell, globe.Reach, area.Area, error) {
	q := r.URL.Query()
	in, err := locationFromQuery(q)
	if err != nil {
		return "", 0, area.Area{}, err
	}
	loc, err := in.spec(r)
	if err != nil {
		return "", 0, area.Area{}, err
	}
	reach, err := globe.ParseReach(q.Get("depth"))
	if err != nil {
		return "", 0, area.Area{}, err
	}
	center, err := h.g.Resolve(r.Context(), loc)
	if err != nil {
		return "", 0, area.Area{}, err
	}
	a, err := h.g.Near(r.Context(), globe.CellRef{Cell: center}, reach)
	return center, reach, a, err
}

func (h *handlers) near(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	center, reach, a, err := h.nearArea(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	members, err := a.Members(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := a.Size(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := h.g.Index().GetData(ctx, members)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := nearView{Center: center, Reach: int(reach), Cells: a.Cells(), Size: size, Members: make([]memberView, 0, len(members))}
	for _, m := range members {
		mv := memberView{Pin: m}
		if d, ok := data[m]; ok {
			mv.Data = dataJSON(d)
		}
		out.Members = append(out.Members, mv)
	}
	writeJSON(w, http.StatusOK, out)
}

type located struct {
	pin  string
	cell geocell.Cell
	box  geocell.Box
}

// locate：区域成员及其格子；查询期间被删除的 pin 跳过
func locate(ctx context.Context, a area.Area) ([]located, error) {
	members, err := a.Members(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]located, 0, len(members))
	for _, m := range members {
		c, err := a.Index().Lookup(ctx, m)
		if errors.Is(err, geoerr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		b, err := geocell.BBox(c)
		if err != nil {
			return nil, err
		}
		out = append(out, located{pin: m, cell: c, box: b})
	}
	return out, nil
}

func (h *handlers) nearGeoJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	center, reach, a, err := h.nearArea(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	mp, err := a.MultiPolygon()
	if err != nil {
		writeError(w, r, err)
		return
	}
	pins, err := locate(ctx, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(mp)
	f.Properties["kind"] = "area"
	f.Properties["center"] = string(center)
	f.Properties["reach"] = int(reach)
	f.Properties["cells"] = a.Len()
	fc.Append(f)
	for _, p := range pins {
		lat, lon := p.box.Center()
		pf := geojson.NewFeature(orb.Point{lon, lat})
		pf.Properties["kind"] = "pin"
		pf.Properties["pin"] = p.pin
		pf.Properties["cell"] = string(p.cell)
		fc.Append(pf)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("content-type", "application/geo+json")
	w.Header().Set("cache-control", "no-store")
	_, _ = w.Write(b)
}

// debugMap：区域填充 + 区域内每个 pin 的格子轮廓
func (h *handlers) debugMap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	center, reach, a, err := h.nearArea(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rings, err := a.Polygons()
	if err != nil {
		writeError(w, r, err)
		return
	}
	pins, err := locate(ctx, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := []render.Item{render.AreaItem(fmt.Sprintf("%s around %s", reach, center), rings)}
	for _, p := range pins {
		items = append(items, render.CellItem("pin "+p.pin, p.box))
	}
	opt := h.ro
	if mt := r.URL.Query().Get("maptype"); mt != "" {
		opt.MapType = mt
	}
	m, err := render.Build(opt, items...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
