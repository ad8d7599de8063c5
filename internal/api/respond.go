package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"geonear/internal/geoerr"
	"geonear/internal/logger"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func kind(err error) string {
	for _, k := range []error{geoerr.ErrInvalidArgument, geoerr.ErrNotFound, geoerr.ErrBackendUnavailable, geoerr.ErrMalformedShape} {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return ""
}

// 文档注释：错误响应
// 约束：状态码由 geoerr.HTTPStatus 决定；5xx 记录为 error 日志，其余为 debug。
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := geoerr.HTTPStatus(err)
	if status >= 500 {
		logger.L().Error("api_error", "path", r.URL.Path, "status", status, "err", err)
	} else {
		logger.L().Debug("api_reject", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind(err)})
}
