// 包 api：HTTP 路由，独立 ServeMux 挂载到 API_BASE 前缀下
package api

import (
	"net/http"
	"strconv"
	"time"

	"geonear/internal/globe"
	"geonear/internal/metrics"
	"geonear/internal/render"
)

type handlers struct {
	g  *globe.Globe
	ro render.Options
}

// 文档注释：注册路由
// 约束：定位参数（lat/lon、q、cell、pin、ip）只能给一种；错误按类别映射状态码。
func BuildRoutes(g *globe.Globe, ro render.Options) *http.ServeMux {
	h := &handlers{g: g, ro: ro}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /pins", h.countPins)
	mux.HandleFunc("POST /pins", h.createPin)
	mux.HandleFunc("GET /pins/{id}", h.getPin)
	mux.HandleFunc("PUT /pins/{id}", h.putPin)
	mux.HandleFunc("DELETE /pins/{id}", h.deletePin)
	mux.HandleFunc("GET /pins/{id}/address", h.pinAddress)
	mux.HandleFunc("GET /near", h.near)
	mux.HandleFunc("GET /near/geojson", h.nearGeoJSON)
	mux.HandleFunc("GET /debug/map", h.debugMap)
	mux.HandleFunc("GET /healthz", h.health)
	return mux
}

// Handler：带请求指标的路由
func Handler(g *globe.Globe, ro render.Options) http.Handler {
	return instrument(BuildRoutes(g, ro))
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.g.Index().Store().Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "err": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type recorder struct {
	http.ResponseWriter
	status int
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument：按路由模式统计请求数与耗时；ServeMux 在同一请求上写入匹配到的模式
func instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		mux.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status/100)+"xx").Inc()
		metrics.HTTPDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}
