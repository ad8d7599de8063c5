package api

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"geonear/internal/geocell"
	"geonear/internal/geoerr"
	"geonear/internal/globe"
)

// locationInput：请求中的定位字段，只能设置其中一种
type locationInput struct {
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
	Q    string   `json:"q,omitempty"`
	Cell string   `json:"cell,omitempty"`
	Pin  string   `json:"pin,omitempty"`
	IP   string   `json:"ip,omitempty"`
}

func locationFromQuery(v url.Values) (locationInput, error) {
	var in locationInput
	for _, k := range []string{"lat", "lon"} {
		s := v.Get(k)
		if s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return in, geoerr.Invalid("bad %s %q", k, s)
		}
		if k == "lat" {
			in.Lat = &f
		} else {
			in.Lon = &f
		}
	}
	in.Q = v.Get("q")
	in.Cell = v.Get("cell")
	in.Pin = v.Get("pin")
	in.IP = v.Get("ip")
	return in, nil
}

// 文档注释：把请求字段转换为定位形式
// 约束：恰好设置一种；lat/lon 必须成对出现；ip=me 表示使用访问者 IP。
func (in locationInput) spec(r *http.Request) (globe.LocationSpec, error) {
	var specs []globe.LocationSpec
	switch {
	case in.Lat != nil && in.Lon != nil:
		specs = append(specs, globe.Coordinates{Lat: *in.Lat, Lon: *in.Lon})
	case in.Lat != nil || in.Lon != nil:
		return nil, geoerr.Invalid("lat and lon must be given together")
	}
	if in.Q != "" {
		specs = append(specs, globe.Text{Query: in.Q})
	}
	if in.Cell != "" {
		specs = append(specs, globe.CellRef{Cell: geocell.Cell(in.Cell)})
	}
	if in.Pin != "" {
		specs = append(specs, globe.SameAsPin{PinID: in.Pin})
	}
	if in.IP != "" {
		raw := in.IP
		if raw == "me" {
			raw = clientIP(r)
		}
		ip := net.ParseIP(raw)
		if ip == nil {
			return nil, geoerr.Invalid("bad ip %q", raw)
		}
		specs = append(specs, globe.IPAddress{IP: ip})
	}
	switch len(specs) {
	case 0:
		return nil, geoerr.Invalid("missing location: give lat/lon, q, cell, pin or ip")
	case 1:
		return specs[0], nil
	}
	return nil, geoerr.Invalid("ambiguous location: %d kinds given", len(specs))
}

// 文档注释：访问者 IP
// 约束：依次取常见反向代理头，最后回退到 RemoteAddr；头部可被伪造，需由网关过滤。
func clientIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	for _, k := range []string{"cf-connecting-ip", "x-real-ip", "x-client-ip"} {
		if x := h.Get(k); x != "" {
			return x
		}
	}
	if x := h.Get("forwarded"); x != "" {
		if i := strings.Index(strings.ToLower(x), "for="); i >= 0 {
			y := strings.Trim(x[i+4:], "\" ")
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			return strings.Trim(y, "\"[]")
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
