// 包 geocode：地理编码协作方（Nominatim 正/反向查询、文本→格子缓存、GeoIP 定位）
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"geonear/internal/geoerr"
	"geonear/internal/logger"
	"geonear/internal/metrics"
	"geonear/internal/utils"
)

const (
	DefaultSearchEndpoint  = "https://nominatim.openstreetmap.org/search"
	DefaultReverseEndpoint = "https://nominatim.openstreetmap.org/reverse"
	DefaultUserAgent       = "geonear/1.0"
)

// Geocoder：自由文本 → 坐标；无结果时返回 NotFound
type Geocoder interface {
	Geocode(ctx context.Context, text string) (lat, lon float64, err error)
}

// ReverseGeocoder：坐标 → 地址描述
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Nominatim：OpenStreetMap Nominatim REST 客户端
type Nominatim struct {
	SearchEndpoint  string
	ReverseEndpoint string
	Email           string
	UserAgent       string
	Client          *http.Client
}

// NewNominatimFromEnv：NOMINATIM_SEARCH_ENDPOINT / NOMINATIM_REVERSE_ENDPOINT / NOMINATIM_MAIL
func NewNominatimFromEnv() *Nominatim {
	return &Nominatim{
		SearchEndpoint:  utils.EnvString("NOMINATIM_SEARCH_ENDPOINT", DefaultSearchEndpoint),
		ReverseEndpoint: utils.EnvString("NOMINATIM_REVERSE_ENDPOINT", DefaultReverseEndpoint),
		Email:           utils.EnvString("NOMINATIM_MAIL", ""),
		UserAgent:       DefaultUserAgent,
		Client:          &http.Client{Timeout: 5 * time.Second},
	}
}

type searchHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (n *Nominatim) do(ctx context.Context, kind, endpoint string, q url.Values, out any) error {
	q.Set("format", "json")
	if n.Email != "" {
		q.Set("email", n.Email)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	ua := n.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	t0 := time.Now()
	defer func() {
		metrics.GeocodeDurationMs.WithLabelValues(kind).Observe(float64(time.Since(t0).Milliseconds()))
	}()
	resp, err := client.Do(req)
	if err != nil {
		logger.L().Error("nominatim_http_error", "kind", kind, "err", err)
		metrics.GeocodeRequestsTotal.WithLabelValues(kind, "error").Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return geoerr.Unavailable(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.L().Error("nominatim_bad_status", "kind", kind, "status", resp.StatusCode)
		metrics.GeocodeRequestsTotal.WithLabelValues(kind, "error").Inc()
		return geoerr.Unavailable(fmt.Errorf("nominatim %s: status %d", kind, resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.L().Error("nominatim_decode_error", "kind", kind, "err", err)
		metrics.GeocodeRequestsTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("nominatim %s: decode: %w", kind, err)
	}
	return nil
}

// 文档注释：文本 → 坐标
// 约束：只取第一个结果（limit=1）；空文本为 InvalidArgument，无结果为 NotFound。
func (n *Nominatim) Geocode(ctx context.Context, text string) (float64, float64, error) {
	if text == "" {
		return 0, 0, geoerr.Invalid("empty geocode query")
	}
	q := url.Values{}
	q.Set("q", text)
	q.Set("limit", "1")
	var hits []searchHit
	if err := n.do(ctx, "search", n.SearchEndpoint, q, &hits); err != nil {
		return 0, 0, err
	}
	if len(hits) == 0 {
		metrics.GeocodeRequestsTotal.WithLabelValues("search", "not_found").Inc()
		logger.L().Debug("nominatim_no_result", "q", text)
		return 0, 0, geoerr.NotFound("no geocode result for %q", text)
	}
	lat, err1 := strconv.ParseFloat(hits[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(hits[0].Lon, 64)
	if err1 != nil || err2 != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("search", "error").Inc()
		return 0, 0, fmt.Errorf("nominatim search: bad coordinates %q,%q", hits[0].Lat, hits[0].Lon)
	}
	metrics.GeocodeRequestsTotal.WithLabelValues("search", "ok").Inc()
	logger.L().Debug("nominatim_resp", "q", text, "lat", lat, "lon", lon, "name", hits[0].DisplayName)
	return lat, lon, nil
}

// Reverse：坐标 → 地址描述；Nominatim 报告无法反查时返回 NotFound
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	var r reverseResponse
	if err := n.do(ctx, "reverse", n.ReverseEndpoint, q, &r); err != nil {
		return "", err
	}
	if r.Error != "" || r.DisplayName == "" {
		metrics.GeocodeRequestsTotal.WithLabelValues("reverse", "not_found").Inc()
		return "", geoerr.NotFound("no address at %v,%v", lat, lon)
	}
	metrics.GeocodeRequestsTotal.WithLabelValues("reverse", "ok").Inc()
	return r.DisplayName, nil
}
