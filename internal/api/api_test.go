package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geonear/internal/area"
	"geonear/internal/geocell"
	"geonear/internal/geoerr"
	"geonear/internal/globe"
	"geonear/internal/pinindex"
	"geonear/internal/render"
	"geonear/internal/store"
)

type stubGeocoder struct{}

func (stubGeocoder) Geocode(_ context.Context, text string) (float64, float64, error) {
	if text == "Jutland" {
		return 57.64911, 10.40744, nil
	}
	return 0, 0, geoerr.NotFound("no result for %q", text)
}

func (stubGeocoder) Reverse(_ context.Context, lat, lon float64) (string, error) {
	return "Jutland, Danmark", nil
}

func newTestServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	ix := pinindex.New(store.NewRedis(rdb), pinindex.Options{Namespace: "api"})
	g, err := globe.New(ix, globe.Options{Precision: 8, Geocoder: stubGeocoder{}, Reverse: stubGeocoder{}})
	require.NoError(t, err)
	srv := httptest.NewServer(Handler(g, render.Options{Endpoint: "https://maps.example/static"}))
	t.Cleanup(srv.Close)
	return srv, mr
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestPinLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodPut, srv.URL+"/pins/home", `{"lat":57.64911,"lon":10.40744,"data":{"name":"home"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var v pinView
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, "home", v.Pin)
	assert.Equal(t, geocell.Cell("u4pruydq"), v.Cell)
	assert.JSONEq(t, `{"name":"home"}`, string(v.Data))
	assert.True(t, v.BBox.Contains(v.Lat, v.Lon))

	resp, body = do(t, http.MethodGet, srv.URL+"/pins/home", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"cell":"u4pruydq"`)

	// 移动且保留数据
	resp, body = do(t, http.MethodPut, srv.URL+"/pins/home", `{"cell":"ezs42"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Len(t, v.Cell, 8)
	assert.Equal(t, geocell.Cell("ezs42"), v.Cell[:5])
	assert.JSONEq(t, `{"name":"home"}`, string(v.Data))

	resp, body = do(t, http.MethodGet, srv.URL+"/pins", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"count":1}`, string(body))

	resp, body = do(t, http.MethodGet, srv.URL+"/pins/home/address", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"pin":"home","address":"Jutland, Danmark"}`, string(body))

	resp, _ = do(t, http.MethodDelete, srv.URL+"/pins/home", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, body = do(t, http.MethodDelete, srv.URL+"/pins/home", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `"kind":"not found"`)
	resp, _ = do(t, http.MethodGet, srv.URL+"/pins/home", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreatePinGeneratesID(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := do(t, http.MethodPost, srv.URL+"/pins", `{"q":"Jutland","data":"plain"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var v pinView
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Len(t, v.Pin, 36)
	assert.Equal(t, geocell.Cell("u4pruydq"), v.Cell)
	assert.JSONEq(t, `"plain"`, string(v.Data))
}

func TestBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	cases := []struct {
		name, method, path, body string
		status                   int
	}{
		{"no location", http.MethodPut, "/pins/a", `{}`, http.StatusBadRequest},
		{"two locations", http.MethodPut, "/pins/a", `{"lat":1,"lon":2,"cell":"ezs42"}`, http.StatusBadRequest},
		{"half coordinate", http.MethodPut, "/pins/a", `{"lat":1}`, http.StatusBadRequest},
		{"lat out of range", http.MethodPut, "/pins/a", `{"lat":100,"lon":2}`, http.StatusBadRequest},
		{"unknown field", http.MethodPut, "/pins/a", `{"where":"x"}`, http.StatusBadRequest},
		{"bad ip", http.MethodPut, "/pins/a", `{"ip":"nope"}`, http.StatusBadRequest},
		{"ip not configured", http.MethodPut, "/pins/a", `{"ip":"81.2.69.142"}`, http.StatusBadRequest},
		{"unknown text", http.MethodPut, "/pins/a", `{"q":"Atlantis"}`, http.StatusNotFound},
		{"bad depth", http.MethodGet, "/near?lat=1&lon=2&depth=far", "", http.StatusBadRequest},
		{"huge depth", http.MethodGet, "/near?lat=1&lon=2&depth=100000", "", http.StatusBadRequest},
		{"depth over limit", http.MethodGet, "/near?lat=1&lon=2&depth=33", "", http.StatusBadRequest},
		{"huge depth geojson", http.MethodGet, "/near/geojson?lat=1&lon=2&depth=100000", "", http.StatusBadRequest},
		{"near unknown pin", http.MethodGet, "/near?pin=ghost", "", http.StatusNotFound},
		{"bad maptype", http.MethodGet, "/debug/map?lat=1&lon=2&maptype=blueprint", "", http.StatusBadRequest},
		{"wrong method", http.MethodPatch, "/pins/a", `{}`, http.StatusMethodNotAllowed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, body := do(t, c.method, srv.URL+c.path, c.body)
			assert.Equal(t, c.status, resp.StatusCode, string(body))
		})
	}
}

func TestNear(t *testing.T) {
	srv, _ := newTestServer(t)
	home := geocell.Cell("u4pruydq")
	east, _, err := geocell.Adjacent(home, geocell.East)
	require.NoError(t, err)
	far, err := geocell.Encode(40.4168, -3.7038, 8)
	require.NoError(t, err)

	for pin, cell := range map[string]geocell.Cell{"home": home, "shop": east, "madrid": far} {
		resp, body := do(t, http.MethodPut, srv.URL+"/pins/"+pin, `{"cell":"`+string(cell)+`","data":"`+pin+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}

	resp, body := do(t, http.MethodGet, srv.URL+"/near?pin=home&depth=near", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var nv nearView
	require.NoError(t, json.Unmarshal(body, &nv))
	assert.Equal(t, home, nv.Center)
	assert.Equal(t, 1, nv.Reach)
	assert.Len(t, nv.Cells, 9)
	assert.EqualValues(t, 2, nv.Size)
	require.Len(t, nv.Members, 2)
	assert.Equal(t, "home", nv.Members[0].Pin)
	assert.Equal(t, "home", nv.Members[0].Data)
	assert.Equal(t, "shop", nv.Members[1].Pin)

	resp, body = do(t, http.MethodGet, srv.URL+"/near?lat=57.64911&lon=10.40744&depth=0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &nv))
	assert.Len(t, nv.Members, 1)

	resp, body = do(t, http.MethodGet, srv.URL+"/near/geojson?q=Jutland", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/geo+json", resp.Header.Get("content-type"))
	fc, err := geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "MultiPolygon", fc.Features[0].Geometry.GeoJSONType())
	assert.Equal(t, "area", fc.Features[0].Properties["kind"])
	assert.Equal(t, "home", fc.Features[1].Properties["pin"])

	resp, body = do(t, http.MethodGet, srv.URL+"/debug/map?pin=home&maptype=terrain", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var m render.Map
	require.NoError(t, json.Unmarshal(body, &m))
	assert.True(t, strings.HasPrefix(m.URL, "https://maps.example/static?"))
	assert.Contains(t, m.URL, "maptype=terrain")
	require.Len(t, m.Legend, 3)
	assert.Equal(t, "pin home", m.Legend[1].Description)
}

func TestHealth(t *testing.T) {
	srv, mr := newTestServer(t)
	resp, _ := do(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	mr.Close()
	resp, _ = do(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientIP(r))

	r.Header.Set("forwarded", `for="198.51.100.3";proto=https`)
	assert.Equal(t, "198.51.100.3", clientIP(r))

	r.Header.Set("x-forwarded-for", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}

// flakyPins：pins 哈希的读取总是报告连接故障
type flakyPins struct {
	store.Store
	pins string
}

func (f flakyPins) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if key == f.pins {
		return "", false, store.ErrTransient
	}
	return f.Store.HGet(ctx, key, field)
}

func TestLocateSkipsOnlyMissingPins(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	st := store.NewRedis(rdb)
	ctx := context.Background()

	ix := pinindex.New(st, pinindex.Options{Namespace: "loc"})
	require.NoError(t, ix.Place(ctx, "home", "u4pruydq", nil))
	// 集合中残留、指针已删除的 pin
	_, err := mr.SetAdd(ix.Keys().Cell("u4pruydq"), "gone")
	require.NoError(t, err)

	a, err := area.Around(ix, "u4pruydq", 0)
	require.NoError(t, err)
	got, err := locate(ctx, a)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "home", got[0].pin)

	broken := pinindex.New(flakyPins{Store: st, pins: ix.Keys().Pins}, pinindex.Options{
		Namespace: "loc", MaxRetries: 2, MinBackoff: time.Millisecond, MaxBackoff: time.Millisecond,
	})
	b, err := area.Around(broken, "u4pruydq", 0)
	require.NoError(t, err)
	_, err = locate(ctx, b)
	assert.ErrorIs(t, err, geoerr.ErrBackendUnavailable)
}
