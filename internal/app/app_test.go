package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geonear/internal/globe"
)

func TestFromEnv(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", mr.Port())
	t.Setenv("GEONEAR_NAMESPACE", "t")
	t.Setenv("GEONEAR_PRECISION", "6")
	t.Setenv("GEONEAR_MAX_REACH", "3")
	t.Setenv("GEOIP_DB_PATH", "")

	a, err := FromEnv(context.Background(), nil)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, 6, a.Globe.Precision())
	assert.Equal(t, "t", a.Index.Namespace())
	assert.Equal(t, globe.Reach(3), a.Globe.MaxReach())

	c, err := a.Globe.Pin(context.Background(), "p", globe.Coordinates{Lat: 57.64911, Lon: 10.40744}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, "u4pruy", c)
	assert.True(t, mr.Exists("globe:t:pins"))
}

func TestFromEnvBadPrecision(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", mr.Port())
	t.Setenv("GEONEAR_PRECISION", "40")
	t.Setenv("GEONEAR_MAX_REACH", "")
	_, err := FromEnv(context.Background(), nil)
	assert.Error(t, err)
}

func TestFromEnvRedisDown(t *testing.T) {
	t.Setenv("REDIS_HOST", "127.0.0.1")
	t.Setenv("REDIS_PORT", "1")
	_, err := FromEnv(context.Background(), nil)
	assert.Error(t, err)
}
