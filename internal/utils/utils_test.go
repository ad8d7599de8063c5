package utils

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "certs", "server.key")

	require.NoError(t, EnsureSelfSignedCert(cert, key, "geonear.test"))
	pair, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	require.NotNil(t, pair.Leaf)
	assert.Contains(t, pair.Leaf.DNSNames, "geonear.test")

	st, err := os.Stat(key)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	before, err := os.ReadFile(cert)
	require.NoError(t, err)
	require.NoError(t, EnsureSelfSignedCert(cert, key, "other"))
	after, err := os.ReadFile(cert)
	require.NoError(t, err)
	assert.Equal(t, before, after, "existing pair is kept")
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("GEONEAR_T_STR", "x")
	t.Setenv("GEONEAR_T_INT", "12")
	t.Setenv("GEONEAR_T_BAD", "twelve")
	t.Setenv("GEONEAR_T_BOOL", "true")
	assert.Equal(t, "x", EnvString("GEONEAR_T_STR", "d"))
	assert.Equal(t, "d", EnvString("GEONEAR_T_MISSING", "d"))
	assert.Equal(t, 12, EnvInt("GEONEAR_T_INT", 1))
	assert.Equal(t, 1, EnvInt("GEONEAR_T_BAD", 1))
	assert.True(t, EnvBool("GEONEAR_T_BOOL", false))
	assert.False(t, EnvBool("GEONEAR_T_BAD", false))
}

func TestOpenRedisFromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "10.1.1.1")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "-3")
	rdb := OpenRedisFromEnv()
	defer rdb.Close()
	assert.Equal(t, "10.1.1.1:6380", rdb.Options().Addr)
	assert.Equal(t, 0, rdb.Options().DB)
}
