package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg := LoadServerConfig("FORGE_TEST_SERVER_UNSET")

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.False(t, cfg.Debug)
}

func TestLoadCacheConfigDefaultsToUnbounded(t *testing.T) {
	cfg := LoadCacheConfig("FORGE_TEST_CACHE_UNSET")

	assert.Equal(t, 0, cfg.TargetMaxEntries)
	assert.Equal(t, int64(0), cfg.TargetMaxSize)
	assert.Equal(t, time.Duration(0), cfg.TargetMaxAge)
	assert.Equal(t, cfg.TargetParams(), cfg.ActionParams())
}

func TestLoadCacheConfigReadsEnv(t *testing.T) {
	prefix := "FORGE_TEST_CACHE_SET"
	require.NoError(t, os.Setenv(prefix+"_TARGET_CACHE_MAX_ENTRIES", "500"))
	require.NoError(t, os.Setenv(prefix+"_TARGET_CACHE_MAX_SIZE_BYTES", "1048576"))
	require.NoError(t, os.Setenv(prefix+"_ACTION_CACHE_MAX_AGE", "1h"))
	defer os.Unsetenv(prefix + "_TARGET_CACHE_MAX_ENTRIES")
	defer os.Unsetenv(prefix + "_TARGET_CACHE_MAX_SIZE_BYTES")
	defer os.Unsetenv(prefix + "_ACTION_CACHE_MAX_AGE")

	cfg := LoadCacheConfig(prefix)

	assert.Equal(t, 500, cfg.TargetMaxEntries)
	assert.Equal(t, int64(1048576), cfg.TargetMaxSize)
	assert.Equal(t, time.Hour, cfg.ActionMaxAge)

	params := cfg.TargetParams()
	assert.Equal(t, 500, params.MaxEntries)
	assert.Equal(t, int64(1048576), params.MaxSize)
}

func TestEnvConfigGetInt64FallsBackOnInvalidValue(t *testing.T) {
	key := "FORGE_TEST_INT64"
	require.NoError(t, os.Setenv(key, "not-a-number"))
	defer os.Unsetenv(key)

	env := NewEnvConfig("")
	assert.Equal(t, int64(42), env.GetInt64("FORGE_TEST_INT64", 42))
}
