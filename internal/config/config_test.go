package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermandad.org/internal/api"
	"hermandad.org/internal/session"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HERMANDAD_ADDR", "HERMANDAD_API_URL", "HERMANDAD_SESSION_STORE", "HERMANDAD_API_TIMEOUT", "REDIS_HOST", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, api.DefaultBaseURL, cfg.APIBaseURL)
	assert.Equal(t, api.DefaultTimeout, cfg.APITimeout)
	assert.Equal(t, StoreMemory, cfg.Session.Store)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.LowStock)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HERMANDAD_API_TIMEOUT", "5s")
	t.Setenv("HERMANDAD_SESSION_STORE", "FILE")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("HERMANDAD_LOW_STOCK", "not-a-number")
	t.Setenv("HERMANDAD_SECURE_COOKIES", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.APITimeout)
	assert.Equal(t, StoreFile, cfg.Session.Store)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.LowStock)
	assert.True(t, cfg.SecureCookies)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		store string
		dsn   string
		ok    bool
	}{
		{"memory", StoreMemory, "", true},
		{"postgres without dsn", StorePostgres, "", false},
		{"postgres", StorePostgres, "postgres://localhost/hermandad", true},
		{"unknown", "etcd", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{APITimeout: time.Second, RateLimitBurst: 1, RateLimitPerSecond: 1, Session: SessionConfig{Store: tc.store, PGDSN: tc.dsn}}
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalid))
			}
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.env")
	require.NoError(t, os.WriteFile(path, []byte("HERMANDAD_TEST_ONLY=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("HERMANDAD_TEST_ONLY") })

	require.NoError(t, LoadEnvFiles(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("HERMANDAD_TEST_ONLY"))
}

func TestOpenFileStore(t *testing.T) {
	cfg := Config{Session: SessionConfig{Store: StoreFile, Dir: t.TempDir()}}
	st, closer, err := cfg.OpenSessionStore(context.Background())
	require.NoError(t, err)
	defer closer.Close()
	_, ok := st.(*session.File)
	assert.True(t, ok)

	mem, closer, err := Config{}.OpenSessionStore(context.Background())
	require.NoError(t, err)
	defer closer.Close()
	_, ok = mem.(*session.Memory)
	assert.True(t, ok)
}
