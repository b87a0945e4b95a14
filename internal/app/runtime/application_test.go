package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbridge/platform/internal/config"
	"github.com/marketbridge/platform/pkg/logger"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "runtime-test-secret"
	cfg.Logging.Level = "error"
	cfg.Server.Port = 0
	return cfg
}

func TestNewApplicationMemoryBackend(t *testing.T) {
	a, err := NewApplication(context.Background(), memoryConfig())
	require.NoError(t, err)
	require.NotNil(t, a.Services())
	assert.Nil(t, a.db)
	assert.Nil(t, a.rdb)
	assert.NotNil(t, a.limiter)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/feed")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNewApplicationSchedulesMaintenance(t *testing.T) {
	a, err := NewApplication(context.Background(), memoryConfig())
	require.NoError(t, err)
	// Limiter cleanup and revocation purge.
	assert.Len(t, a.scheduler.Entries(), 2)

	require.NoError(t, a.Services().Start(context.Background()))
	require.NoError(t, a.Services().Stop(context.Background()))
}

func TestNewApplicationRateLimitDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.RateLimit.RequestsPerSecond = 0
	a, err := NewApplication(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, a.limiter)
	assert.Len(t, a.scheduler.Entries(), 1)
}

func TestNewApplicationRejectsBadCleanupSpec(t *testing.T) {
	cfg := memoryConfig()
	cfg.RateLimit.CleanupSpec = "every so often"
	_, err := NewApplication(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule maintenance")
}

func TestNewApplicationRedisUnreachable(t *testing.T) {
	cfg := memoryConfig()
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err := NewApplication(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "change feed")
}

func TestSupabaseBackendWiring(t *testing.T) {
	cfg := memoryConfig()
	cfg.Backend.Mode = config.ModeSupabase
	cfg.Supabase.URL = "http://127.0.0.1:1"
	cfg.Supabase.AnonKey = "anon"
	cfg.Supabase.Realtime = true

	be, err := buildBackend(cfg, logger.NewDiscard())
	require.NoError(t, err)
	assert.NotNil(t, be.realtime)
	assert.NotNil(t, be.provider)
	assert.NotNil(t, be.blobs)
	assert.Nil(t, be.media, "hosted storage serves its own media")
	assert.Nil(t, be.stores.Identities, "identities live in the hosted auth service")
}
