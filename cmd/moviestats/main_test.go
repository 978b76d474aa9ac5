package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviestats/internal/config"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{
		"STORE_DRIVER":   "memory",
		"SESSION_SECRET": "test",
		"WEB_DIR":        t.TempDir(),
	})
	require.NoError(t, err)
	return cfg
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())

	prune, _, err := root.Find([]string{"sessions", "prune"})
	require.NoError(t, err)
	assert.Equal(t, "prune", prune.Name())
}

func TestOpenStores_Memory(t *testing.T) {
	st, err := openStores(context.Background(), memoryConfig(t), zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, st.users)
	require.NotNil(t, st.sessions)
	assert.NoError(t, st.close(context.Background()))
}

func TestOpenStores_UnknownDriver(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Store.Driver = "sqlite"
	_, err := openStores(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestBuildHandler_Health(t *testing.T) {
	cfg := memoryConfig(t)
	st, err := openStores(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	h, err := buildHandler(context.Background(), cfg, st, zerolog.Nop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestPrune(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, prune(context.Background(), memoryConfig(t), zerolog.Nop(), &out))
	assert.Equal(t, "deleted 0 expired sessions\n", out.String())
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zerolog.Nop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
