package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck-backend/internal/library"
	"github.com/promptdeck/promptdeck-backend/internal/metrics"
)

type memStore map[string]string

func (m memStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memStore) Set(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

func TestBuildRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	cache := library.New(library.Options{Local: memStore{}, Recorder: metrics.NewSyncRecorder(reg)})
	defer cache.Close()
	_, err := cache.Init(context.Background())
	require.NoError(t, err)

	r := BuildRouter(RouterDeps{
		ServiceName: "promptdeck",
		Version:     "test",
		CORSOrigins: []string{"https://app.example.com"},
		Cache:       cache,
		Metrics:     reg,
	})

	get := func(path string, header map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for k, v := range header {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = get("/api/v1/prompts", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = get("/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "promptdeck_sync_pending_entities")

	w = get("/api/v1/session", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpenDB_RequiresDSN(t *testing.T) {
	_, err := OpenDB(context.Background(), DBOptions{})
	assert.Error(t, err)
}

func TestSetGinMode(t *testing.T) {
	defer gin.SetMode(gin.TestMode)

	SetGinMode("Production")
	assert.Equal(t, gin.ReleaseMode, gin.Mode())
	SetGinMode("test")
	assert.Equal(t, gin.TestMode, gin.Mode())
}

func TestBuildRouter_WithoutCache(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := BuildRouter(RouterDeps{ServiceName: "promptdeck", Version: "test"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/prompts", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
