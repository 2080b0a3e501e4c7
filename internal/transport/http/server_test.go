package http

import (
	"bytes"
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"listwise/internal/bootstrap"
	"listwise/internal/config"
	"listwise/internal/pkg/jwtutil"
	"listwise/internal/platform/database"
	"listwise/internal/transport/http/response"
)

type testServer struct {
	t      *testing.T
	router nethttp.Handler
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("GIN_MODE", "test")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "data", "api.db"))
	t.Setenv("LISTS_TIME_ZONE", "UTC")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := config.Load()
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	db, err := database.Open(context.Background(), cfg, log)
	require.NoError(t, err)

	a := bootstrap.Assemble(cfg, log, db, nil, nil)
	t.Cleanup(func() { _ = a.Close() })

	token, err := jwtutil.GenerateToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, time.Hour, "user-1")
	require.NoError(t, err)
	return &testServer{t: t, router: NewRouter(a), token: token}
}

func (s *testServer) do(method, path string, body interface{}, authed bool) (int, response.APIResponse) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp response.APIResponse
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/healthz", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	var health struct {
		Components map[string]struct {
			OK      bool   `json:"ok"`
			Message string `json:"message"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	for _, name := range []string{"recompute_worker", "event_publisher"} {
		c, ok := health.Components[name]
		require.True(t, ok, name)
		assert.True(t, c.OK, name)
		assert.Equal(t, "disabled", c.Message, name)
	}

	code, _ := s.do(nethttp.MethodGet, "/metrics", nil, false)
	assert.Equal(t, nethttp.StatusOK, code)
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(nethttp.MethodGet, "/api/v1/lists", nil, false)
	assert.Equal(t, nethttp.StatusUnauthorized, code)
	assert.Equal(t, response.CodeUnauthorized, resp.Code)
}

func TestListLifecycle(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(nethttp.MethodPost, "/api/v1/lists", map[string]interface{}{
		"name": "Grocery", "items": []string{"apples", "milk"},
	}, true)
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, response.CodeOK, resp.Code)

	code, resp = s.do(nethttp.MethodPost, "/api/v1/lists/items", map[string]interface{}{
		"name": "grocery", "items": []string{"bread"},
	}, true)
	require.Equal(t, nethttp.StatusOK, code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["found"])

	code, resp = s.do(nethttp.MethodGet, "/api/v1/lists?name=Grocery&limit=5", nil, true)
	require.Equal(t, nethttp.StatusOK, code)
	lists, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, lists, 1)

	code, _ = s.do(nethttp.MethodGet, "/api/v1/lists/find?name=Grocery", nil, true)
	assert.Equal(t, nethttp.StatusOK, code)
	code, resp = s.do(nethttp.MethodGet, "/api/v1/lists/find?name=Garden", nil, true)
	assert.Equal(t, nethttp.StatusNotFound, code)
	assert.Equal(t, response.CodeListNotFound, resp.Code)

	code, _ = s.do(nethttp.MethodPost, "/api/v1/affinity/decrement", map[string]interface{}{
		"list": "Grocery", "items": []string{"milk"},
	}, true)
	require.Equal(t, nethttp.StatusOK, code)

	code, resp = s.do(nethttp.MethodGet, "/api/v1/recommendations/history?list=Grocery", nil, true)
	assert.Equal(t, nethttp.StatusUnprocessableEntity, code)
	assert.Equal(t, response.CodeNotEnoughData, resp.Code)

	code, resp = s.do(nethttp.MethodGet, "/api/v1/recommendations/community?list=Grocery", nil, true)
	assert.Equal(t, nethttp.StatusUnprocessableEntity, code)
	assert.Equal(t, response.CodeNotEnoughData, resp.Code)

	code, _ = s.do(nethttp.MethodDelete, "/api/v1/lists", nil, true)
	assert.Equal(t, nethttp.StatusBadRequest, code)

	code, _ = s.do(nethttp.MethodDelete, "/api/v1/lists?confirm=true", nil, true)
	assert.Equal(t, nethttp.StatusOK, code)

	code, resp = s.do(nethttp.MethodGet, "/api/v1/lists", nil, true)
	require.Equal(t, nethttp.StatusOK, code)
	assert.Empty(t, resp.Data)
}

func TestBadPayloads(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(nethttp.MethodPost, "/api/v1/lists", map[string]interface{}{"items": []string{"x"}}, true)
	assert.Equal(t, nethttp.StatusBadRequest, code)
	assert.Equal(t, response.CodeBadRequest, resp.Code)

	code, _ = s.do(nethttp.MethodGet, "/api/v1/recommendations/history", nil, true)
	assert.Equal(t, nethttp.StatusBadRequest, code)

	code, _ = s.do(nethttp.MethodGet, "/api/v1/lists?from=yesterday", nil, true)
	assert.Equal(t, nethttp.StatusBadRequest, code)
}
