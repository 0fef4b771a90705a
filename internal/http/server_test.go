package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/docmanager/internal/auth"
	"github.com/fyrsmithlabs/docmanager/internal/documents"
	"github.com/fyrsmithlabs/docmanager/internal/pointstore"
	"github.com/fyrsmithlabs/docmanager/internal/settings"
)

var testSecret = []byte("test-secret")

type testServer struct {
	*Server
	collection *pointstore.MemoryCollection
	settings   *settings.MemoryStore
}

func setupTestServer(t *testing.T, cfg *Config, points ...pointstore.Point) *testServer {
	t.Helper()
	coll := pointstore.NewMemoryCollection()
	require.NoError(t, coll.Upsert(context.Background(), points))
	store, err := pointstore.NewProbingStore(coll, pointstore.PolicyLenient, nil)
	require.NoError(t, err)
	docs, err := documents.NewService(store, nil)
	require.NoError(t, err)
	st := settings.NewMemoryStore()

	srv, err := NewServer(docs, st, auth.NewVerifier(testSecret), zap.NewNop(), cfg)
	require.NoError(t, err)
	srv.now = func() time.Time { return time.Date(2024, 5, 1, 9, 15, 0, 0, time.Local) }
	return &testServer{Server: srv, collection: coll, settings: st}
}

func token(t *testing.T, subject string, perms map[string][]string) string {
	t.Helper()
	tok, err := auth.SignToken(testSecret, subject, subject, perms)
	require.NoError(t, err)
	return tok
}

func adminToken(t *testing.T) string {
	return token(t, "alice", map[string][]string{"PLUGINS": {"EDIT"}})
}

func TestNewServer(t *testing.T) {
	store, err := pointstore.NewProbingStore(pointstore.NewMemoryCollection(), pointstore.PolicyLenient, nil)
	require.NoError(t, err)
	docs, err := documents.NewService(store, nil)
	require.NoError(t, err)
	verifier := auth.NewVerifier(nil)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(docs, nil, verifier, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9090, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(docs, nil, verifier, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when dependencies are nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, verifier, zap.NewNop(), nil)
		assert.Error(t, err)
		_, err = NewServer(docs, nil, nil, zap.NewNop(), nil)
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t, nil)

	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(t, nil)

	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServerLifecycle(t *testing.T) {
	server := setupTestServer(t, &Config{Host: "localhost", Port: 0, DestructiveRate: 1, DestructiveBurst: 1})

	errChan := make(chan error, 1)
	go func() { errChan <- server.Start() }()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errChan:
		assert.True(t, err == nil || errors.Is(err, http.ErrServerClosed))
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server := setupTestServer(t, nil)

		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server := setupTestServer(t, nil)
		server.Echo().GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		rec := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestAPIRequiresAdmin(t *testing.T) {
	server := setupTestServer(t, nil)

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  int
	}{
		{"no token", func(*http.Request) {}, http.StatusForbidden},
		{"bad signature", func(r *http.Request) {
			tok, err := auth.SignToken([]byte("other"), "alice", "alice", map[string][]string{"PLUGINS": {"EDIT"}})
			require.NoError(t, err)
			r.Header.Set("Authorization", "Bearer "+tok)
		}, http.StatusForbidden},
		{"no admin permission", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token(t, "bob", map[string][]string{"CONVERSATION": {"READ"}}))
		}, http.StatusForbidden},
		{"bearer admin", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+adminToken(t))
		}, http.StatusOK},
		{"cookie admin", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: adminToken(t)})
		}, http.StatusOK},
		{"query admin", func(r *http.Request) {
			q := r.URL.Query()
			q.Set(auth.QueryParam, adminToken(t))
			r.URL.RawQuery = q.Encode()
		}, http.StatusOK},
		{"configured admin id", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token(t, "admin", nil))
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, APIPrefix+"/stats", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			server.echo.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.JSONEq(t, `{"detail":"Forbidden"}`, rec.Body.String())
			}
		})
	}
}

func mustService(t *testing.T, store pointstore.Store) *documents.Service {
	t.Helper()
	docs, err := documents.NewService(store, nil)
	require.NoError(t, err)
	return docs
}

func TestRequestLogger_CorrelationFields(t *testing.T) {
	store, err := pointstore.NewProbingStore(pointstore.NewMemoryCollection(), pointstore.PolicyLenient, nil)
	require.NoError(t, err)
	core, logs := observer.New(zap.InfoLevel)
	server, err := NewServer(mustService(t, store), nil, auth.NewVerifier(testSecret), zap.New(core), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, APIPrefix+"/stats", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "alice", fields["user.id"])
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), fields["request.id"])

	server.echo.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	entries = logs.FilterMessage("http request").All()
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[1].ContextMap(), "user.id")
}
