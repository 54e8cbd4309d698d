package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"HeritageAtlas/internal/state"

	"github.com/gin-gonic/gin"
)

type memStore struct {
	values map[string]string
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}}
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", state.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.values[key] = value
	return nil
}

func (m *memStore) Incr(ctx context.Context, key string) (int64, error) {
	n, _ := strconv.ParseInt(m.values[key], 10, 64)
	n++
	m.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string) (string, error) {
	return "", context.DeadlineExceeded
}

func (brokenStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return context.DeadlineExceeded
}

func (brokenStore) Incr(ctx context.Context, key string) (int64, error) {
	return 0, context.DeadlineExceeded
}

func (brokenStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return context.DeadlineExceeded
}

func newLimitedRouter(st *state.Service, maxRequests int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(st, maxRequests, time.Minute))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestRateLimitBlocksAfterMax(t *testing.T) {
	router := newLimitedRouter(state.NewService(newMemStore()), 3)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	router.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 once the window limit is spent", w.Code)
	}

	// A different client has its own window.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}
}

func TestRateLimitFailsOpenOnStoreFailure(t *testing.T) {
	router := newLimitedRouter(state.NewService(brokenStore{}), 1)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, a broken store must not block traffic", i+1, w.Code)
		}
	}
}
