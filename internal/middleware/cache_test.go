package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"taskboard/internal/config"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func cacheTestConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		KeyStrategy:  "user_route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
}

func TestCacheServesWarmRead(t *testing.T) {
	rdb := newTestRedis(t)
	cfg := cacheTestConfig()

	hits := 0
	e := echo.New()
	e.GET("/v1/tasks", func(c echo.Context) error {
		hits++
		return c.JSON(http.StatusOK, echo.Map{"hits": hits})
	}, NewRedisCache(cfg, rdb))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks", nil))
	if rec.Code != http.StatusOK || hits != 1 {
		t.Fatalf("cold read: code=%d hits=%d", rec.Code, hits)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks", nil))
	if hits != 1 {
		t.Errorf("warm read reached the handler (hits=%d)", hits)
	}
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", rec.Header().Get("X-Cache"))
	}
}

// A client that lists, mutates, and refetches within the TTL must see
// the post-mutation data, not the cached pre-mutation page.
func TestCacheInvalidatedByMutation(t *testing.T) {
	rdb := newTestRedis(t)
	cfg := cacheTestConfig()

	version := 0
	e := echo.New()
	e.GET("/v1/tasks", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"tasks_version": version})
	}, NewRedisCache(cfg, rdb))
	e.POST("/v1/tasks", func(c echo.Context) error {
		version++
		return c.JSON(http.StatusCreated, echo.Map{"ok": true})
	}, NewCacheBump(cfg, rdb))

	get := func() string {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks", nil))
		return rec.Body.String()
	}

	first := get()
	if second := get(); second != first {
		t.Fatalf("warm read changed without a mutation: %q vs %q", second, first)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("mutation: code=%d", rec.Code)
	}

	if after := get(); after == first {
		t.Errorf("read after mutation served the stale page: %q", after)
	}
}

func TestCacheBumpIgnoresFailedMutation(t *testing.T) {
	rdb := newTestRedis(t)
	cfg := cacheTestConfig()

	e := echo.New()
	e.GET("/v1/tasks", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"tasks_version": 1})
	}, NewRedisCache(cfg, rdb))
	e.POST("/v1/tasks", func(c echo.Context) error {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}, NewCacheBump(cfg, rdb))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks", nil))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mutation: code=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks", nil))
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Errorf("rejected mutation evicted the cache (X-Cache=%q)", rec.Header().Get("X-Cache"))
	}
}
