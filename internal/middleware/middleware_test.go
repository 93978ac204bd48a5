package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-engine/internal/config"
	"github.com/iliyamo/cinema-ticket-engine/internal/utils"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func serve(e *echo.Echo, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1,
		RefillInterval: time.Minute, TTL: 10 * time.Minute,
		KeyStrategy: "ip_route", Prefix: "rl",
	}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := echo.New()
	e.POST("/v1/bookings", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		newTokenBucket(cfg, rdb, zerolog.Nop(), func() time.Time { return now }))

	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/v1/bookings", nil).Code)
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/v1/bookings", nil).Code)

	rec := serve(e, http.MethodPost, "/v1/bookings", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/v1/bookings", nil).Code)
}

func TestTokenBucketFailsOpenWhenRedisIsDown(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Hour, Prefix: "rl"}
	e := echo.New()
	e.POST("/v1/bookings", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		NewTokenBucket(cfg, rdb, zerolog.Nop()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/v1/bookings", nil).Code)
	}
}

func TestRedisCacheServesHitsAndSkipsErrors(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true},
		TTL: time.Minute, KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20,
	}
	var calls atomic.Int32
	e := echo.New()
	e.Use(NewRedisCache(cfg, rdb, zerolog.Nop()))
	e.GET("/v1/movies/:id", func(c echo.Context) error {
		n := calls.Add(1)
		if c.Param("id") == "404" {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "call": n})
	})

	first := serve(e, http.MethodGet, "/v1/movies/1", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := serve(e, http.MethodGet, "/v1/movies/1", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, second.Header().Get(echo.HeaderContentType))

	// a different path param is a different entry
	other := serve(e, http.MethodGet, "/v1/movies/2", nil)
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))

	bypass := serve(e, http.MethodGet, "/v1/movies/1", http.Header{"Cache-Control": {"no-cache"}})
	assert.Equal(t, "MISS", bypass.Header().Get("X-Cache"))

	serve(e, http.MethodGet, "/v1/movies/404", nil)
	missing := serve(e, http.MethodGet, "/v1/movies/404", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "MISS", missing.Header().Get("X-Cache"))

	assert.Equal(t, int32(5), calls.Load())
}

func TestRedisCacheSkipsExcludedRoutes(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true},
		TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 20,
		Exclude: map[string]bool{"/v1/shows/:id/tickets": true},
	}
	var calls atomic.Int32
	e := echo.New()
	e.Use(NewRedisCache(cfg, rdb, zerolog.Nop()))
	e.GET("/v1/shows/:id/tickets", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"call": calls.Add(1)})
	})

	for i := 0; i < 3; i++ {
		rec := serve(e, http.MethodGet, "/v1/shows/7/tickets", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, mr.Keys())
}

func TestCacheDisabledWithoutRedis(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}}
	e := echo.New()
	e.Use(NewRedisCache(cfg, nil, zerolog.Nop()))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := serve(e, http.MethodGet, "/ping", nil)
	assert.Equal(t, "pong", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	const secret = "s3cret"
	e := echo.New()
	e.POST("/pay", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(ContextSubject).(string))
	}, JWTAuth(secret), RequireRole(utils.RolePayment))

	bearer := func(tok string) http.Header {
		return http.Header{echo.HeaderAuthorization: {"Bearer " + tok}}
	}

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPost, "/pay", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPost, "/pay", bearer("garbage")).Code)

	other, err := utils.NewToken(secret, "someone", "CUSTOMER", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodPost, "/pay", bearer(other.Token)).Code)

	pay, err := utils.NewPaymentToken(secret, "psp", time.Minute)
	require.NoError(t, err)
	rec := serve(e, http.MethodPost, "/pay", bearer(pay.Token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "psp", rec.Body.String())
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf syncBuffer
	e := echo.New()
	e.Use(RequestLogger(zerolog.New(&buf)))
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") })

	rec := serve(e, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"status":`+strconv.Itoa(http.StatusTeapot))
	assert.Contains(t, buf.String(), `"route":"/boom"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
