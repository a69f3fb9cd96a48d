package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedEcho(t *testing.T, cfg RateLimitConfig) *echo.Echo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	e.POST("/api/pair", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		RateLimit(cfg, rdb))
	return e
}

func postPair(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/pair", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BurstThenBlocked(t *testing.T) {
	e := newLimitedEcho(t, RateLimitConfig{Capacity: 3, RefillInterval: time.Hour})

	for i := 0; i < 3; i++ {
		rec := postPair(e, "10.0.0.1")
		require.Equal(t, http.StatusOK, rec.Code, "request %d is within the burst", i+1)
	}

	rec := postPair(e, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	e := newLimitedEcho(t, RateLimitConfig{Capacity: 1, RefillInterval: time.Hour})

	require.Equal(t, http.StatusOK, postPair(e, "10.0.0.1").Code)
	require.Equal(t, http.StatusTooManyRequests, postPair(e, "10.0.0.1").Code)

	assert.Equal(t, http.StatusOK, postPair(e, "10.0.0.2").Code,
		"one exhausted client must not block another")
}

func TestRateLimit_TokensRefillOverTime(t *testing.T) {
	e := newLimitedEcho(t, RateLimitConfig{Capacity: 1, RefillInterval: 30 * time.Millisecond})

	require.Equal(t, http.StatusOK, postPair(e, "10.0.0.1").Code)
	require.Equal(t, http.StatusTooManyRequests, postPair(e, "10.0.0.1").Code)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, http.StatusOK, postPair(e, "10.0.0.1").Code)
}

func TestRateLimit_PassthroughWithoutRedis(t *testing.T) {
	e := echo.New()
	e.POST("/api/pair", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		RateLimit(RateLimitConfig{Capacity: 1, RefillInterval: time.Hour}, nil))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, postPair(e, "10.0.0.1").Code)
	}
}
