package middleware

import (
	"net/http"
	"strings"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/healthcare-coordination/internal/config"
)

func limitedServer(t *testing.T, cfg config.RateLimitConfig) (*echo.Echo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	limit := NewTokenBucket(cfg, rdb, nil)
	e.POST("/auth/login", func(c echo.Context) error {
		var body struct {
			Email string `json:"email"`
		}
		if err := c.Bind(&body); err != nil {
			return err
		}
		return c.String(http.StatusOK, body.Email)
	}, limit)
	e.POST("/auth/register", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, limit)
	return e, mr
}

func login(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	return loginAs(e, ip, "")
}

func loginAs(e *echo.Echo, ip, email string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"`+email+`","password":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func testLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    config.KeyByIPRoute,
		Prefix:         "rl:test",
	}
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
	e, mr := limitedServer(t, testLimitConfig())

	assert.Equal(t, http.StatusOK, login(e, "10.0.0.1").Code)
	rec := login(e, "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = login(e, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"success":false`)

	// buckets are per client
	assert.Equal(t, http.StatusOK, login(e, "10.0.0.2").Code)
	assert.True(t, mr.Exists("rl:test:ip:10.0.0.1:route:POST /auth/login"))
}

func TestTokenBucket_FailsOpenWithoutRedis(t *testing.T) {
	e, mr := limitedServer(t, testLimitConfig())
	mr.Close()

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, login(e, "10.0.0.1").Code)
	}
}

func TestTokenBucket_Disabled(t *testing.T) {
	cfg := testLimitConfig()
	cfg.Enabled = false
	e, _ := limitedServer(t, cfg)

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, login(e, "10.0.0.1").Code)
	}
}

func TestTokenBucket_LimitsLoginPerAccount(t *testing.T) {
	cfg := testLimitConfig()
	cfg.PerAccount = true
	e, mr := limitedServer(t, cfg)

	assert.Equal(t, http.StatusOK, loginAs(e, "10.0.0.1", "jane@example.com").Code)
	assert.Equal(t, http.StatusOK, loginAs(e, "10.0.0.2", " Jane@Example.com ").Code)

	rec := loginAs(e, "10.0.0.3", "jane@example.com")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other accounts from a fresh address are unaffected
	assert.Equal(t, http.StatusOK, loginAs(e, "10.0.0.3", "john@example.com").Code)
	assert.True(t, mr.Exists(accountKey("rl:test", "jane@example.com")))
	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "example.com")
	}
}

func TestTokenBucket_LoginBodyStillReadable(t *testing.T) {
	cfg := testLimitConfig()
	cfg.PerAccount = true
	e, _ := limitedServer(t, cfg)

	rec := loginAs(e, "10.0.0.1", "jane@example.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jane@example.com", rec.Body.String())
}

func TestTokenBucket_AccountBucketOnlyForLogin(t *testing.T) {
	cfg := testLimitConfig()
	cfg.PerAccount = true
	cfg.KeyStrategy = config.KeyByIPRoute
	e, mr := limitedServer(t, cfg)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"email":"jane@example.com"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.False(t, mr.Exists(accountKey("rl:test", "jane@example.com")))
	assert.Equal(t, http.StatusOK, loginAs(e, "10.0.0.1", "jane@example.com").Code)
}

func TestClientKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.Header.Set(echo.HeaderXRealIP, "1.2.3.4")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/auth/refresh")

	cfg := testLimitConfig()
	assert.Equal(t, "rl:test:ip:1.2.3.4:route:POST /auth/refresh", clientKey(cfg, c))

	cfg.KeyStrategy = config.KeyByIP
	assert.Equal(t, "rl:test:ip:1.2.3.4", clientKey(cfg, c))
}
