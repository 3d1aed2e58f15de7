package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/healthcare-coordination/internal/config"
)

// maxLoginPeek bounds how much of a login body is buffered to find the email.
const maxLoginPeek = 64 << 10

// takeToken refills the bucket stored at KEYS[1] in whole refill steps and
// takes one token from it.
//
// ARGV: now_ms, capacity, refill_tokens, refill_ms, ttl_ms
// Returns {allowed (0|1), tokens left, ms until the next refill}.
var takeToken = redis.NewScript(`
local now      = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill   = tonumber(ARGV[3])
local step     = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local ts     = tonumber(redis.call('HGET', KEYS[1], 'ts'))
if tokens == nil or ts == nil then
	tokens = capacity
	ts = now
end

local steps = math.floor(math.max(0, now - ts) / step)
if steps > 0 then
	tokens = math.min(capacity, tokens + steps * refill)
	ts = ts + steps * step
end

local allowed = 0
local wait = 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.max(0, step - (now - ts))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {allowed, tokens, wait}
`)

type bucketResult struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

type tokenBucket struct {
	cfg    config.RateLimitConfig
	rdb    *redis.Client
	logger *slog.Logger
}

func (b *tokenBucket) take(ctx context.Context, key string) (bucketResult, error) {
	vals, err := takeToken.Run(ctx, b.rdb, []string{key},
		time.Now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		b.cfg.TTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return bucketResult{}, err
	}
	if len(vals) != 3 {
		return bucketResult{}, errUnexpectedReply
	}
	return bucketResult{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		retry:     time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

var errUnexpectedReply = errors.New("unexpected rate limiter reply")

// NewTokenBucket limits the /auth endpoints with token buckets kept in
// Redis.  Every request draws from a client bucket keyed by IP (and route,
// with the ip_route strategy).  Login requests additionally draw from a
// bucket keyed by the submitted email when cfg.PerAccount is set.  If Redis
// fails the request is let through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	b := &tokenBucket{cfg: cfg, rdb: rdb, logger: logger}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			keys := []string{clientKey(cfg, c)}
			if cfg.PerAccount {
				if email := loginEmail(c); email != "" {
					keys = append(keys, accountKey(cfg.Prefix, email))
				}
			}

			remaining := int64(cfg.Capacity)
			for _, key := range keys {
				res, err := b.take(c.Request().Context(), key)
				if err != nil {
					logger.Warn("rate limiter unavailable", "error", err)
					return next(c)
				}
				if res.remaining < remaining {
					remaining = res.remaining
				}
				if !res.allowed {
					return b.reject(c, key, res)
				}
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			return next(c)
		}
	}
}

func (b *tokenBucket) reject(c echo.Context, key string, res bucketResult) error {
	secs := int((res.retry + time.Second - 1) / time.Second)
	if b.cfg.Debug {
		b.logger.Info("rate limit block", "key", key, "retry_after", secs)
	}
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(b.cfg.Capacity))
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("Retry-After", strconv.Itoa(secs))
	return c.JSON(http.StatusTooManyRequests, echo.Map{
		"success":     false,
		"message":     "too many requests, try again later",
		"retry_after": secs,
	})
}

// clientKey identifies the caller by IP, plus the route for ip_route.
func clientKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	if cfg.KeyStrategy == config.KeyByIP {
		return cfg.Prefix + ":ip:" + ip
	}
	return cfg.Prefix + ":ip:" + ip + ":route:" + c.Request().Method + " " + c.Path()
}

// accountKey hashes the email so addresses never appear in Redis keys.
func accountKey(prefix, email string) string {
	sum := sha256.Sum256([]byte(email))
	return prefix + ":account:" + hex.EncodeToString(sum[:16])
}

// loginEmail returns the normalized email of a POST .../login request, or
// "" for anything else.  The body is restored for the handler.
func loginEmail(c echo.Context) string {
	req := c.Request()
	if req.Method != http.MethodPost || !strings.HasSuffix(c.Path(), "/login") || req.Body == nil {
		return ""
	}
	peeked, err := io.ReadAll(io.LimitReader(req.Body, maxLoginPeek))
	req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(peeked), req.Body))
	if err != nil {
		return ""
	}
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(peeked, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}
