package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/altamontana/booking-api/internal/config"
)

// paymentBucket refills continuously at ARGV[3] tokens per millisecond up to
// ARGV[2].  It returns {allowed, remaining, wait_ms}.
var paymentBucket = redis.NewScript(`
local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now

tokens = math.min(capacity, tokens + math.max(0, now - ts) * rate)

local allowed = 0
local wait = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
else
    wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {allowed, math.floor(tokens), wait}
`)

// NewTokenBucket limits payment creation per client IP and route with a
// Redis token bucket.  Every accepted request opens a provider transaction,
// so the limiter sits only in front of the create and checkout endpoints.
// Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ratelimit")
	perMs := 0.001
	if ms := cfg.RefillInterval.Milliseconds(); ms > 0 && cfg.RefillTokens > 0 {
		perMs = float64(cfg.RefillTokens) / float64(ms)
	}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			key := cfg.Prefix + ":" + ip + ":" + c.Path()

			res, err := paymentBucket.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), cfg.Capacity, perMs, cfg.TTL.Milliseconds()).Int64Slice()
			if err != nil || len(res) != 3 {
				logger.Warn("limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if res[0] == 1 {
				return next(c)
			}

			secs := (res[2] + 999) / 1000
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			logger.Info("payment attempt throttled", zap.String("ip", ip), zap.String("route", c.Path()))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too many payment attempts",
				"retry_after": secs,
			})
		}
	}
}
