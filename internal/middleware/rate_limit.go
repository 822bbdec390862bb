package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Window is the time window for rate limiting
	Window time.Duration
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Key prefix for Redis keys
	KeyPrefix string
}

// RateLimiter is a fixed-window counter kept in Redis
type RateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
}

// NewRateLimiter creates a new rate limiter instance
func NewRateLimiter(redisClient *redis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		config: config,
	}
}

// NewChatRateLimiter allows perMinute chat messages per session
func NewChatRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return NewRateLimiter(redisClient, RateLimitConfig{
		Window:    time.Minute,
		Limit:     perMinute,
		KeyPrefix: "rate_limit:chat",
	})
}

// Limit is the number of requests allowed per window
func (rl *RateLimiter) Limit() int { return rl.config.Limit }

func (rl *RateLimiter) windowKey(subject string, now time.Time) (string, time.Time) {
	windowStart := now.Truncate(rl.config.Window)
	return fmt.Sprintf("%s:%s:%d", rl.config.KeyPrefix, subject, windowStart.Unix()), windowStart.Add(rl.config.Window)
}

// IsAllowed counts a request for subject.
// Returns: allowed, remaining requests, reset time, error
func (rl *RateLimiter) IsAllowed(ctx context.Context, subject string) (bool, int, time.Time, error) {
	key, resetTime := rl.windowKey(subject, time.Now())

	pipe := rl.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(incrCmd.Val())
	remaining := rl.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.config.Limit, remaining, resetTime, nil
}

// GetRemainingRequests returns the requests left for subject without
// counting one
func (rl *RateLimiter) GetRemainingRequests(ctx context.Context, subject string) (int, time.Time, error) {
	key, resetTime := rl.windowKey(subject, time.Now())

	count, err := rl.redis.Get(ctx, key).Int()
	if err == redis.Nil {
		return rl.config.Limit, resetTime, nil
	}
	if err != nil {
		return 0, time.Time{}, err
	}

	remaining := rl.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, resetTime, nil
}

// Check counts a request for subject, sets the X-RateLimit headers and
// aborts with 429 when the limit is reached. It reports whether the request
// may continue. Redis errors never block a request.
func (rl *RateLimiter) Check(c *gin.Context, subject string) bool {
	allowed, remaining, resetTime, err := rl.IsAllowed(c.Request.Context(), subject)
	if err != nil {
		LoggerFrom(c).WithError(err).Warn("[RateLimit] check failed, allowing request")
		c.Header("X-RateLimit-Error", "rate limit check failed")
		return true
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

	if !allowed {
		retryAfter := int(time.Until(resetTime).Seconds()) + 1
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate limit exceeded",
			"message":     fmt.Sprintf("You have exceeded the rate limit of %d messages per %v", rl.config.Limit, rl.config.Window),
			"retry_after": retryAfter,
		})
		return false
	}
	return true
}

// RateLimitMiddleware limits requests by the subject keyFn returns
func (rl *RateLimiter) RateLimitMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Check(c, keyFn(c)) {
			return
		}
		c.Next()
	}
}

// ClientKey limits by shop and client address
func ClientKey(c *gin.Context) string {
	return c.GetString(ShopDomainKey) + ":" + c.ClientIP()
}
