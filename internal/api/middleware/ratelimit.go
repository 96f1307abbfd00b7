package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter implements fixed-window rate limiting using Redis
type RateLimiter struct {
	redis  *redis.Client
	logger *zap.Logger
}

// RateLimitConfig defines rate limit rules
type RateLimitConfig struct {
	Requests int                         // Number of requests allowed
	Window   time.Duration               // Time window
	KeyFunc  func(*http.Request) string  // Function to generate rate limit key
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *redis.Client, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redis,
		logger: logger,
	}
}

// Limit returns a middleware that enforces rate limiting
func (rl *RateLimiter) Limit(config RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := config.KeyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, resetTime, err := rl.checkLimit(ctx, key, config)
			if err != nil {
				rl.logger.Error("Rate limit check failed", zap.Error(err))
				// Fail open on Redis errors
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(resetTime).Seconds()), 10))
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)

				rl.logger.Warn("Rate limit exceeded",
					zap.String("key", key),
					zap.String("path", r.URL.Path),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkLimit checks if the request is within rate limit
func (rl *RateLimiter) checkLimit(ctx context.Context, key string, config RateLimitConfig) (bool, int, time.Time, error) {
	now := time.Now()
	window := config.Window

	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, now.Unix()/int64(window.Seconds()))

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(incr.Val())
	remaining := config.Requests - count
	if remaining < 0 {
		remaining = 0
	}

	resetTime := now.Add(window)

	allowed := count <= config.Requests
	return allowed, remaining, resetTime, nil
}

// GetRealIP extracts the real client IP address from the request.
// It checks proxy headers in order: X-Forwarded-For, X-Real-IP, RemoteAddr
func GetRealIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// X-Forwarded-For can be: "client, proxy1, proxy2"
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if clientIP != "" {
				return clientIP
			}
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Common key functions

// KeyByIP generates rate limit key based on IP address
func KeyByIP(r *http.Request) string {
	return fmt.Sprintf("ip:%s", GetRealIP(r))
}

// KeyByUser generates rate limit key based on user ID from context.
// Falls back to IP if no user is in context.
func KeyByUser(r *http.Request) string {
	user := GetUser(r.Context())
	if user != nil && user.ID != "" {
		return fmt.Sprintf("user:%s", user.ID)
	}
	return KeyByIP(r)
}

// Common rate limit configurations

// GlobalRateLimit applies to all requests from an IP
var GlobalRateLimit = RateLimitConfig{
	Requests: 100,
	Window:   1 * time.Minute,
	KeyFunc:  KeyByIP,
}

// PromoValidationRateLimit throttles promo code validation so codes
// cannot be brute-forced
var PromoValidationRateLimit = RateLimitConfig{
	Requests: 10,
	Window:   1 * time.Minute,
	KeyFunc:  KeyByUser,
}

// CheckoutRateLimit applies to payment initiation (per user)
var CheckoutRateLimit = RateLimitConfig{
	Requests: 10,
	Window:   5 * time.Minute,
	KeyFunc:  KeyByUser,
}

// MediaUploadRateLimit applies to memorial media uploads (per user)
var MediaUploadRateLimit = RateLimitConfig{
	Requests: 30,
	Window:   1 * time.Hour,
	KeyFunc:  KeyByUser,
}

// WebhookRateLimit applies to webhook endpoints
var WebhookRateLimit = RateLimitConfig{
	Requests: 100,
	Window:   1 * time.Minute,
	KeyFunc:  KeyByIP,
}
