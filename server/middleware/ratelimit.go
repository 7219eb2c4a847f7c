package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/resilience"
)

// maxLimiterKeys bounds the per-key limiter table; it is reset when full.
const maxLimiterKeys = 1024

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Rate is the sustained number of requests per second per key.
	Rate float64
	// Burst is the largest burst allowed per key.
	Burst int
	// KeyFunc extracts the rate limit key from a request. Defaults to the
	// token subject, falling back to the client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit returns a Gin middleware with one token bucket per key.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = SubjectKey
	}
	var (
		mu       sync.Mutex
		limiters = make(map[string]*resilience.RateLimiter)
	)
	get := func(key string) *resilience.RateLimiter {
		mu.Lock()
		defer mu.Unlock()
		rl, ok := limiters[key]
		if !ok {
			if len(limiters) >= maxLimiterKeys {
				clear(limiters)
			}
			rl = resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: key, Rate: cfg.Rate, Burst: cfg.Burst})
			limiters[key] = rl
		}
		return rl
	}

	return func(c *gin.Context) {
		if !get(cfg.KeyFunc(c)).Allow() {
			err := apperrors.RateLimited("admin api")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, err.ToResponse())
			return
		}
		c.Next()
	}
}

// SubjectKey keys by the authenticated subject, falling back to client IP.
func SubjectKey(c *gin.Context) string {
	if sub := c.GetString("subject"); sub != "" {
		return "sub:" + sub
	}
	return "ip:" + c.ClientIP()
}
