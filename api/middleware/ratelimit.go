package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/models"
	"golang.org/x/time/rate"
)

const (
	// Buckets idle this long are dropped; a returning caller starts full.
	limiterIdleTTL = time.Hour
	maxLimiters    = 4096
)

// RateLimit returns per-identity (API key, else client IP) token-bucket
// rate limiting powered by golang.org/x/time/rate.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := expirable.NewLRU[string, *rate.Limiter](maxLimiters, nil, limiterIdleTTL)

	get := func(identity string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters.Get(identity)
		if !ok {
			l = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		}
		// Re-adding restarts the idle clock.
		limiters.Add(identity, l)
		return l
	}

	return func(c *gin.Context) {
		identity := c.GetString(ctxKeyIdentity)
		if identity == "" {
			identity = c.ClientIP()
		}

		if !get(identity).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}
		c.Next()
	}
}
