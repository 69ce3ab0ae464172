package mw

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ClientRateLimiter hands out one token bucket per client. Buckets idle for longer
// than the expiry are evicted.
type ClientRateLimiter struct {
	limiters *cache.Cache
	r        rate.Limit
	b        int
	expiry   time.Duration
}

// NewClientRateLimiter creates a limiter allowing r events per second with burst b.
func NewClientRateLimiter(r rate.Limit, b int, expiry time.Duration) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters: cache.New(expiry, 2*expiry),
		r:        r,
		b:        b,
		expiry:   expiry,
	}
}

// GetLimiter returns the bucket for key, creating it on first use.
func (l *ClientRateLimiter) GetLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Get(key); ok {
		limiter := v.(*rate.Limiter)
		// Touch so active clients keep their bucket.
		l.limiters.Set(key, limiter, l.expiry)
		return limiter
	}

	limiter := rate.NewLimiter(l.r, l.b)
	// Add fails when another request created the bucket first; use that one.
	if err := l.limiters.Add(key, limiter, l.expiry); err != nil {
		if v, ok := l.limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// RateLimiter rejects requests over the per-client rate with 429. Clients are keyed by
// IP; the device id header is caller-chosen and never selects a bucket.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewClientRateLimiter(r, b, 10*time.Minute)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
