package main

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// uploadLimiter hands out one token bucket per caller.
type uploadLimiter struct {
	mu      sync.Mutex
	perSec  rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func newUploadLimiter(perSec float64, burst int) *uploadLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	return &uploadLimiter{perSec: limit, burst: burst, buckets: map[string]*rate.Limiter{}}
}

func (l *uploadLimiter) allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.perSec, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

// middleware must run after jwtAuthMiddleware so the caller is known.
func (l *uploadLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(currentIdentity(c).ID) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many uploads, slow down"})
			return
		}
		c.Next()
	}
}
