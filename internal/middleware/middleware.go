package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// pruneThreshold bounds the client map; once exceeded, entries older than
// the limit interval are dropped.
const pruneThreshold = 10000

// RateLimiter enforces a minimum interval between requests per client,
// identified by the X-Client-ID header.
type RateLimiter struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	interval time.Duration
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		lastSeen: make(map[string]time.Time),
		interval: interval,
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader("X-Client-ID")
		if clientID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-Client-ID header required"})
			return
		}

		now := time.Now()

		rl.mu.Lock()
		last, seen := rl.lastSeen[clientID]
		if seen && now.Sub(last) < rl.interval {
			retry := rl.interval - now.Sub(last)
			rl.mu.Unlock()
			c.Header("Retry-After", strconv.FormatFloat(retry.Seconds(), 'f', 3, 64))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		if len(rl.lastSeen) >= pruneThreshold {
			rl.pruneLocked(now)
		}
		rl.lastSeen[clientID] = now
		rl.mu.Unlock()

		c.Next()
	}
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	for id, seen := range rl.lastSeen {
		if now.Sub(seen) >= rl.interval {
			delete(rl.lastSeen, id)
		}
	}
}
