package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"listwise/internal/transport/http/response"
)

const limiterIdleTTL = time.Hour

// RateLimiter keeps one token bucket per user.
type RateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	rate        rate.Limit
	burst       int
	lastCleanup time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		limiters:    make(map[string]*limiterEntry),
		rate:        rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	rl.mu.Lock()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastAccess = now
	if now.Sub(rl.lastCleanup) > limiterIdleTTL {
		rl.cleanup(now)
	}
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// cleanup drops buckets idle for longer than limiterIdleTTL. Caller holds mu.
func (rl *RateLimiter) cleanup(now time.Time) {
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastAccess) > limiterIdleTTL {
			delete(rl.limiters, key)
		}
	}
	rl.lastCleanup = now
}

// RateLimit rejects requests of users over their budget. It runs after AuthJWT;
// unauthenticated requests are keyed by client IP.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := UserID(c)
		if !ok {
			key = c.ClientIP()
		}
		if !rl.Allow(key) {
			response.Error(c, http.StatusTooManyRequests, response.CodeTooManyRequests, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
