package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// TokenBucket limits requests per client IP. State lives in memory, which
// is enough for a single-operator deployment.
type TokenBucket struct {
	capacity int
	rate     int
	now      func() time.Time
	onReject func()

	mu    sync.Mutex
	state map[string]*bucket
}

// tokens accrue continuously, so partial refills carry over between calls.
type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens refilled at perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// OnReject registers a callback run for every rejected request.
func (l *TokenBucket) OnReject(fn func()) *TokenBucket {
	l.onReject = fn
	return l
}

// GinMiddleware returns gin handler enforcing per-IP limits.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			if l.onReject != nil {
				l.onReject()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again shortly"})
			return
		}
		c.Next()
	}
}

// Allow takes a token for key if one is available.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: float64(l.capacity), last: now}
		l.state[key] = b
	}
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens += elapsed.Minutes() * float64(l.rate)
		if limit := float64(l.capacity); b.tokens > limit {
			b.tokens = limit
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
