package httpmiddleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"pathak/internal/auth"
	"pathak/internal/metrics"
)

// Limiter decides whether the caller identified by key may proceed.
// retryAfter is only meaningful when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// SimpleTokenBucket is an in-memory limiter for a single API instance.
// Buckets idle for longer than a full refill are dropped, since a fresh
// bucket behaves the same.
type SimpleTokenBucket struct {
	capacity  int
	rate      int
	mu        sync.Mutex
	state     map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewSimpleTokenBucket creates limiter with capacity tokens and rate per minute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
		now:      time.Now,
	}
}

func (l *SimpleTokenBucket) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true, 0, nil
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		var wait time.Duration
		if l.rate > 0 {
			wait = time.Minute/time.Duration(l.rate) - now.Sub(b.last)
		}
		return false, wait, nil
	}
	b.tokens--
	return true, 0, nil
}

// idle is how long a bucket takes to refill completely.
func (l *SimpleTokenBucket) idle() time.Duration {
	if l.rate <= 0 {
		return 0
	}
	return time.Duration(l.capacity) * time.Minute / time.Duration(l.rate)
}

// sweep runs at most once per idle period. Callers hold l.mu.
func (l *SimpleTokenBucket) sweep(now time.Time) {
	idle := l.idle()
	if idle <= 0 || now.Sub(l.lastSweep) < idle {
		return
	}
	l.lastSweep = now
	for key, b := range l.state {
		if now.Sub(b.last) >= idle {
			delete(l.state, key)
		}
	}
}

// Len reports how many callers currently hold a bucket.
func (l *SimpleTokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state)
}

// GinMiddleware enforces l for every request. Authenticated callers are
// limited per user, everyone else per client IP. Limiter errors let the
// request through.
func GinMiddleware(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retry, err := l.Allow(c.Request.Context(), Key(c))
		if err != nil || allowed {
			c.Next()
			return
		}
		metrics.RateLimited.Inc()
		secs := int(math.Ceil(retry.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"type":    "error",
			"code":    "RATE_LIMITED",
			"message": "Too many requests. Try again shortly.",
		})
	}
}

// Key identifies the caller for rate limiting.
func Key(c *gin.Context) string {
	if claims, ok := auth.ClaimsFrom(c); ok && claims.Subject != "" {
		return "user:" + claims.Subject
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
