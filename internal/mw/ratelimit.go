package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterIdle is how long a client's bucket survives without requests.
const limiterIdle = 10 * time.Minute

// ClientLimiter keeps one token bucket per client IP. Buckets of clients
// that stay quiet for longer than the idle window are evicted.
type ClientLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	r        rate.Limit
	b        int
}

// NewClientLimiter creates a ClientLimiter allowing r requests per second with bursts of b.
func NewClientLimiter(r rate.Limit, b int, idle time.Duration) *ClientLimiter {
	return &ClientLimiter{
		limiters: cache.New(idle, idle),
		r:        r,
		b:        b,
	}
}

// Get returns the bucket of ip, creating it on first use.
func (l *ClientLimiter) Get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.limiters.Get(ip); ok {
		limiter := v.(*rate.Limiter)
		l.limiters.SetDefault(ip, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(l.r, l.b)
	l.limiters.SetDefault(ip, limiter)
	return limiter
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewClientLimiter(r, b, limiterIdle)
	retry := strconv.Itoa(retryAfterSeconds(r))
	return func(c *gin.Context) {
		if !limiter.Get(c.ClientIP()).Allow() {
			c.Header("Retry-After", retry)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// retryAfterSeconds is the time until one token is refilled, rounded up.
func retryAfterSeconds(r rate.Limit) int {
	if r <= 0 || r == rate.Inf {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(r))))
}
