package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/talentgate/exam-backend/internal/response"
	"k8s.io/utils/clock"
)

// RateLimiter implements a simple per-IP token bucket rate limiter.
type RateLimiter struct {
	clk      clock.PassiveClock
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // Tokens per interval
	interval time.Duration // Refill interval
}

type visitor struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter (e.g., 60 requests per minute). A
// nil clock uses the wall clock.
func NewRateLimiter(rate int, interval time.Duration, clk clock.PassiveClock) *RateLimiter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if rate <= 0 {
		rate = 1
	}
	return &RateLimiter{
		clk:      clk,
		visitors: make(map[string]*visitor),
		rate:     rate,
		interval: interval,
	}
}

// Run evicts stale visitors every minute until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.cleanup()
		}
	}
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, wait := rl.allow(c.ClientIP()); !ok {
			c.Header("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

// allow takes one token for ip. When the bucket is empty it reports how
// long until the next refill.
func (rl *RateLimiter) allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clk.Now()
	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{tokens: rl.rate, lastSeen: now}
		rl.visitors[ip] = v
	}

	// Refill whole intervals only; the remainder carries over.
	if elapsed := now.Sub(v.lastSeen); elapsed >= rl.interval {
		intervals := int(elapsed / rl.interval)
		v.tokens = min(rl.rate, v.tokens+intervals*rl.rate)
		v.lastSeen = v.lastSeen.Add(time.Duration(intervals) * rl.interval)
	}

	if v.tokens <= 0 {
		return false, rl.interval - now.Sub(v.lastSeen)
	}
	v.tokens--
	return true, 0
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.clk.Now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > 3*rl.interval {
			delete(rl.visitors, ip)
		}
	}
}
