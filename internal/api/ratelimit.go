package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// cleanupIdleDuration is how long an IP's bucket survives with no requests
// before the background sweep reclaims it, bounding memory growth from
// transient/spoofed IPs.
const cleanupIdleDuration = 10 * time.Minute

type ipBucket struct {
	tokens   float64
	lastSeen time.Time
	mu       sync.Mutex
}

// RateLimiter is a per-IP token bucket, configured from
// config.Config.RateLimitPerMinute/RateLimitBurst rather than compiled-in
// constants, so an operator can retune it without a redeploy.
type RateLimiter struct {
	rate    float64 // tokens added per second
	burst   float64 // max bucket capacity
	label   string  // human-readable limit, for the 429 body
	logger  *zap.Logger
	mu      sync.Mutex
	buckets map[string]*ipBucket
}

// NewRateLimiter builds a limiter allowing ratePerMin requests per minute
// per client IP, with a burst capacity of burst requests.
func NewRateLimiter(ratePerMin, burst int, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		rate:    float64(ratePerMin) / 60.0,
		burst:   float64(burst),
		label:   fmt.Sprintf("%d requests/minute per IP", ratePerMin),
		logger:  logger,
		buckets: make(map[string]*ipBucket),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	bucket, ok := rl.buckets[ip]
	if !ok {
		bucket = &ipBucket{tokens: rl.burst}
		rl.buckets[ip] = bucket
	}
	rl.mu.Unlock()

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(bucket.lastSeen).Seconds()
	bucket.tokens += elapsed * rl.rate
	if bucket.tokens > rl.burst {
		bucket.tokens = rl.burst
	}
	bucket.lastSeen = now

	if bucket.tokens >= 1.0 {
		bucket.tokens--
		return true, 0
	}

	retryAfter := time.Duration((1.0-bucket.tokens)/rl.rate*1000) * time.Millisecond
	return false, retryAfter
}

// Middleware returns a Gin handler that enforces the rate limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, retryAfter := rl.allow(ip)
		if !allowed {
			rl.logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.Duration("retry_after", retryAfter))
			c.Header("Retry-After", retryAfter.String())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"retryAfter": retryAfter.String(),
				"limit":      rl.label,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// cleanupLoop reclaims buckets idle for longer than cleanupIdleDuration.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-cleanupIdleDuration)
		rl.mu.Lock()
		reclaimed := 0
		for ip, b := range rl.buckets {
			b.mu.Lock()
			idle := b.lastSeen.Before(cutoff)
			b.mu.Unlock()
			if idle {
				delete(rl.buckets, ip)
				reclaimed++
			}
		}
		rl.mu.Unlock()
		if reclaimed > 0 {
			rl.logger.Debug("rate limiter reclaimed idle buckets", zap.Int("count", reclaimed))
		}
	}
}
