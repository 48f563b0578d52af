package httpserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/and161185/analysis-keeper/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// rateKey prefers the authenticated user, falling back to the client address.
func rateKey(c *gin.Context) string {
	if id, ok := UserIDFromCtx(c.Request.Context()); ok {
		return "user:" + id.String()
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func rejectRate(c *gin.Context, retryAfter string) {
	c.Header("Retry-After", retryAfter)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
}

// bucketIdle is how long an untouched bucket is kept. A bucket idle longer
// than it takes to refill is indistinguishable from a new one.
func bucketIdle(rps float64, burst int) time.Duration {
	idle := 10 * time.Minute
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return idle
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// buckets holds one token bucket per key and drops buckets left idle.
type buckets struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	idle      time.Duration
	now       func() time.Time
	m         map[string]*bucket
	lastSweep time.Time
}

func newBuckets(rps float64, burst int) *buckets {
	return &buckets{
		rps:   rate.Limit(rps),
		burst: burst,
		idle:  bucketIdle(rps, burst),
		now:   time.Now,
		m:     make(map[string]*bucket),
	}
}

func (b *buckets) allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) >= b.idle {
		for k, v := range b.m {
			if now.Sub(v.seen) >= b.idle {
				delete(b.m, k)
			}
		}
		b.lastSweep = now
	}

	bk, ok := b.m[key]
	if !ok {
		bk = &bucket{lim: rate.NewLimiter(b.rps, b.burst)}
		b.m[key] = bk
	}
	bk.seen = now
	return bk.lim.AllowN(now, 1)
}

func (b *buckets) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m)
}

// RateLimit enforces an in-process token bucket per key.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	return rateLimit(newBuckets(rps, burst))
}

func rateLimit(b *buckets) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !b.allow(rateKey(c)) {
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			rejectRate(c, "1")
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}

// RedisRateLimit is a fixed-window limiter shared by all instances: each key
// may make rps*window+burst requests per window.
func RedisRateLimit(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimit(rps, burst)
	}
	windowSeconds := int64(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	allowed := int64(rps*float64(windowSeconds)) + int64(burst)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		bucket := time.Now().Unix() / windowSeconds
		key := fmt.Sprintf("rl:%s:%d", rateKey(c), bucket)

		n, err := client.Incr(ctx, key).Result()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate limit check failed"})
			return
		}
		if n == 1 {
			_ = client.Expire(ctx, key, time.Duration(windowSeconds+1)*time.Second).Err()
		}
		if n > allowed {
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			rejectRate(c, fmt.Sprintf("%d", windowSeconds))
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
