// In-process token-bucket rate limiting.
//
// The router installs two limiters: a global one keyed by voter (or client
// IP) and a stricter one on vote casting keyed by voter and topic, since
// every accepted vote recomputes that topic's results. Idempotent replays
// flagged by IdempotencyValidator skip both.
//
// Buckets live in process memory; a horizontally scaled deployment needs a
// shared limiter in front of it.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	bucketIdleTTL = 10 * time.Minute
	sweepEvery    = 5000 // lookups between idle-bucket sweeps
)

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "votehub",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter.",
	},
	[]string{"scope"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

// keyFunc maps a request to its bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys by "user:<id>" when the caller is identified (context
// userID or X-User-ID) and by "ip:<addr>" otherwise.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id := requestUser(c); id != "" {
			return "user:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByVoterAndTopic keys routes under /topics/:id per caller and topic, e.g.
// "vote:user:abc123:<topic-id>".
func KeyByVoterAndTopic() keyFunc {
	base := KeyByUserOrIP()
	return func(c *gin.Context) string {
		return "vote:" + base(c) + ":" + c.Param("id")
	}
}

// requestUser returns the identified caller or "".
func requestUser(c *gin.Context) string {
	if s := c.GetString("userID"); s != "" {
		return s
	}
	if c.Request == nil {
		return ""
	}
	return strings.TrimSpace(c.GetHeader("X-User-ID"))
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Buckets idle for longer than
// bucketIdleTTL are dropped during periodic sweeps. Safe for concurrent use.
type RateLimiter struct {
	scope string
	rps   rate.Limit
	burst int
	keyFn keyFunc
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups uint64
}

// NewRateLimiter refills rps tokens per second up to burst (at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		scope:   "global",
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		ttl:     bucketIdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// WithScope names the limiter in votehub_http_rate_limited_total.
func (rl *RateLimiter) WithScope(scope string) *RateLimiter {
	if scope != "" {
		rl.scope = scope
	}
	return rl
}

// retryAfter is the whole number of seconds until one token refills.
func (rl *RateLimiter) retryAfter() string {
	if rl.rps <= 0 || math.IsInf(float64(rl.rps), 1) {
		return "1"
	}
	return strconv.Itoa(max(1, int(math.Ceil(1/float64(rl.rps)))))
}

// limiter returns the bucket for key, creating it on first use. The sweep
// runs before the lookup so a stale bucket for key itself is replaced too.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// IsRateBypass reports whether the request is an idempotent replay that
// limiters must let through.
func IsRateBypass(c *gin.Context) bool {
	return c.GetBool(ctxKeyRateBypass)
}

// Handler enforces the limit. Rejections get 429 rate_limited in the error
// envelope with Retry-After set to one refill interval.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.limiter(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		rateLimited.WithLabelValues(rl.scope).Inc()
		c.Header("Retry-After", rl.retryAfter())
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
