package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/quantumdatasynergy/contact-api/pkg/config"
	"github.com/quantumdatasynergy/contact-api/pkg/metrics"
)

// BurstConfig holds token bucket settings for the flood guard
type BurstConfig struct {
	// Rate is the number of requests allowed per second
	Rate float64
	// Size is the maximum number of requests allowed in a burst
	Size int
	// CleanupInterval is how often to sweep idle buckets
	CleanupInterval time.Duration
	// MaxAge is how long a bucket is kept after its last use
	MaxAge time.Duration
}

// BurstConfigFrom fills the sweep settings around the configured bucket.
func BurstConfigFrom(b config.Burst) BurstConfig {
	return BurstConfig{
		Rate:            b.Rate,
		Size:            b.Size,
		CleanupInterval: time.Minute,
		MaxAge:          5 * time.Minute,
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// BurstGuard is a per-IP token bucket with automatic cleanup
type BurstGuard struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	config   BurstConfig
	done     chan struct{}
	stopOnce sync.Once
}

// NewBurstGuard creates a guard and starts its cleanup goroutine
func NewBurstGuard(cfg BurstConfig) *BurstGuard {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 5 * time.Minute
	}

	g := &BurstGuard{
		buckets: make(map[string]*bucket),
		config:  cfg,
		done:    make(chan struct{}),
	}
	go g.cleanup()
	return g
}

// Allow reports whether a request from ip may proceed now
func (g *BurstGuard) Allow(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(g.config.Rate), g.config.Size)}
		g.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	return b.limiter.Allow()
}

// Middleware rejects over-limit clients with 429 before any handler runs.
// A guard with a zero rate lets everything through.
func (g *BurstGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.config.Rate <= 0 {
			c.Next()
			return
		}
		if !g.Allow(c.ClientIP()) {
			metrics.RateLimitRejected.WithLabelValues("burst").Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded, please try again later",
			})
			return
		}
		c.Next()
	}
}

func (g *BurstGuard) Config() BurstConfig {
	return g.config
}

// Stop stops the cleanup goroutine
func (g *BurstGuard) Stop() {
	g.stopOnce.Do(func() { close(g.done) })
}

func (g *BurstGuard) cleanup() {
	ticker := time.NewTicker(g.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.dropIdle()
		}
	}
}

func (g *BurstGuard) dropIdle() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for ip, b := range g.buckets {
		if now.Sub(b.lastSeen) > g.config.MaxAge {
			delete(g.buckets, ip)
		}
	}
}

// Len returns the number of tracked IPs
func (g *BurstGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buckets)
}
