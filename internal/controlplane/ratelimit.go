package controlplane

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-client request limiting.
type RateLimitConfig struct {
	// Window and Max allow Max requests per Window per client address.
	Window time.Duration
	Max    int
	// Exempt lists paths that are never limited.
	Exempt []string
}

type rateLimitEntry struct {
	limiter     *rate.Limiter
	windowStart time.Time
}

// rateLimiter admits at most Max requests per client in each fixed Window.
// Each window gets a fresh bucket of Max tokens that refills one token per
// Window, so refill can never add a whole token before the window resets.
type rateLimiter struct {
	mu          sync.Mutex
	burst       int
	window      time.Duration
	entries     map[string]*rateLimitEntry
	lastCleanup time.Time
	now         func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		burst:       cfg.Max,
		window:      cfg.Window,
		entries:     make(map[string]*rateLimitEntry),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// allow consumes one token for key. When denied it returns how long until the
// client's window resets.
func (r *rateLimiter) allow(key string) (ok bool, remaining int, retryAfter time.Duration) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Entries whose window has ended hold nothing worth keeping.
	if now.Sub(r.lastCleanup) >= r.window {
		for k, entry := range r.entries {
			if now.Sub(entry.windowStart) >= r.window {
				delete(r.entries, k)
			}
		}
		r.lastCleanup = now
	}

	entry, found := r.entries[key]
	if !found || now.Sub(entry.windowStart) >= r.window {
		entry = &rateLimitEntry{
			limiter:     rate.NewLimiter(rate.Every(r.window), r.burst),
			windowStart: now,
		}
		r.entries[key] = entry
	}

	if !entry.limiter.AllowN(now, 1) {
		return false, 0, entry.windowStart.Add(r.window).Sub(now)
	}
	return true, int(math.Max(0, math.Floor(entry.limiter.TokensAt(now)))), 0
}

func rateLimitMiddleware(r *rateLimiter, cfg RateLimitConfig) gin.HandlerFunc {
	exempt := make(map[string]bool, len(cfg.Exempt))
	for _, p := range cfg.Exempt {
		exempt[p] = true
	}
	window := describeWindow(cfg.Window)

	return func(c *gin.Context) {
		if exempt[c.Request.URL.Path] || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		ok, remaining, retryAfter := r.allow(c.ClientIP())
		c.Header("RateLimit-Limit", strconv.Itoa(cfg.Max))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		if ok {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      "Too many requests from this IP, please try again later.",
			"retryAfter": window,
		})
	}
}

// describeWindow renders a window the way the 429 body reports it, e.g. "15 minutes".
func describeWindow(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(math.Ceil(d.Seconds())), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
