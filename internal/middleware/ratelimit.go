package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/octobees/dealflow-crm/internal/config"
)

// RateLimiter applies a token bucket per authenticated subject, falling back
// to the client IP. A zero config disables limiting.
func RateLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Requests <= 0 || cfg.Interval <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}
	return newSubjectLimiter(cfg, time.Now).middleware
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// subjectLimiter keeps one bucket per key. A bucket idle for a whole interval
// is full again, so it is dropped and recreated on the next request.
type subjectLimiter struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastSweep time.Time

	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

func newSubjectLimiter(cfg config.RateLimitConfig, now func() time.Time) *subjectLimiter {
	perRequest := cfg.Interval / time.Duration(cfg.Requests)
	if perRequest <= 0 {
		perRequest = time.Second
	}
	return &subjectLimiter{
		entries:   make(map[string]*limiterEntry),
		lastSweep: now(),
		limit:     rate.Every(perRequest),
		burst:     cfg.Requests,
		idleTTL:   perRequest * time.Duration(cfg.Requests),
		now:       now,
	}
}

func (l *subjectLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweep(now)
	}

	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *subjectLimiter) sweep(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) >= l.idleTTL {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}

func (l *subjectLimiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key, _ := c.Get(ContextKeyUserID).(string)
		if key == "" {
			key = "ip:" + c.RealIP()
		}

		if !l.allow(key) {
			return errorJSON(c, http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}
