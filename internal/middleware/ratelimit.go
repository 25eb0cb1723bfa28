package middleware

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/voiceclone/pkg/errors"
	"github.com/charlesng35/voiceclone/pkg/metrics"
	"github.com/charlesng35/voiceclone/pkg/response"
)

// Limiter tracks per-client request counts within fixed windows, in memory,
// for the process lifetime. It is a fixed-window counter: bursts aligned to a
// window boundary can admit up to twice the budget in the worst case, which
// is acceptable for coarse abuse deterrence against a paid remote API.
//
// The limiter is constructed once in the process entry point and injected
// into each route that needs a budget; expired entries are removed by the
// maintenance sweep via EvictExpired.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	clock   func() time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

// Decision reports the outcome of a rate-limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// NewLimiter constructs an empty limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		clock:   time.Now,
	}
}

// WithClock overrides the limiter's clock. Intended for tests.
func (l *Limiter) WithClock(clock func() time.Time) *Limiter {
	if clock != nil {
		l.clock = clock
	}
	return l
}

// Check applies the fixed-window algorithm for identifier: a missing or
// expired entry is replaced with a fresh window and count 1; an entry at or
// over the budget is denied, reporting the existing reset time; otherwise the
// count is incremented.
func (l *Limiter) Check(identifier string, maxRequests int, window time.Duration) Decision {
	if maxRequests <= 0 || window <= 0 {
		return Decision{Allowed: true}
	}

	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identifier]
	if !ok || now.After(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(window)}
		l.entries[identifier] = e
		return Decision{Allowed: true, Remaining: maxRequests - 1, ResetAt: e.resetAt}
	}

	if e.count >= maxRequests {
		return Decision{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
	}

	e.count++
	return Decision{Allowed: true, Remaining: maxRequests - e.count, ResetAt: e.resetAt}
}

// EvictExpired removes entries whose window has passed and returns how many
// were dropped. Called periodically by the maintenance sweep so the map stays
// bounded under many distinct client identifiers.
func (l *Limiter) EvictExpired(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ClientIdentifier derives the rate-limit key for a request: the first
// X-Forwarded-For hop, then X-Real-IP, then the socket address, falling back
// to "unknown".
func ClientIdentifier(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if trimmed := strings.TrimSpace(first); trimmed != "" {
			return trimmed
		}
	}

	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}

	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	return "unknown"
}

// RateLimit returns a middleware enforcing maxRequests per window for each
// client identifier on the wrapped routes. scope names the budget and keys
// its window entries; middlewares layered on the same request must use
// distinct scopes so each budget counts the request once. Denials respond
// 429 with the reset time in the body.
func RateLimit(limiter *Limiter, scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := scope + "|" + ClientIdentifier(c) + "|" + c.FullPath()
		decision := limiter.Check(key, maxRequests, window)

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.ResetAt.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}

		if !decision.Allowed {
			metrics.RateLimitDenials.WithLabelValues(c.FullPath()).Inc()
			response.Error(c, appErrors.ErrRateLimit.WithDetails(
				"retry after "+decision.ResetAt.UTC().Format(time.RFC3339),
			))
			c.Abort()
			return
		}

		c.Next()
	}
}
