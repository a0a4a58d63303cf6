package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/restreamer/internal/utils"
)

// RateLimitConfig configures a per client IP token bucket.
type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int
	SweepInterval     time.Duration
	IdleTTL           time.Duration
	TrustProxy        bool             // resolve IP from proxy headers when true
	Now               func() time.Time // defaults to time.Now
}

type client struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type clientLimiter struct {
	cfg       RateLimitConfig
	every     rate.Limit
	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

func newClientLimiter(cfg RateLimitConfig) *clientLimiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RefillPerIPPerMin < 1 {
		cfg.RefillPerIPPerMin = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &clientLimiter{
		cfg:       cfg,
		every:     rate.Limit(float64(cfg.RefillPerIPPerMin) / 60.0),
		clients:   make(map[string]*client, 64),
		lastSweep: cfg.Now(),
	}
}

func (l *clientLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval ||
		(l.cfg.MaxEntries > 0 && len(l.clients) >= l.cfg.MaxEntries) {
		l.sweepLocked(now)
	}

	c := l.clients[key]
	if c == nil {
		if l.cfg.MaxEntries > 0 && len(l.clients) >= l.cfg.MaxEntries {
			l.evictOldestLocked()
		}
		c = &client{lim: rate.NewLimiter(l.every, l.cfg.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.lim
}

func (l *clientLimiter) sweepLocked(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > l.cfg.IdleTTL {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

// evictOldestLocked drops the least recently seen client. It runs when
// the table is full and nothing was idle long enough to sweep.
func (l *clientLimiter) evictOldestLocked() {
	var oldest *string
	var seen time.Time
	for key, c := range l.clients {
		if oldest == nil || c.lastSeen.Before(seen) {
			k := key
			oldest, seen = &k, c.lastSeen
		}
	}
	if oldest != nil {
		delete(l.clients, *oldest)
	}
}

// allow takes one token for key. When none is left it reports how many
// seconds until one is.
func (l *clientLimiter) allow(key string, now time.Time) (ok bool, remaining int, retryAfterSec int) {
	lim := l.get(key, now)

	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		sec := int(math.Ceil(delay.Seconds()))
		if sec < 1 {
			sec = 1
		}
		return false, 0, sec
	}

	remaining = int(math.Floor(lim.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, 0
}

// RateLimit rejects clients that exhausted their bucket with 429.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newClientLimiter(cfg)
	limitStr := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := utils.ClientIP(r, l.cfg.TrustProxy)

			ok, remaining, retry := l.allow(key, l.cfg.Now())
			w.Header().Set("X-RateLimit-Limit", limitStr)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
