package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sunforge/solar-epc/httpx"
	"golang.org/x/time/rate"
)

// LimiterRegistry keeps one token bucket per client key.
type LimiterRegistry struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.RWMutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
}

func NewLimiterRegistry(perSecond float64, burst int) *LimiterRegistry {
	return &LimiterRegistry{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
		limiters: make(map[string]*limiterEntry),
	}
}

// GetOrCreate returns the limiter for key, creating it on first use.
func (r *LimiterRegistry) GetOrCreate(key string) *rate.Limiter {
	r.mu.RLock()
	e, ok := r.limiters[key]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if e, ok = r.limiters[key]; !ok {
			e = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
			r.limiters[key] = e
		}
		r.mu.Unlock()
	}

	e.mu.Lock()
	e.lastSeen = r.now()
	e.mu.Unlock()
	return e.limiter
}

// Prune drops limiters unused for longer than idle and returns how many were removed.
func (r *LimiterRegistry) Prune(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, e := range r.limiters {
		e.mu.Lock()
		stale := e.lastSeen.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(r.limiters, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (r *LimiterRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

// RateLimit rejects requests over the per-IP budget with 429.
// Run it after chi's RealIP so RemoteAddr holds the client address.
func (r *LimiterRegistry) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		lim := r.GetOrCreate(ClientIP(req))
		if !lim.Allow() {
			retry := 1
			if r.limit > 0 {
				retry = int(math.Ceil(1 / float64(r.limit)))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			httpx.JSONError(w, http.StatusTooManyRequests, "rate_limited", nil)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// ClientIP strips the port from RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
