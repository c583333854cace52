package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/likecoin/likecoin-button/internal/httpx"
)

const defaultLimiterTTL = 10 * time.Minute

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket pool keyed by remote IP.
type RateLimiter struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time
}

// NewRateLimiter builds a pool; rps <= 0 or burst <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		m:     make(map[string]*limiterEntry),
		rps:   rate.Limit(rps),
		burst: burst,
		ttl:   defaultLimiterTTL,
		now:   time.Now,
	}
}

// Allow checks the limiter for key.
func (p *RateLimiter) Allow(key string) bool {
	if p.rps <= 0 || p.burst <= 0 {
		return true
	}
	now := p.now()
	p.mu.Lock()
	e, ok := p.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(p.rps, p.burst)}
		p.m[key] = e
	}
	e.lastSeen = now
	p.mu.Unlock()
	return e.l.AllowN(now, 1)
}

// Sweep drops limiters not seen within the TTL and reports how many were removed.
func (p *RateLimiter) Sweep() int {
	cutoff := p.now().Add(-p.ttl)
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
			removed++
		}
	}
	return removed
}

// Middleware rejects requests over the limit with 429.
func (p *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.Allow(clientKey(r)) {
			httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeRateLimited, "too many requests", http.StatusTooManyRequests).WithRetryAfter(time.Second))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
