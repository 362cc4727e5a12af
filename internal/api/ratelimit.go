package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client address. Buckets idle for
// longer than limiterIdleTTL are dropped.
type rateLimiter struct {
	limit     rate.Limit
	burst     int
	clientIP  func(*http.Request) string
	now       func() time.Time
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

// newRateLimiter returns nil when perSecond is not positive; a nil limiter
// lets every request through.
func newRateLimiter(perSecond float64, burst int, clientIP func(*http.Request) string) *rateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		clientIP: clientIP,
		now:      time.Now,
		clients:  make(map[string]*clientLimiter),
	}
}

func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}
	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (s *Server) rateLimited(fn http.HandlerFunc) http.HandlerFunc {
	if s.publicLimiter == nil {
		return fn
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.publicLimiter.allow(s.publicLimiter.clientIP(r)) {
			s.metrics.observeRateLimited(r)
			retry := time.Duration(float64(time.Second) / float64(s.publicLimiter.limit))
			if retry < time.Second {
				retry = time.Second
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)))
			jsonError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		fn(w, r)
	}
}
