package transport

import (
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pitabwire/bazaar/internal/config"
	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/model"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleAfter     = 10 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP with a token bucket.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	r        rate.Limit
	b        int
	proxies  []netip.Prefix
	metrics  *observability.Metrics
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter builds the login limiter from cfg and starts sweeping idle
// clients. A zero RPS disables throttling.
func NewRateLimiter(rl config.RateLimitConfig, metrics *observability.Metrics) *RateLimiter {
	cfg := rl.Login
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	l := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		r:        rate.Limit(cfg.RPS),
		b:        burst,
		proxies:  rl.Proxies(),
		metrics:  metrics,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	if cfg.RPS > 0 {
		go l.sweep()
	}
	return l
}

func (l *RateLimiter) sweep() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			for ip, e := range l.limiters {
				if l.now().Sub(e.lastSeen) > limiterIdleAfter {
					delete(l.limiters, ip)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *RateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.limiters[ip]
	if !ok {
		e = &ipLimiter{limiter: rate.NewLimiter(l.r, l.b)}
		l.limiters[ip] = e
	}
	e.lastSeen = l.now()
	return e.limiter
}

// Middleware answers RATE_LIMITED with a Retry-After header once a client
// spends its burst.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil || l.r <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := l.get(clientIP(r, l.proxies)).Reserve()
		if d := reservation.Delay(); d > 0 {
			reservation.Cancel()
			retryAfter := int(math.Ceil(d.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			l.metrics.RecordLoginAttempt("throttled")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			WriteError(w, r, model.NewRateLimitedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the peer address of r. Forwarding headers are honoured only
// when the peer is a trusted proxy; anyone else could rotate them freely.
func clientIP(r *http.Request, proxies []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !trusted(host, proxies) {
		return host
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return host
}

func trusted(host string, proxies []netip.Prefix) bool {
	if len(proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
