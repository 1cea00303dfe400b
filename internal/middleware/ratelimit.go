package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/hongminglow/kaisurf-be/internal/http/respond"
	"github.com/hongminglow/kaisurf-be/internal/logging"
)

const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per client address.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rate     rate.Limit
	burst    int
	log      logrus.FieldLogger
	now      func() time.Time
	proxies  []netip.Prefix
}

// NewRateLimiter allows rps requests per second per client with the given
// burst. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int, log logrus.FieldLogger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		log:      log,
		now:      time.Now,
	}
}

// TrustProxies lets requests arriving from these networks name their client
// through X-Forwarded-For. Without any, limits key on the peer address.
func (rl *RateLimiter) TrustProxies(prefixes ...netip.Prefix) {
	rl.proxies = append(rl.proxies, prefixes...)
}

// Handler rejects requests over the limit with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	if rl.rate <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.clientKey(r)
		if !rl.allow(key) {
			logging.FromContext(r.Context(), rl.log).WithFields(logrus.Fields{
				"client": key,
				"path":   r.URL.Path,
			}).Warn("rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			respond.Error(w, http.StatusTooManyRequests, "Too many requests, slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Sweep drops limiters idle for longer than the idle TTL and returns how many
// remain.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleLimiterTTL)
	for key, cl := range rl.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
	return len(rl.limiters)
}

// StartSweeper runs Sweep every interval until stop is closed.
func (rl *RateLimiter) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// clientKey returns the peer address, unless the peer is a trusted proxy. Then
// X-Forwarded-For is walked from the right and the first hop that is not
// itself a trusted proxy wins; hops further left are client-supplied.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	remote := remoteHost(r)
	if !rl.trusted(remote) {
		return remote
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !rl.trusted(hop) {
			return hop
		}
	}
	return remote
}

func (rl *RateLimiter) trusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range rl.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
