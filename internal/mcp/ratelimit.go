package mcp

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRateLimitPerMin = 60
	limiterIdleTTL         = 10 * time.Minute
)

// clientLimiter keeps one token bucket per token and remote host. The
// bucket refills at perMin/60 per second and holds perMin tokens.
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientBucket
	swept   time.Time
	now     func() time.Time
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newClientLimiter(perMin int) *clientLimiter {
	if perMin <= 0 {
		perMin = defaultRateLimitPerMin
	}
	return &clientLimiter{
		limit:   rate.Limit(float64(perMin) / 60),
		burst:   perMin,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

// reserve takes a token for key, returning how long the caller would have
// to wait when none is available.
func (l *clientLimiter) reserve(key string) (time.Duration, bool) {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.swept) > limiterIdleTTL {
		for k, b := range l.clients {
			if now.Sub(b.seen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.swept = now
	}
	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.seen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return time.Minute, false
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return delay, false
	}
	return 0, true
}

func (l *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l == nil {
			next.ServeHTTP(w, r)
			return
		}
		wait, ok := l.reserve(clientKey(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(wait time.Duration) int {
	return max(1, int(math.Ceil(wait.Seconds())))
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	if host == "" {
		host = "unknown"
	}
	if token, _ := bearerToken(r); token != "" {
		return token + "|" + host
	}
	return host
}
