package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// maxTrackedClients bounds the bucket map; beyond it, buckets idle for a full
// refill window are pruned before admitting a new client.
const maxTrackedClients = 4096

type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

// rateLimiter is a per-client token bucket. A client may burst up to `limit`
// requests and then sustain `limit` per `per`, which fits the dashboard's
// traffic shape: a burst of list/stats calls on page load, then sparse
// polling alongside the websocket stream.
type rateLimiter struct {
	burst float64
	rate  float64 // tokens per second
	per   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

func newRateLimiter(limit int, per time.Duration) *rateLimiter {
	return &rateLimiter{
		burst:   float64(limit),
		rate:    float64(limit) / per.Seconds(),
		per:     per,
		now:     time.Now,
		buckets: make(map[string]*tokenBucket),
	}
}

func (l *rateLimiter) allow(client string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[client]
	if !ok {
		if len(l.buckets) >= maxTrackedClients {
			l.pruneLocked(now)
		}
		b = &tokenBucket{tokens: l.burst, lastSeen: now}
		l.buckets[client] = b
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *rateLimiter) pruneLocked(now time.Time) {
	for client, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.per {
			delete(l.buckets, client)
		}
	}
}

// RateLimit rejects clients that exceed limit requests per window with 429.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	l := newRateLimiter(limit, per)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first valid X-Forwarded-For hop, then the peer address.
func clientIP(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(part); ip != "" && net.ParseIP(ip) != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
