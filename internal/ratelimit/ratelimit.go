// Package ratelimit throttles the public app-proxy routes with one token
// bucket per key. Storefront traffic is keyed by shop and client address so a
// single noisy visitor cannot exhaust a merchant's budget.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/playku/playku/internal/httputil"
)

// KeyFunc picks the bucket a request draws from.
type KeyFunc func(r *http.Request) string

// ByClientIP keys on the first forwarded hop.
func ByClientIP(r *http.Request) string {
	return httputil.ClientIP(r)
}

// ByShopAndIP keys on the shop query parameter plus the client address.
func ByShopAndIP(r *http.Request) string {
	return r.URL.Query().Get("shop") + "|" + httputil.ClientIP(r)
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64

	key        KeyFunc
	retryAfter time.Duration
	idleTTL    time.Duration
	now        func() time.Time
}

type Option func(*Limiter)

func WithKey(fn KeyFunc) Option {
	return func(l *Limiter) { l.key = fn }
}

func WithRetryAfter(d time.Duration) Option {
	return func(l *Limiter) { l.retryAfter = d }
}

func withClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func NewLimiter(requestsPerSecond float64, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		buckets:    make(map[string]*bucket),
		rate:       requestsPerSecond,
		burst:      float64(burst),
		key:        ByClientIP,
		retryAfter: 10 * time.Second,
		idleTTL:    10 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		l.buckets[key] = &bucket{tokens: l.burst - 1, lastSeen: now}
		return l.burst >= 1
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.rate
	b.lastSeen = now
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep forgets buckets idle for longer than the TTL and returns how many
// remain.
func (l *Limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
	return len(l.buckets)
}

// Run sweeps idle buckets every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(l.key(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.retryAfter.Seconds())))
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
