package server

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/54b3r/kbai-go/internal/logging"
)

// Per-client token bucket defaults for /api/ask and /api/tools.
const (
	defaultRateLimit = 10
	defaultRateBurst = 20
)

// limiterIdle is how long a client's bucket survives without requests.
const limiterIdle = 5 * time.Minute

// rateLimiter enforces a token bucket per client IP. Buckets live in a TTL
// cache; every hit slides the expiry, and the cache janitor drops idle ones.
type rateLimiter struct {
	buckets *cache.Cache
	rps     rate.Limit
	burst   int
	log     *slog.Logger
}

// newRateLimiter returns the limiter and a stop function that drops every
// bucket. The cache janitor exits once the limiter is unreachable.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	c := cache.New(limiterIdle, time.Minute)
	return &rateLimiter{
		buckets: c,
		rps:     rate.Limit(rps),
		burst:   burst,
		log:     log,
	}, func() { c.Flush() }
}

// getLimiter returns the bucket for ip, creating it on first use.
func (rl *rateLimiter) getLimiter(ip string) *rate.Limiter {
	if v, ok := rl.buckets.Get(ip); ok {
		l := v.(*rate.Limiter)
		rl.buckets.Set(ip, l, cache.DefaultExpiration)
		return l
	}
	l := rate.NewLimiter(rl.rps, rl.burst)
	// Add loses to a concurrent first request from the same ip; use theirs.
	if err := rl.buckets.Add(ip, l, cache.DefaultExpiration); err != nil {
		if v, ok := rl.buckets.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// tracked reports how many clients currently hold a bucket.
func (rl *rateLimiter) tracked() int { return rl.buckets.ItemCount() }

// middleware rejects over-limit requests with 429 and a Retry-After hint
// derived from the bucket refill rate.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	retryAfter := "1"
	if rl.rps > 0 && rl.rps < 1 {
		retryAfter = strconv.Itoa(int(1/float64(rl.rps)) + 1)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.getLimiter(ip).Allow() {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("route", r.Pattern),
			)
			w.Header().Set("Retry-After", retryAfter)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the host part of RemoteAddr. X-Forwarded-For is ignored; the
// server binds to loopback by default.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
