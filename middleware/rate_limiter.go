package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"coachReflectAPI/internal/ratelimit"
)

// Per-feature limit configs. The chat path is tighter because every request
// costs a model call; webhooks are verified by signature and not limited.
var (
	DefaultAPILimit = ratelimit.Config{MaxRequests: 120, Window: time.Minute}
	ChatLimit       = ratelimit.Config{MaxRequests: 20, Window: time.Minute}
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.Mutex
)

// RateLimitMiddleware limits requests per client against the shared Redis
// store, so the limit holds across independently scaled instances. When no
// Redis was configured the middleware degrades to a per-process token
// bucket, which only protects a single instance.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := ClientIP(r)

			if limiter == nil {
				if !localAllow(subject) {
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.Check(r.Context(), "api:"+subject, DefaultAPILimit)
			if err != nil {
				// Fail open on this path; Check already applied the policy.
				rateLimitErrors.Inc()
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(DefaultAPILimit.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(res.ResetIn.Seconds())))

			if !res.Allowed {
				rateLimitDenials.Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(res.ResetIn.Seconds())))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP prefers the proxy-forwarded address, falling back to the socket
// peer.
func ClientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}
	return ip
}

// FeatureKey builds the shared-store key for a feature-level limit, e.g.
// "chat:user_abc123".
func FeatureKey(feature, subject string) string {
	return fmt.Sprintf("%s:%s", feature, subject)
}

func localAllow(key string) bool {
	mu.Lock()
	defer mu.Unlock()

	v, exists := visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(5, 30)}
		visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// CleanupVisitors evicts idle entries from the local fallback map. Run it
// as a goroutine from main.go
func CleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		mu.Lock()
		for key, v := range visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(visitors, key)
			}
		}
		mu.Unlock()
	}
}
