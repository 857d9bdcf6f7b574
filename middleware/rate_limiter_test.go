package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachReflectAPI/internal/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("X-Forwarded-For", ip)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimitMiddlewareDeniesOverLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	h := RateLimitMiddleware(ratelimit.NewLimiter(client, "test"))(okHandler())

	for i := 0; i < DefaultAPILimit.MaxRequests; i++ {
		rr := doRequest(h, "203.0.113.7")
		require.Equal(t, http.StatusOK, rr.Code, "request %d should pass", i+1)
	}

	rr := doRequest(h, "203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitMiddlewareSetsHeaders(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	h := RateLimitMiddleware(ratelimit.NewLimiter(client, "test"))(okHandler())

	rr := doRequest(h, "203.0.113.8")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "120", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "119", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitMiddlewareIsolatesClients(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	h := RateLimitMiddleware(ratelimit.NewLimiter(client, "test"))(okHandler())

	for i := 0; i <= DefaultAPILimit.MaxRequests; i++ {
		doRequest(h, "203.0.113.9")
	}
	require.Equal(t, http.StatusTooManyRequests, doRequest(h, "203.0.113.9").Code)

	assert.Equal(t, http.StatusOK, doRequest(h, "203.0.113.10").Code)
}

func TestRateLimitMiddlewareFailsOpenWhenStoreDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := ratelimit.NewLimiter(client, "test")
	mr.Close()

	h := RateLimitMiddleware(limiter)(okHandler())

	rr := doRequest(h, "203.0.113.11")
	assert.Equal(t, http.StatusOK, rr.Code, "an unreachable store must not take the API down")
}

func TestRateLimitMiddlewareLocalFallback(t *testing.T) {
	h := RateLimitMiddleware(nil)(okHandler())

	// The local token bucket allows a burst of 30.
	denied := false
	for i := 0; i < 40; i++ {
		if doRequest(h, "203.0.113.12").Code == http.StatusTooManyRequests {
			denied = true
			break
		}
	}
	assert.True(t, denied, "local fallback should eventually deny a burst")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	assert.Equal(t, "203.0.113.50", ClientIP(req))
}

func TestFeatureKey(t *testing.T) {
	assert.Equal(t, "chat:user_abc", FeatureKey("chat", "user_abc"))
}
