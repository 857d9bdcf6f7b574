package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authRequest(t *testing.T, header string) *httptest.ResponseRecorder {
	t.Helper()

	called := false
	h := ClerkAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code == http.StatusUnauthorized {
		assert.False(t, called, "rejected requests must not reach the handler")
	}
	return rr
}

func TestClerkAuthMiddlewareMissingHeader(t *testing.T) {
	rr := authRequest(t, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestClerkAuthMiddlewareWrongScheme(t *testing.T) {
	rr := authRequest(t, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestClerkAuthMiddlewareForgedToken(t *testing.T) {
	// A syntactically valid token signed with an arbitrary key has no valid
	// issuer signature and must be rejected.
	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		"sub": "user_forged",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("not-the-issuer-key"))
	require.NoError(t, err)

	rr := authRequest(t, "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetClerkIDAbsent(t *testing.T) {
	_, ok := GetClerkID(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
