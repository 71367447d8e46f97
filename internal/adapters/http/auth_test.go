package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/ucode/internal/config"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func whoami(cfg config.AuthConfig) *gin.Engine {
	r := gin.New()
	r.GET("/me", IdentityMiddleware(cfg), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("identity"))
	})
	return r
}

func TestIdentityMiddlewareDisabled(t *testing.T) {
	r := whoami(config.AuthConfig{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestIdentityMiddleware(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "s3cret", IdentityClaim: "email"}
	r := whoami(cfg)
	exp := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name   string
		req    func() *http.Request
		status int
		body   string
	}{
		{
			name: "bearer header",
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/me", nil)
				req.Header.Set("Authorization", "Bearer "+sign(t, "s3cret", jwt.MapClaims{"email": "a@x.com", "exp": exp}))
				return req
			},
			status: http.StatusOK,
			body:   "a@x.com",
		},
		{
			name: "query token",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/me?token="+sign(t, "s3cret", jwt.MapClaims{"email": "b@x.com", "exp": exp}), nil)
			},
			status: http.StatusOK,
			body:   "b@x.com",
		},
		{
			name:   "missing token",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/me", nil) },
			status: http.StatusUnauthorized,
		},
		{
			name: "wrong secret",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/me?token="+sign(t, "other", jwt.MapClaims{"email": "a@x.com", "exp": exp}), nil)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "expired",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/me?token="+sign(t, "s3cret", jwt.MapClaims{"email": "a@x.com", "exp": time.Now().Add(-time.Hour).Unix()}), nil)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "no expiry",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/me?token="+sign(t, "s3cret", jwt.MapClaims{"email": "a@x.com"}), nil)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "claim missing",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/me?token="+sign(t, "s3cret", jwt.MapClaims{"sub": "42", "exp": exp}), nil)
			},
			status: http.StatusUnauthorized,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, tc.req())
			assert.Equal(t, tc.status, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}
