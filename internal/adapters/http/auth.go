package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/ucode/internal/config"
	"github.com/dkeye/ucode/internal/domain"
)

// IdentityMiddleware binds the connection to the identity in a signed
// token. Without a configured secret every request passes untouched and
// identities stay whatever clients claim.
func IdentityMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	if cfg.JWTSecret == "" {
		return func(c *gin.Context) { c.Next() }
	}
	secret := []byte(cfg.JWTSecret)
	claim := cfg.IdentityClaim
	if claim == "" {
		claim = "email"
	}

	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token is required"})
			return
		}
		id, err := identityFromToken(token, secret, claim)
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set("identity", string(id))
		c.Next()
	}
}

// Browsers cannot set headers on a websocket upgrade, so ?token= works too.
func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}

func identityFromToken(raw string, secret []byte, claim string) (domain.Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	v, ok := claims[claim].(string)
	if !ok {
		return "", fmt.Errorf("claim %q missing", claim)
	}
	id, err := domain.ParseIdentity(v)
	if err != nil {
		return "", errors.Join(fmt.Errorf("claim %q", claim), err)
	}
	return id, nil
}
