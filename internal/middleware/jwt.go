package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exampin-backend/internal/response"
	"github.com/stemsi/exampin-backend/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for session token claims.
	ContextKeyClaims = "claims"
)

var errTokenMissing = errors.New("authorization header or token query required")

// TokenValidator parses session tokens.
type TokenValidator interface {
	ValidateToken(tokenStr string) (*service.SessionClaims, error)
}

// RequireSessionToken validates the session token issued on pin redemption.
// The token is read from the Authorization header, falling back to ?token=
// for WebSocket upgrades which cannot set headers.
func RequireSessionToken(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractAndValidateClaims(c, v)
		switch {
		case errors.Is(err, errTokenMissing):
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		case service.IsTokenExpired(err):
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
			return
		case err != nil:
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the session claims from the Gin context.
func GetClaims(c *gin.Context) *service.SessionClaims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func extractAndValidateClaims(c *gin.Context, v TokenValidator) (*service.SessionClaims, error) {
	tokenStr := bearerToken(c)
	if tokenStr == "" {
		tokenStr = c.Query("token")
	}
	if tokenStr == "" {
		return nil, errTokenMissing
	}
	return v.ValidateToken(tokenStr)
}
