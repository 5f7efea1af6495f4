package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exampin-backend/internal/response"
)

// AdminKeyHeader carries the admin API key.
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey guards admin routes with a shared key passed in
// X-Admin-Key or as a bearer token. EventSource clients cannot set headers
// and use ?admin_key= instead. An empty key disables the guard.
func RequireAdminKey(key string) gin.HandlerFunc {
	want := []byte(key)
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.Next()
			return
		}

		got := c.GetHeader(AdminKeyHeader)
		if got == "" {
			got = bearerToken(c)
		}
		if got == "" {
			got = c.Query("admin_key")
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrAdminKey)
			return
		}
		c.Next()
	}
}
