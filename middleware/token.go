package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenVerifier is the subset of token.Store needed to gate a request.
type TokenVerifier interface {
	Verify(plain string) bool
}

// RequireToken gates a route group behind the single shared bearer secret,
// accepted either as "Authorization: Bearer <token>" or a "token" query
// parameter (the latter so the dev-terminal/session WebSocket upgrades and
// simple GET links can authenticate without a header). Generalized from
// the teacher's AuthRequired(jwtSecret) route-group idiom in main.go.
func RequireToken(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		plain := c.Query("token")
		if plain == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				plain = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if !tokens.Verify(plain) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or missing token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
