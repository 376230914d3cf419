package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ServiceKey = "admin_service"

// RequireAdmin guards the administrative HTTP surface. It expects the
// standard "Bearer <token>" Authorization header and aborts with 401 when
// the token is missing, malformed, or expired.
func RequireAdmin(tokens *AdminTokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token is missing"})
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims, err := tokens.Validate(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		// Expose the calling backend's name to handlers for audit logging
		c.Set(ServiceKey, claims.Service)
		c.Next()
	}
}
