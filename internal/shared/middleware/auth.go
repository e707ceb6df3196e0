package middleware

import (
	"strings"

	"luxestore-backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the access token and stores userID/role in the
// request context. The token is accepted either as a Bearer header or as the
// HttpOnly "access_token" cookie.
func AuthMiddleware(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(401, gin.H{"success": false, "error": "missing access token"})
			c.Abort()
			return
		}

		claims, err := manager.ValidateToken(token)
		if err != nil {
			c.JSON(401, gin.H{"success": false, "error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	cookie, err := c.Cookie("access_token")
	if err != nil {
		return ""
	}
	return cookie
}
