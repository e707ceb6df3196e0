package middleware

import (
	"net/http"

	"luxestore-backend/internal/shared"

	"github.com/gin-gonic/gin"
)

// AdminMiddleware requires the admin or super_admin role. Super admin passes
// every admin gate.
func AdminMiddleware() gin.HandlerFunc {
	return requireRole(shared.RoleAdmin, shared.RoleSuperAdmin)
}

// SuperAdminMiddleware requires the super_admin role.
func SuperAdminMiddleware() gin.HandlerFunc {
	return requireRole(shared.RoleSuperAdmin)
}

func requireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleValue, exists := c.Get("role")
		if !exists {
			forbidden(c)
			return
		}

		role, ok := roleValue.(string)
		if !ok {
			forbidden(c)
			return
		}

		for _, a := range allowed {
			if role == a {
				c.Next()
				return
			}
		}
		forbidden(c)
	}
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{
		"success": false,
		"error":   "Access denied: insufficient role",
	})
	c.Abort()
}
