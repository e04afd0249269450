package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lakehouse-dev/scheduler/internal/auth"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
)

// RequirePermission ensures the caller's role may perform act on obj.
// Ownership rules are enforced further down by the services.
func RequirePermission(enf *rbac.Enforcer, obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := auth.ActorFromContext(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		allowed, err := enf.Allowed(actor.Role, obj, act)
		if err != nil {
			slog.Error("Permission check failed", "error", err, "role", actor.Role, "obj", obj, "act", act)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Permission check failed"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAdmin ensures the user is an admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := auth.ActorFromContext(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		if !actor.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
