package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DevOwais28/Expense-Tracker/internal/access"
)

// RequireAction gates a route group on an action that needs no particular
// resource, such as the admin-only actions.
func RequireAction(action access.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := access.Authorize(CurrentIdentity(c), action, access.Resource{})
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, access.ErrNotAuthenticated):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated", "message": "Not authenticated"})
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Admin access required"})
		}
	}
}
