package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

const identityKey = "identity"

// IdentityResolver is satisfied by session.Manager.
type IdentityResolver interface {
	Resolve(ctx context.Context, r *http.Request) models.Identity
}

// Identity resolves the caller once per request. Unauthenticated callers get
// the Anonymous identity; rejecting them is left to RequireAuth.
func Identity(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(identityKey, resolver.Resolve(c.Request.Context(), c.Request))
		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}
	}
	identity, _ := v.(models.Identity)
	return identity
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentIdentity(c).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated", "message": "Not authenticated"})
			return
		}
		c.Next()
	}
}
