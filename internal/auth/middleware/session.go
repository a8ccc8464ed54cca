package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptdeck/promptdeck-backend/internal/auth"
	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// OwnerSource reports the signed-in library owner and verifies caller tokens.
// *auth.Session implements it.
type OwnerSource interface {
	CurrentUser() *domain.UserIdentity
	Verify(ctx context.Context, idToken string) (domain.UserIdentity, error)
}

// RequireOwner validates the caller's Firebase ID token against the
// signed-in user. While nobody is signed in the library is local-only and
// requests pass through without a token.
func RequireOwner(src OwnerSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := src.CurrentUser()
		if owner == nil {
			c.Next()
			return
		}

		token := auth.BearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing authorization token"})
			c.Abort()
			return
		}

		user, err := src.Verify(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
			c.Abort()
			return
		}
		if user.UID != owner.UID {
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "another user is signed in"})
			c.Abort()
			return
		}

		c.Set(auth.CtxFirebaseUID, user.UID)
		if user.Email != "" {
			c.Set(auth.CtxEmail, user.Email)
		}
		c.Next()
	}
}
