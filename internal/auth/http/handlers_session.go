package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck-backend/internal/auth"
)

// SignIn accepts a Firebase ID token in the JSON body or as a Bearer header
// and makes its user the active library owner.
func (h *Handler) SignIn(c *gin.Context) {
	var body signInRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid JSON body"})
			return
		}
	}
	token := body.IDToken
	if token == "" {
		token = auth.BearerToken(c)
	}

	user, err := h.session.SignIn(c.Request.Context(), token)
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	case errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
		return
	case err != nil:
		h.log.Error("Sign-in failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to sign in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

// Current returns the signed-in user and, when stored, their profile row.
func (h *Handler) Current(c *gin.Context) {
	user := h.session.CurrentUser()
	if user == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true, "user": nil})
		return
	}

	resp := gin.H{"ok": true, "user": user}
	if h.profiles != nil {
		profile, found, err := h.profiles.GetByFirebaseUID(c.Request.Context(), user.UID)
		if err != nil {
			h.log.Warn("Failed to load profile", zap.String("uid", user.UID), zap.Error(err))
		} else if found {
			resp["profile"] = profile
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SignOut(c *gin.Context) {
	h.session.SignOut()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
