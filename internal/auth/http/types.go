package http

import (
	"context"

	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck-backend/internal/auth"
	"github.com/promptdeck/promptdeck-backend/internal/users"
)

// ProfileReader loads the stored users row for a uid.
type ProfileReader interface {
	GetByFirebaseUID(ctx context.Context, uid string) (users.Profile, bool, error)
}

type Handler struct {
	session  *auth.Session
	profiles ProfileReader
	log      *zap.Logger
}

// New builds the session handlers. profiles may be nil.
func New(session *auth.Session, profiles ProfileReader, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		session:  session,
		profiles: profiles,
		log:      log.Named("SessionHandler"),
	}
}

type signInRequest struct {
	IDToken string `json:"id_token"`
}
