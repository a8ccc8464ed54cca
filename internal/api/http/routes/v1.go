package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck-backend/internal/api/http/prompts"
	"github.com/promptdeck/promptdeck-backend/internal/auth"
	authhttp "github.com/promptdeck/promptdeck-backend/internal/auth/http"
	authmw "github.com/promptdeck/promptdeck-backend/internal/auth/middleware"
	"github.com/promptdeck/promptdeck-backend/internal/library"
)

type V1Deps struct {
	Cache    *library.Cache
	Session  *auth.Session
	Profiles authhttp.ProfileReader
	Events   prompts.EventSource
	Logger   *zap.Logger
}

// RegisterV1 mounts the session and prompt library API. The library stays
// usable while signed out; it then runs local-only. Once a user is signed in
// every route, sign-out and re-sign-in included, needs that user's token.
func RegisterV1(r *gin.Engine, dep V1Deps) {
	api := r.Group("/api/v1")

	if dep.Session != nil {
		api.Use(authmw.RequireOwner(dep.Session))
		authhttp.New(dep.Session, dep.Profiles, dep.Logger).Register(api)
	}

	if dep.Cache != nil {
		prompts.Register(api, dep.Cache, dep.Events, dep.Logger)
	}
}
