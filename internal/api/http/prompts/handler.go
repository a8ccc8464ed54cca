package prompts

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck-backend/internal/library"
	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// EventSource streams library notifications, typically from Redis Pub/Sub.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan library.Notification, error)
}

type Handler struct {
	cache  *library.Cache
	events EventSource
	log    *zap.Logger
}

// Register mounts the prompt library routes on rg. events may be nil, in
// which case the stream is served from the cache's own notifications.
func Register(rg *gin.RouterGroup, cache *library.Cache, events EventSource, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{cache: cache, events: events, log: log.Named("PromptsHandler")}

	p := rg.Group("/prompts")
	p.GET("", h.listPrompts)
	p.POST("", h.createPrompt)
	p.GET("/:id", h.getPrompt)
	p.PATCH("/:id", h.updatePrompt)
	p.DELETE("/:id", h.deletePrompt)
	p.POST("/:id/favorite", h.toggleFavorite)
	p.POST("/:id/duplicate", h.duplicatePrompt)
	p.POST("/:id/run", h.recordRun)
	p.POST("/:id/view", h.recordView)
	p.GET("/:id/versions", h.versions)

	rg.GET("/favorites", h.favorites)

	f := rg.Group("/folders")
	f.GET("", h.listFolders)
	f.POST("", h.createFolder)
	f.GET("/:id", h.getFolder)
	f.PATCH("/:id", h.updateFolder)
	f.DELETE("/:id", h.deleteFolder)
	f.GET("/:id/children", h.children)

	rg.POST("/import", h.importLibrary)
	rg.GET("/export", h.exportLibrary)

	rg.GET("/preferences", h.getPreferences)
	rg.PUT("/preferences", h.putPreferences)

	rg.GET("/sync", h.syncStatus)
	rg.POST("/sync", h.retrySync)
	rg.GET("/events", h.stream)
}

// fail writes the error with the status its kind maps to.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrFolderCycle),
		errors.Is(err, domain.ErrFolderDepth),
		errors.Is(err, domain.ErrMalformedImport):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrPromptNotFound), errors.Is(err, domain.ErrFolderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotSignedIn):
		status = http.StatusUnauthorized
	default:
		h.log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}

func badBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
}
