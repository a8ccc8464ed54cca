package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptdeck/promptdeck-backend/internal/library"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	DB        string    `json:"db,omitempty"`
	Redis     string    `json:"redis,omitempty"`
	Sync      string    `json:"sync,omitempty"`
	Pending   int       `json:"pending"`
}

// Pinger is anything with a connectivity check, such as the Redis store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SyncReporter exposes the library's relation to the remote store.
type SyncReporter interface {
	State() library.SyncState
	PendingCount() int
}

type HealthHandler struct {
	serviceName string
	version     string
	db          *pgxpool.Pool
	redis       Pinger
	sync        SyncReporter
}

// NewHealthHandler builds the health endpoints. Any dependency may be nil.
func NewHealthHandler(serviceName, version string, db *pgxpool.Pool, redis Pinger, sync SyncReporter) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		db:          db,
		redis:       redis,
		sync:        sync,
	}
}

// HealthCheck reports "degraded" when the local store is down, since the
// library cannot persist changes without it. A down database only means the
// library is working offline.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
		DB:        "disabled",
		Redis:     "disabled",
	}

	pingCtx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
	defer cancel()

	if h.db != nil {
		resp.DB = upOrDown(h.db.Ping(pingCtx))
	}
	if h.redis != nil {
		resp.Redis = upOrDown(h.redis.Ping(pingCtx))
		if resp.Redis == "down" {
			resp.Status = "degraded"
		}
	}
	if h.sync != nil {
		resp.Sync = string(h.sync.State())
		resp.Pending = h.sync.PendingCount()
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}

func upOrDown(err error) string {
	if err != nil {
		return "down"
	}
	return "up"
}
