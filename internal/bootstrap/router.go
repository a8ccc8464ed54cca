package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpapi "github.com/promptdeck/promptdeck-backend/internal/api/http"
	"github.com/promptdeck/promptdeck-backend/internal/api/http/middleware"
	"github.com/promptdeck/promptdeck-backend/internal/api/http/prompts"
	"github.com/promptdeck/promptdeck-backend/internal/api/http/routes"
	"github.com/promptdeck/promptdeck-backend/internal/auth"
	authhttp "github.com/promptdeck/promptdeck-backend/internal/auth/http"
	"github.com/promptdeck/promptdeck-backend/internal/library"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	CORSOrigins []string

	DB       *pgxpool.Pool
	Redis    httpapi.Pinger
	Cache    *library.Cache
	Session  *auth.Session
	Profiles authhttp.ProfileReader
	Events   prompts.EventSource
	Metrics  prometheus.Gatherer
	Logger   *zap.Logger
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(dep.Logger))
	r.Use(cors.New(corsConfig(dep.CORSOrigins)))

	var syncReporter httpapi.SyncReporter
	if dep.Cache != nil {
		syncReporter = dep.Cache
	}
	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis, syncReporter)
	healthHandler.RegisterRoutes(r)

	if dep.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(dep.Metrics, promhttp.HandlerOpts{})))
	}

	routes.RegisterV1(r, routes.V1Deps{
		Cache:    dep.Cache,
		Session:  dep.Session,
		Profiles: dep.Profiles,
		Events:   dep.Events,
		Logger:   dep.Logger,
	})

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{middleware.HeaderRequestID, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
