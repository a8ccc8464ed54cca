package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/promptdeck/promptdeck-backend/config"
	"github.com/promptdeck/promptdeck-backend/internal/auth"
	"github.com/promptdeck/promptdeck-backend/internal/bootstrap"
	"github.com/promptdeck/promptdeck-backend/internal/cronjob"
	"github.com/promptdeck/promptdeck-backend/internal/library"
	"github.com/promptdeck/promptdeck-backend/internal/logger"
	"github.com/promptdeck/promptdeck-backend/internal/metrics"
	"github.com/promptdeck/promptdeck-backend/internal/storage/postgres"
	"github.com/promptdeck/promptdeck-backend/internal/storage/redisstore"
	"github.com/promptdeck/promptdeck-backend/internal/users"
)

const serviceName = "promptdeck"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(logger.Config{Level: cfg.App.LogLevel, Encoding: cfg.App.LogEncoding})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := bootstrap.OpenRedis(ctx, &cfg.Redis)
	if err != nil {
		lg.Fatal("Local store unavailable", zap.Error(err))
	}
	defer rdb.Close()
	lock, err := redisstore.AcquireLock(ctx, rdb, cfg.Redis.KeyPrefix, serviceName, redisstore.DefaultLockTTL, lg)
	if err != nil {
		lg.Fatal("Local store is held by another process", zap.Error(err))
	}
	// Deferred before the cache so it is released after the cache closes.
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			lg.Warn("Library lock not released", zap.Error(err))
		}
	}()
	localStore := redisstore.NewLocalStore(rdb, cfg.Redis.KeyPrefix)
	events := redisstore.NewEventBus(rdb, cfg.Redis.KeyPrefix, lg)

	// The library starts offline when Postgres is down and catches up later.
	sqlDB, err := postgres.NewConnection(ctx, &cfg.Database)
	if err != nil {
		lg.Warn("Remote store unreachable, starting offline", zap.Error(err))
		if sqlDB, err = postgres.Open(&cfg.Database); err != nil {
			lg.Fatal("Remote store misconfigured", zap.Error(err))
		}
	}
	defer sqlDB.Close()

	pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: postgres.DSN(&cfg.Database), MaxConns: 5})
	if err != nil {
		lg.Warn("User store unavailable", zap.Error(err))
	} else {
		defer pool.Close()
	}

	var session *auth.Session
	var profiles *users.Repo
	if cfg.Firebase.CredentialsPath != "" {
		authClient, err := auth.InitializeFirebase(ctx, &cfg.Firebase)
		if err != nil {
			lg.Fatal("Firebase", zap.Error(err))
		}
		var recorder auth.UserRecorder
		if pool != nil {
			profiles = users.NewRepo(pool)
			recorder = profiles
		}
		session = auth.NewSession(authClient, recorder, lg)
	} else {
		lg.Warn("FIREBASE_CREDENTIALS_PATH not set, library runs local-only")
	}

	var limiter *rate.Limiter
	if cfg.Sync.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Sync.RateLimit), cfg.Sync.RateBurst)
	}

	opts := library.Options{
		Local:         localStore,
		Remote:        postgres.NewLibraryStore(sqlDB),
		Logger:        lg,
		RetryAttempts: uint(cfg.Sync.RetryAttempts),
		RetryDelay:    cfg.Sync.RetryDelay,
		Limiter:       limiter,
		Recorder:      metrics.NewSyncRecorder(prometheus.DefaultRegisterer),
	}
	if session != nil {
		opts.Auth = session
	}
	cache := library.New(opts)
	defer cache.Close()
	cache.Subscribe(events.Publish)

	state, err := cache.Init(ctx)
	if err != nil {
		lg.Fatal("Library init", zap.Error(err))
	}
	lg.Info("Prompt library ready", zap.String("state", string(state)), zap.Int("pending", cache.PendingCount()))

	scheduler := cronjob.NewScheduler(cache, cfg.Sync.RetrySchedule, lg)
	if err := scheduler.Start(); err != nil {
		lg.Fatal("Retry scheduler", zap.Error(err))
	}

	deps := bootstrap.RouterDeps{
		ServiceName: serviceName,
		Version:     cfg.App.Version,
		CORSOrigins: cfg.Server.CORSOrigins,
		DB:          pool,
		Redis:       localStore,
		Cache:       cache,
		Session:     session,
		Events:      events,
		Metrics:     prometheus.DefaultGatherer,
		Logger:      lg,
	}
	if profiles != nil {
		deps.Profiles = profiles
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           bootstrap.BuildRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("Listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("HTTP shutdown", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
	if err := cache.Flush(shutdownCtx); err != nil {
		lg.Warn("Pending sync not drained", zap.Error(err))
	}
}
