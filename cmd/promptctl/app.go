package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck-backend/config"
	"github.com/promptdeck/promptdeck-backend/internal/auth"
	"github.com/promptdeck/promptdeck-backend/internal/bootstrap"
	"github.com/promptdeck/promptdeck-backend/internal/library"
	"github.com/promptdeck/promptdeck-backend/internal/logger"
	"github.com/promptdeck/promptdeck-backend/internal/storage/postgres"
	"github.com/promptdeck/promptdeck-backend/internal/storage/redisstore"
)

// app is an initialized library plus the handles it owns.
type app struct {
	cache *library.Cache
	state library.SyncState
	log   *zap.Logger
	rdb   *redis.Client
	lock  *redisstore.Lock
	db    *sql.DB
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(logger.Config{Level: logLevel, Encoding: "console"})
	if err != nil {
		return nil, err
	}

	rdb, err := bootstrap.OpenRedis(ctx, &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}

	a := &app{log: lg, rdb: rdb}
	// The API keeps its own copy of the snapshot in memory; writing under it
	// would lose changes on one side.
	if a.lock, err = redisstore.AcquireLock(ctx, rdb, cfg.Redis.KeyPrefix, "promptctl", redisstore.DefaultLockTTL, lg); err != nil {
		a.close()
		return nil, fmt.Errorf("%w; stop the API or use its HTTP endpoints", err)
	}
	opts := library.Options{
		Local:         redisstore.NewLocalStore(rdb, cfg.Redis.KeyPrefix),
		Auth:          auth.NewStatic(userID, userEmail),
		Logger:        lg,
		RetryAttempts: uint(cfg.Sync.RetryAttempts),
		RetryDelay:    cfg.Sync.RetryDelay,
	}
	if userID != "" {
		if a.db, err = postgres.Open(&cfg.Database); err != nil {
			a.close()
			return nil, err
		}
		opts.Remote = postgres.NewLibraryStore(a.db)
	}

	a.cache = library.New(opts)
	a.cache.Subscribe(func(n library.Notification) {
		if n.Level == library.LevelWarning || n.Level == library.LevelError {
			lg.Warn(n.Message, zap.String("op", n.Op), zap.String("id", n.EntityID))
		}
	})
	if a.state, err = a.cache.Init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// close drains queued sync work before releasing connections.
func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Flush(context.Background()); err != nil {
			a.log.Warn("Sync queue not drained", zap.Error(err))
		}
		a.cache.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.lock != nil {
		if err := a.lock.Release(context.Background()); err != nil {
			a.log.Warn("Library lock not released", zap.Error(err))
		}
	}
	_ = a.rdb.Close()
	_ = a.log.Sync()
}
