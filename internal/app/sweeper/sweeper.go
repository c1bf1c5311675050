// Package sweeper запускает ежедневную очистку аккаунтов, у которых истёк
// период ожидания удаления.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/journal-accounts/internal/billingprovider"
	"github.com/magabrotheeeer/journal-accounts/internal/cache"
	"github.com/magabrotheeeer/journal-accounts/internal/config"
	"github.com/magabrotheeeer/journal-accounts/internal/identity"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/objectstore"
	"github.com/magabrotheeeer/journal-accounts/internal/services/deletion"
	"github.com/magabrotheeeer/journal-accounts/internal/storage"
)

// App представляет приложение очистки.
type App struct {
	deletion *deletion.Service
	db       *storage.Storage
	cache    *cache.Cache
	logger   *slog.Logger
}

func waitForDB(ctx context.Context, db *storage.Storage) error {
	for range 10 {
		if err := storage.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения очистки.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	app := &App{db: db, logger: logger}

	if err := waitForDB(ctx, db); err != nil {
		app.close()
		return nil, err
	}

	// Кэш только сбрасывается после удаления, очистка идёт и без него.
	if c, err := cache.InitServer(ctx, cfg.RedisConnection); err != nil {
		logger.Warn("cache not initialized, continuing without it", sl.Err(err))
	} else {
		app.cache = c
	}

	provider, err := billingprovider.New(cfg.Billing)
	if err != nil {
		app.close()
		return nil, err
	}
	objects, err := objectstore.New(ctx, cfg.ObjectStorage, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	deps := deletion.Deps{
		Repo:     db,
		Billing:  provider,
		Objects:  objects,
		Identity: identity.New(db),
		CacheKey: cache.UserKey,
	}
	if app.cache != nil {
		deps.Cache = app.cache
	}

	app.deletion = deletion.New(deps, deletion.Options{
		GracePeriod:    cfg.GracePeriod,
		SweepInterval:  cfg.SweepInterval,
		AccountTimeout: cfg.SweepAccountTimeout,
		EntryBatch:     cfg.EntryDeleteBatch,
	}, logger)
	return app, nil
}

// Run выполняет очистку сразу и затем раз в SweepInterval до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.deletion.RunDaily(ctx)
	a.logger.Info("shutting down deletion sweeper")
	a.close()
	return nil
}

func (a *App) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
