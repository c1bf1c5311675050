// Package trigger запускает потребителя переходов планирования удаления и
// передаёт их триггеру обновления аккаунта.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/journal-accounts/internal/billingprovider"
	"github.com/magabrotheeeer/journal-accounts/internal/cache"
	"github.com/magabrotheeeer/journal-accounts/internal/config"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/services/accounttrigger"
	"github.com/magabrotheeeer/journal-accounts/internal/storage"
)

// App представляет приложение триггера.
type App struct {
	trigger     *accounttrigger.Trigger
	db          *storage.Storage
	cache       *cache.Cache
	conn        *amqp.Connection
	ch          *amqp.Channel
	concurrency int
	logger      *slog.Logger
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

// New создает новый экземпляр приложения триггера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	app := &App{db: db, concurrency: cfg.ConsumerConcurrency, logger: logger}

	if err := waitForDB(ctx, db); err != nil {
		app.close()
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	app.conn = conn

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AccountsExchange, rabbitmq.AccountQueues())
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	app.ch = ch

	provider, err := billingprovider.New(cfg.Billing)
	if err != nil {
		app.close()
		return nil, err
	}

	var invalidator accounttrigger.Cache
	if c, err := cache.InitServer(ctx, cfg.RedisConnection); err != nil {
		logger.Warn("cache not initialized, continuing without it", sl.Err(err))
	} else {
		app.cache = c
		invalidator = c
	}

	app.trigger = accounttrigger.New(db, provider, invalidator, cache.UserKey, logger)
	return app, nil
}

// Run потребляет очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.DeletionScheduleQueue, a.concurrency,
		a.logger, a.trigger.HandleMessage)
	if err != nil {
		a.close()
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	a.logger.Info("account trigger consuming", slog.String("queue", rabbitmq.DeletionScheduleQueue))

	<-ctx.Done()

	a.logger.Info("shutting down account trigger")
	a.close()
	return nil
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
