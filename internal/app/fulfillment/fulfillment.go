// Package fulfillment собирает HTTP-приложение сервиса фулфилмента:
// хранилище, кеш, очередь уведомлений, сервисы и маршруты.
package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/cache"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/config"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/migrations"
	accountservice "github.com/magabrotheeeer/mealplan-fulfillment/internal/services/account"
	deliveryservice "github.com/magabrotheeeer/mealplan-fulfillment/internal/services/delivery"
	fulfillmentservice "github.com/magabrotheeeer/mealplan-fulfillment/internal/services/fulfillment"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер и внешние соединения.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New собирает приложение: подключает PostgreSQL, применяет миграции,
// поднимает Redis и RabbitMQ, строит сервисы и регистрирует маршруты.
// Очередь уведомлений опциональна: без сконфигурированного брокера
// сервис работает, но письма-подтверждения не отправляются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	var (
		conn     *amqp.Connection
		ch       *amqp.Channel
		notifier fulfillmentservice.Notifier
	)
	if cfg.RabbitMQURL != "" {
		conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			return nil, err
		}
		ch, err = rabbitmq.SetupChannel(conn, rabbitmq.GetPurchaseQueues())
		if err != nil {
			conn.Close()
			return nil, err
		}
		notifier = rabbitmq.NewPurchaseNotifier(ch)
	} else {
		logger.Warn("rabbitmq url is empty, purchase notifications disabled")
	}

	fulfillmentService := fulfillmentservice.New(db, cacheRedis, notifier, logger)
	accountService := accountservice.New(db, cacheRedis, logger)
	deliveryService := deliveryservice.New(db, cacheRedis, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, db, fulfillmentService, accountService, deliveryService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до ошибки сервера
// или отмены контекста, после чего гасит сервер и закрывает соединения.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
