// Package reconciler собирает воркер фоновой сверки журнала покупок.
package reconciler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/config"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	reconcilerservice "github.com/magabrotheeeer/mealplan-fulfillment/internal/services/reconciler"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/storage/repository"
)

// App инкапсулирует воркер сверки и соединение с базой.
type App struct {
	service *reconcilerservice.Service
	logger  *slog.Logger
	db      *repository.Storage
}

// New собирает воркер: подключает PostgreSQL и строит сервис сверки.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}

	service := reconcilerservice.New(db, logger, cfg.ReconcileInterval, cfg.ReconcilePageSize)

	return &App{
		service: service,
		logger:  logger,
		db:      db,
	}, nil
}

// Run запускает цикл сверки до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := a.service.Run(ctx)
	if closeErr := a.db.DB.Close(); closeErr != nil {
		a.logger.Error("failed to close database", sl.Err(closeErr))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
