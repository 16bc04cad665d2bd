// Package delivery реализует единственный разрешенный переход покупки
// paid -> delivered: администратор прикрепляет ссылку на готовый план питания.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/cache"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/storage/repository"
)

// Ошибки сервиса доставки.
var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrAlreadyDelivered = errors.New("purchase already delivered")
)

// Repository определяет методы хранилища, используемые сервисом доставки.
type Repository interface {
	GetPurchase(ctx context.Context, id string) (*models.PurchaseRecord, error)
	MarkDelivered(ctx context.Context, id, mealPlanURL string, deliveredAt time.Time) error
}

// Cache описывает кеш для инвалидации аккаунта после доставки.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// Service реализует операции доставки плана питания.
type Service struct {
	repo     Repository
	cacheSrv Cache
	log      *slog.Logger
	now      func() time.Time
}

// New создает новый экземпляр Service. cacheSrv может быть nil.
func New(repo Repository, cacheSrv Cache, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cacheSrv: cacheSrv,
		log:      log,
		now:      time.Now,
	}
}

// MarkDelivered помечает покупку доставленной и прикрепляет ссылку на план.
// Повторная доставка отклоняется: запись в журнале после перехода
// в delivered больше не изменяется.
func (s *Service) MarkDelivered(ctx context.Context, purchaseID, mealPlanURL string) (*models.PurchaseRecord, error) {
	const op = "delivery.MarkDelivered"
	log := s.log.With(slog.String("op", op), slog.String("purchase_id", purchaseID))

	deliveredAt := s.now()
	if err := s.repo.MarkDelivered(ctx, purchaseID, mealPlanURL, deliveredAt); err != nil {
		switch {
		case errors.Is(err, repository.ErrPurchaseNotFound):
			return nil, fmt.Errorf("%s: %w", op, ErrPurchaseNotFound)
		case errors.Is(err, repository.ErrPurchaseAlreadyDelivered):
			return nil, fmt.Errorf("%s: %w", op, ErrAlreadyDelivered)
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	purchase, err := s.repo.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cacheSrv != nil {
		if err := s.cacheSrv.Invalidate(ctx, cache.AccountKey(purchase.AccountUID)); err != nil {
			log.Warn("account cache invalidation failed", sl.Err(err))
		}
	}

	log.Info("purchase marked delivered",
		slog.String("account_uid", purchase.AccountUID),
		slog.String("meal_plan_url", mealPlanURL))
	return purchase, nil
}
