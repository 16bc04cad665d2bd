// Package reconciler реализует фоновую сверку журнала покупок.
//
// Идемпотентность держится на маркерах обработанных событий, поэтому
// периодическая сверка ищет два вида расхождений: покупки без маркера
// (запись появилась в обход пайплайна или маркер потерян) и несколько
// записей журнала на одну платежную сессию. Расхождения не исправляются
// автоматически, только логируются и считаются в метриках.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/metrics"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/pager"
)

// Причины расхождений в отчете сверки.
const (
	ReasonMissingEvent     = "missing_processed_event"
	ReasonDuplicateSession = "duplicate_session"
)

// Repository определяет методы хранилища, используемые сверкой.
type Repository interface {
	ListPurchases(ctx context.Context, after *models.PurchaseRecord, limit int) ([]models.PurchaseRecord, error)
	HasProcessedEventForSession(ctx context.Context, sessionID string) (bool, error)
	CountPurchasesBySession(ctx context.Context, sessionID string) (int, error)
}

// Service выполняет периодическую сверку журнала покупок.
type Service struct {
	repo     Repository
	log      *slog.Logger
	interval time.Duration
	pageSize int
}

// New создает новый экземпляр Service.
func New(repo Repository, log *slog.Logger, interval time.Duration, pageSize int) *Service {
	return &Service{
		repo:     repo,
		log:      log,
		interval: interval,
		pageSize: pageSize,
	}
}

// Run запускает цикл сверки: один проход сразу, затем по тикеру,
// до отмены контекста.
func (s *Service) Run(ctx context.Context) error {
	const op = "reconciler.Run"
	log := s.log.With(slog.String("op", op))
	log.Info("reconciler started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Scan(ctx); err != nil {
			log.Error("reconciliation pass failed", sl.Err(err))
		}
		select {
		case <-ctx.Done():
			log.Info("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Scan выполняет один проход по журналу покупок и возвращает найденные
// расхождения. Журнал вычитывается страницами через курсорный пейджер,
// чтобы не держать всю коллекцию в памяти одним запросом.
func (s *Service) Scan(ctx context.Context) ([]models.UnlinkedPurchase, error) {
	const op = "reconciler.Scan"
	log := s.log.With(slog.String("op", op))

	p := pager.New(pager.Config[models.PurchaseRecord]{
		PageSize: s.pageSize,
		Fetch: func(ctx context.Context, after *models.PurchaseRecord, limit int) ([]models.PurchaseRecord, error) {
			return s.repo.ListPurchases(ctx, after, limit)
		},
	})
	defer p.Close()

	var found []models.UnlinkedPurchase
	checkedSessions := make(map[string]struct{})

	if err := p.Load(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	seen := 0
	for {
		items := p.Items()
		for _, purchase := range items[seen:] {
			discrepancies, err := s.inspect(ctx, purchase, checkedSessions)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			found = append(found, discrepancies...)
		}
		seen = len(items)
		if !p.HasMore() {
			break
		}
		if err := p.LoadMore(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	for _, d := range found {
		metrics.ReconcilerDiscrepancies.WithLabelValues(d.Reason).Inc()
		log.Warn("ledger discrepancy",
			slog.String("reason", d.Reason),
			slog.String("purchase_id", d.Purchase.ID),
			slog.String("session_id", d.Purchase.StripeSessionID))
	}
	log.Info("reconciliation pass finished",
		slog.Int("purchases_scanned", seen),
		slog.Int("discrepancies", len(found)))
	return found, nil
}

// inspect проверяет одну запись журнала. Сессия проверяется на дубликаты
// только при первой встрече, чтобы не дублировать отчеты внутри прохода.
func (s *Service) inspect(ctx context.Context, purchase models.PurchaseRecord,
	checkedSessions map[string]struct{}) ([]models.UnlinkedPurchase, error) {
	var found []models.UnlinkedPurchase

	linked, err := s.repo.HasProcessedEventForSession(ctx, purchase.StripeSessionID)
	if err != nil {
		return nil, err
	}
	if !linked {
		found = append(found, models.UnlinkedPurchase{
			Purchase: purchase,
			Reason:   ReasonMissingEvent,
		})
	}

	if _, done := checkedSessions[purchase.StripeSessionID]; !done {
		checkedSessions[purchase.StripeSessionID] = struct{}{}
		count, err := s.repo.CountPurchasesBySession(ctx, purchase.StripeSessionID)
		if err != nil {
			return nil, err
		}
		if count > 1 {
			found = append(found, models.UnlinkedPurchase{
				Purchase: purchase,
				Reason:   ReasonDuplicateSession,
			})
		}
	}
	return found, nil
}
