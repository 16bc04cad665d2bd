// Package fulfillment содержит бизнес-логику обработки события оплаты:
// guard идемпотентности, синхронизацию entitlement-полей аккаунта,
// запись в журнал покупок и начисление реферального кредита.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/cache"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/metrics"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/storage/repository"
)

// Закрытое множество тарифов. Событие с тарифом вне множества —
// фатальная ошибка синхронизации.
const (
	TierBasic = "Basic"
	TierPro   = "Pro"
	TierElite = "Elite"
)

// Фатальные ошибки синхронизации: запись в журнал не создается, событие
// не помечается обработанным, повторная доставка безопасна.
var (
	ErrMissingPlanMetadata = errors.New("event has no plan metadata")
	ErrInvalidPlanTier     = errors.New("plan tier is not in the allowed set")
	ErrMissingAccountID    = errors.New("event has no account id")
	ErrAccountNotFound     = errors.New("account does not exist")
)

// ErrAlreadyProcessed — повторная доставка уже обработанного события.
// Не ошибка по сути: вебхуки доставляются как минимум один раз,
// дубликаты ожидаемы и должны быть дешёвыми no-op.
var ErrAlreadyProcessed = errors.New("event already processed")

// Repository определяет методы хранилища, используемые пайплайном.
type Repository interface {
	// FindProcessedEvent ищет маркер обработанного события.
	FindProcessedEvent(ctx context.Context, eventID string) (*models.ProcessedEvent, bool, error)
	// GetAccount возвращает аккаунт по UID.
	GetAccount(ctx context.Context, uid string) (*models.Account, error)
	// ApplyFulfillment атомарно применяет entitlement, журнал и маркер события.
	ApplyFulfillment(ctx context.Context, update models.EntitlementUpdate,
		purchase models.PurchaseRecord, event models.ProcessedEvent) error
	// IncrementReferralCredits атомарно начисляет один реферальный кредит.
	IncrementReferralCredits(ctx context.Context, referralCode string) (int64, error)
}

// EventCache описывает быстрый маркер обработанных событий.
type EventCache interface {
	SeenEvent(ctx context.Context, eventID string) (bool, error)
	MarkEvent(ctx context.Context, eventID string, expiration time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Notifier публикует уведомление об успешной покупке.
type Notifier interface {
	PublishPurchaseCompleted(notification models.PurchaseNotification) error
}

// Service реализует пайплайн фулфилмента.
type Service struct {
	repo     Repository
	cache    EventCache
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

// New создает новый экземпляр Service. notifier может быть nil,
// если очередь уведомлений не сконфигурирована.
func New(repo Repository, cache EventCache, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// eventMarkerTTL — время жизни быстрого маркера в Redis. Авторитетен
// маркер в базе; Redis лишь срезает дешёвой проверкой большинство повторов.
const eventMarkerTTL = 72 * time.Hour

// ProcessCheckoutEvent применяет побочные эффекты события
// "checkout.session.completed". Порядок: guard идемпотентности, валидация
// тарифа, загрузка аккаунта, атомарная запись (entitlement + журнал + маркер),
// затем нефатальные шаги — реферальный кредит, маркер в Redis, уведомление.
func (s *Service) ProcessCheckoutEvent(ctx context.Context, ev models.CheckoutEvent) error {
	const op = "fulfillment.ProcessCheckoutEvent"
	log := s.log.With(slog.String("op", op), sl.Event(ev.EventID))

	if err := validateEvent(ev); err != nil {
		metrics.EventsFailed.WithLabelValues(failReason(err)).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	// Быстрая проверка в Redis. Ошибка чтения трактуется как "не обработано":
	// лучше рискнуть повторной обработкой, которую остановит база,
	// чем молча потерять легитимную покупку.
	if s.cache != nil {
		seen, err := s.cache.SeenEvent(ctx, ev.EventID)
		if err != nil {
			log.Warn("event cache check failed, falling through to storage", sl.Err(err))
		} else if seen {
			metrics.EventsDuplicate.Inc()
			return fmt.Errorf("%s: %w", op, ErrAlreadyProcessed)
		}
	}

	_, processed, err := s.repo.FindProcessedEvent(ctx, ev.EventID)
	if err != nil {
		// Тот же компромисс, что и для Redis: при сбое проверки продолжаем.
		log.Warn("processed-event lookup failed, proceeding", sl.Err(err))
	}
	if processed {
		metrics.EventsDuplicate.Inc()
		return fmt.Errorf("%s: %w", op, ErrAlreadyProcessed)
	}

	account, err := s.repo.GetAccount(ctx, ev.AccountUID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			metrics.EventsFailed.WithLabelValues("account_not_found").Inc()
			return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	update := models.EntitlementUpdate{
		AccountUID:   ev.AccountUID,
		PackageTier:  ev.Plan,
		Email:        ev.Email,
		PurchaseDate: now,
	}
	purchase := models.PurchaseRecord{
		ID:              s.newID(),
		AccountUID:      ev.AccountUID,
		PlanType:        NormalizeTier(ev.Plan),
		Status:          models.PurchaseStatusPaid,
		Amount:          float64(ev.AmountTotal) / 100,
		StripeSessionID: ev.SessionID,
		Email:           ev.Email,
		CreatedAt:       now,
	}
	marker := models.ProcessedEvent{
		EventID:     ev.EventID,
		SessionID:   ev.SessionID,
		AccountUID:  ev.AccountUID,
		EventType:   ev.EventType,
		ProcessedAt: now,
	}

	if err := s.repo.ApplyFulfillment(ctx, update, purchase, marker); err != nil {
		if errors.Is(err, repository.ErrEventAlreadyProcessed) {
			metrics.EventsDuplicate.Inc()
			return fmt.Errorf("%s: %w", op, ErrAlreadyProcessed)
		}
		if errors.Is(err, repository.ErrAccountNotFound) {
			metrics.EventsFailed.WithLabelValues("account_not_found").Inc()
			return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		metrics.EventsFailed.WithLabelValues("storage_error").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.PurchasesFulfilled.WithLabelValues(ev.Plan).Inc()
	log.Info("purchase fulfilled",
		slog.String("account_uid", ev.AccountUID),
		slog.String("plan", ev.Plan),
		slog.String("session_id", ev.SessionID))

	// Нефатальные шаги: их отказ не должен блокировать покупку клиента.
	s.awardReferralCredit(ctx, log, account)
	s.markEventCached(ctx, log, ev.EventID)
	s.evictAccountCached(ctx, log, ev.AccountUID)
	s.notifyPurchase(log, account, purchase)

	return nil
}

// awardReferralCredit начисляет один кредит пригласившему аккаунту.
// Висячий реферальный код и любые ошибки только логируются.
func (s *Service) awardReferralCredit(ctx context.Context, log *slog.Logger, account *models.Account) {
	if account.ReferredBy == nil || *account.ReferredBy == "" {
		return
	}
	affected, err := s.repo.IncrementReferralCredits(ctx, *account.ReferredBy)
	if err != nil {
		log.Warn("failed to award referral credit",
			slog.String("referred_by", *account.ReferredBy), sl.Err(err))
		return
	}
	if affected == 0 {
		log.Warn("referral code does not match any account",
			slog.String("referred_by", *account.ReferredBy))
		return
	}
	metrics.ReferralCreditsAwarded.Inc()
	log.Info("referral credit awarded", slog.String("referred_by", *account.ReferredBy))
}

func (s *Service) markEventCached(ctx context.Context, log *slog.Logger, eventID string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.MarkEvent(ctx, eventID, eventMarkerTTL); err != nil {
		log.Warn("failed to mark event in cache", sl.Err(err))
	}
}

// evictAccountCached сбрасывает кеш аккаунта, чтобы ближайшее чтение
// увидело обновленные entitlement-поля.
func (s *Service) evictAccountCached(ctx context.Context, log *slog.Logger, uid string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.AccountKey(uid)); err != nil {
		log.Warn("failed to invalidate account cache", slog.String("uid", uid), sl.Err(err))
	}
}

func (s *Service) notifyPurchase(log *slog.Logger, account *models.Account, purchase models.PurchaseRecord) {
	if s.notifier == nil {
		return
	}
	notification := models.PurchaseNotification{
		AccountUID:  account.UID,
		Email:       firstNonEmpty(purchase.Email, account.Email),
		DisplayName: account.DisplayName,
		PlanType:    purchase.PlanType,
		Amount:      purchase.Amount,
		SessionID:   purchase.StripeSessionID,
	}
	if err := s.notifier.PublishPurchaseCompleted(notification); err != nil {
		log.Warn("failed to publish purchase notification", sl.Err(err))
	}
}

// ValidTier сообщает, входит ли тариф в закрытое множество.
func ValidTier(tier string) bool {
	switch tier {
	case TierBasic, TierPro, TierElite:
		return true
	default:
		return false
	}
}

// NormalizeTier приводит тариф для журнала покупок. Журнал — аудиторский
// след, а не гейт авторизации, поэтому неизвестный тариф записывается
// как Basic, а не отбрасывается.
func NormalizeTier(tier string) string {
	if ValidTier(tier) {
		return tier
	}
	return TierBasic
}

func validateEvent(ev models.CheckoutEvent) error {
	if ev.AccountUID == "" {
		return ErrMissingAccountID
	}
	if ev.Plan == "" {
		return ErrMissingPlanMetadata
	}
	if !ValidTier(ev.Plan) {
		return ErrInvalidPlanTier
	}
	return nil
}

func failReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingAccountID):
		return "missing_account_id"
	case errors.Is(err, ErrMissingPlanMetadata):
		return "missing_plan_metadata"
	case errors.Is(err, ErrInvalidPlanTier):
		return "invalid_plan_tier"
	default:
		return "other"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
