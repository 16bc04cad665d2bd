// Package account реализует создание и чтение аккаунтов клиентов.
// Создание выдает аккаунту неизменяемый реферальный код; чтение
// идет через read-through кеш в Redis.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/cache"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/refcode"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/storage/repository"
)

// ErrAccountExists возвращается при попытке повторного создания аккаунта.
var ErrAccountExists = errors.New("account already exists")

// ErrAccountNotFound возвращается, если аккаунт не найден.
var ErrAccountNotFound = errors.New("account not found")

// Количество попыток генерации реферального кода при коллизии
// с уникальным индексом. Коллизия при 31^8 кодах практически невозможна,
// две подряд — повод отдать ошибку наверх.
const maxRefcodeAttempts = 3

const accountCacheTTL = 10 * time.Minute

// Repository определяет методы хранилища, используемые сервисом аккаунтов.
type Repository interface {
	CreateAccount(ctx context.Context, account models.Account) error
	GetAccount(ctx context.Context, uid string) (*models.Account, error)
}

// Cache описывает read-through кеш аккаунтов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service реализует операции над аккаунтами.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// New создает новый экземпляр Service. cache может быть nil.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

// Create создает аккаунт с новым реферальным кодом. Поле referred_by
// принимается только при создании; мусорные значения отбрасываются
// без ошибки, чтобы не блокировать регистрацию.
func (s *Service) Create(ctx context.Context, req models.DummyAccount) (*models.Account, error) {
	const op = "account.Create"
	log := s.log.With(slog.String("op", op), slog.String("uid", req.UID))

	account := models.Account{
		UID:            req.UID,
		Email:          req.Email,
		DisplayName:    req.DisplayName,
		MealPlanStatus: models.StatusNotStarted,
		CreatedAt:      s.now(),
	}
	if req.ReferredBy != "" {
		if refcode.Valid(req.ReferredBy) {
			referredBy := req.ReferredBy
			account.ReferredBy = &referredBy
		} else {
			log.Warn("ignoring malformed referral code",
				slog.String("referred_by", req.ReferredBy))
		}
	}

	for attempt := 0; attempt < maxRefcodeAttempts; attempt++ {
		code, err := refcode.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		account.ReferralCode = code

		err = s.repo.CreateAccount(ctx, account)
		if err == nil {
			log.Info("account created", slog.String("referral_code", code))
			return &account, nil
		}
		if errors.Is(err, repository.ErrReferralCodeTaken) {
			log.Warn("referral code collision, retrying", slog.String("referral_code", code))
			continue
		}
		if errors.Is(err, repository.ErrAccountExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return nil, fmt.Errorf("%s: referral code generation exhausted", op)
}

// Get возвращает аккаунт по UID, сначала заглядывая в кеш.
// Ошибки кеша нефатальны: сервис продолжает работу через базу.
func (s *Service) Get(ctx context.Context, uid string) (*models.Account, error) {
	const op = "account.Get"
	log := s.log.With(slog.String("op", op), slog.String("uid", uid))

	if s.cache != nil {
		var cached models.Account
		found, err := s.cache.Get(ctx, accountKey(uid), &cached)
		if err != nil {
			log.Warn("account cache read failed", sl.Err(err))
		} else if found {
			return &cached, nil
		}
	}

	account, err := s.repo.GetAccount(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, accountKey(uid), account, accountCacheTTL); err != nil {
			log.Warn("account cache write failed", sl.Err(err))
		}
	}
	return account, nil
}

// Evict удаляет аккаунт из кеша. Вызывается после изменения
// entitlement-полей, чтобы чтение не отдавало устаревший тариф.
func (s *Service) Evict(ctx context.Context, uid string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, accountKey(uid)); err != nil {
		s.log.Warn("account cache invalidation failed",
			slog.String("uid", uid), sl.Err(err))
	}
}

func accountKey(uid string) string {
	return cache.AccountKey(uid)
}
