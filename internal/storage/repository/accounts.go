package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
)

const accountColumns = `uid, email, display_name, package_tier, meal_plan_status,
			      purchase_date, referral_code, referral_credits, referred_by, created_at`

// CreateAccount сохраняет новый аккаунт. Реферальный код и referred_by
// фиксируются в момент создания и далее не меняются.
func (s *Storage) CreateAccount(ctx context.Context, account models.Account) error {
	const op = "storage.CreateAccount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO accounts (uid, email, display_name, meal_plan_status,
			      referral_code, referral_credits, referred_by)
			  VALUES ($1, $2, $3, $4, $5, 0, $6);`
	_, err := s.DB.ExecContext(ctx, query,
		account.UID, account.Email, account.DisplayName, account.MealPlanStatus,
		account.ReferralCode, account.ReferredBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "accounts_referral_code_key":
				return fmt.Errorf("%s: %w", op, ErrReferralCodeTaken)
			default:
				return fmt.Errorf("%s: %w", op, ErrAccountExists)
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAccount возвращает аккаунт по его UID.
func (s *Storage) GetAccount(ctx context.Context, uid string) (*models.Account, error) {
	const op = "storage.GetAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + `
			  FROM accounts
			  WHERE uid = $1`
	row := s.DB.QueryRowContext(ctx, query, uid)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// GetAccountByReferralCode возвращает аккаунт по его реферальному коду.
// Возвращает (nil, false, nil), если кода не существует.
func (s *Storage) GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, bool, error) {
	const op = "storage.GetAccountByReferralCode"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + `
			  FROM accounts
			  WHERE referral_code = $1`
	row := s.DB.QueryRowContext(ctx, query, code)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return a, true, nil
}

// IncrementReferralCredits атомарно увеличивает счетчик реферальных кредитов
// аккаунта с данным реферальным кодом ровно на единицу. Возвращает число
// затронутых строк: ноль означает, что код ни на кого не указывает.
func (s *Storage) IncrementReferralCredits(ctx context.Context, referralCode string) (int64, error) {
	const op = "storage.IncrementReferralCredits"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET referral_credits = referral_credits + 1
			  WHERE referral_code = $1`
	res, err := s.DB.ExecContext(ctx, query, referralCode)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return affected, nil
}

// ListAccounts возвращает страницу аккаунтов, упорядоченных от новых к старым.
// after — последний аккаунт предыдущей страницы (nil для первой страницы).
func (s *Storage) ListAccounts(ctx context.Context, after *models.Account, limit int) ([]models.Account, error) {
	const op = "storage.ListAccounts"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var rows *sql.Rows
	var err error
	if after == nil {
		query := `SELECT ` + accountColumns + `
				  FROM accounts
				  ORDER BY created_at DESC, uid DESC
				  LIMIT $1`
		rows, err = s.DB.QueryContext(ctx, query, limit)
	} else {
		query := `SELECT ` + accountColumns + `
				  FROM accounts
				  WHERE (created_at, uid) < ($1, $2)
				  ORDER BY created_at DESC, uid DESC
				  LIMIT $3`
		rows, err = s.DB.QueryContext(ctx, query, after.CreatedAt, after.UID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	var packageTier, referredBy sql.NullString
	var purchaseDate sql.NullTime
	if err := row.Scan(&a.UID, &a.Email, &a.DisplayName, &packageTier,
		&a.MealPlanStatus, &purchaseDate, &a.ReferralCode, &a.ReferralCredits,
		&referredBy, &a.CreatedAt); err != nil {
		return nil, err
	}

	if packageTier.Valid {
		a.PackageTier = &packageTier.String
	}
	if purchaseDate.Valid {
		a.PurchaseDate = &purchaseDate.Time
	}
	if referredBy.Valid {
		a.ReferredBy = &referredBy.String
	}
	return a, nil
}
