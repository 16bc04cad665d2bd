package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
)

const purchaseColumns = `id, account_uid, plan_type, status, amount,
			      stripe_session_id, email, meal_plan_url, created_at, delivered_at`

// GetPurchase возвращает запись о покупке по её идентификатору.
func (s *Storage) GetPurchase(ctx context.Context, id string) (*models.PurchaseRecord, error) {
	const op = "storage.GetPurchase"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + purchaseColumns + `
			  FROM purchases
			  WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)

	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrPurchaseNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// MarkDelivered выполняет единственный разрешённый переход paid -> delivered,
// записывая ссылку на готовый план и момент доставки. Повторная доставка
// отклоняется.
func (s *Storage) MarkDelivered(ctx context.Context, id, mealPlanURL string, deliveredAt time.Time) error {
	const op = "storage.MarkDelivered"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE purchases
			  SET status = $1,
			      meal_plan_url = $2,
			      delivered_at = $3
			  WHERE id = $4 AND status = $5`
	res, err := s.DB.ExecContext(ctx, query,
		models.PurchaseStatusDelivered, mealPlanURL, deliveredAt, id, models.PurchaseStatusPaid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		// Либо записи нет, либо она уже delivered; различаем отдельным чтением.
		if _, err := s.GetPurchase(ctx, id); err != nil {
			return fmt.Errorf("%s: %w", op, ErrPurchaseNotFound)
		}
		return fmt.Errorf("%s: %w", op, ErrPurchaseAlreadyDelivered)
	}
	return nil
}

// ListPurchases возвращает страницу журнала покупок от новых к старым.
// after — последняя запись предыдущей страницы (nil для первой страницы).
func (s *Storage) ListPurchases(ctx context.Context, after *models.PurchaseRecord, limit int) ([]models.PurchaseRecord, error) {
	const op = "storage.ListPurchases"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var rows *sql.Rows
	var err error
	if after == nil {
		query := `SELECT ` + purchaseColumns + `
				  FROM purchases
				  ORDER BY created_at DESC, id DESC
				  LIMIT $1`
		rows, err = s.DB.QueryContext(ctx, query, limit)
	} else {
		query := `SELECT ` + purchaseColumns + `
				  FROM purchases
				  WHERE (created_at, id) < ($1, $2)
				  ORDER BY created_at DESC, id DESC
				  LIMIT $3`
		rows, err = s.DB.QueryContext(ctx, query, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.PurchaseRecord
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountPurchasesBySession возвращает число записей журнала, связанных
// с данной платежной сессией. Больше одной — дубликат от повторной доставки.
func (s *Storage) CountPurchasesBySession(ctx context.Context, sessionID string) (int, error) {
	const op = "storage.CountPurchasesBySession"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM purchases WHERE stripe_session_id = $1`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

func scanPurchase(row rowScanner) (*models.PurchaseRecord, error) {
	p := &models.PurchaseRecord{}
	var mealPlanURL sql.NullString
	var deliveredAt sql.NullTime
	if err := row.Scan(&p.ID, &p.AccountUID, &p.PlanType, &p.Status, &p.Amount,
		&p.StripeSessionID, &p.Email, &mealPlanURL, &p.CreatedAt, &deliveredAt); err != nil {
		return nil, err
	}

	if mealPlanURL.Valid {
		p.MealPlanURL = &mealPlanURL.String
	}
	if deliveredAt.Valid {
		p.DeliveredAt = &deliveredAt.Time
	}
	return p, nil
}
