package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
)

// ApplyFulfillment применяет побочные эффекты события оплаты одной транзакцией:
// merge-запись entitlement-полей аккаунта, добавление записи в журнал покупок
// и вставка маркера обработанного события.
//
// Гонка check-then-act двух параллельных доставок одного события решается
// на вставке маркера: ON CONFLICT DO NOTHING, и если строка не вставилась,
// значит параллельная обработка уже зафиксировала свои эффекты — транзакция
// откатывается с ErrEventAlreadyProcessed.
//
// Начисление реферального кредита сюда намеренно не входит: его отказ
// не должен блокировать покупку (см. IncrementReferralCredits).
func (s *Storage) ApplyFulfillment(ctx context.Context,
	update models.EntitlementUpdate,
	purchase models.PurchaseRecord,
	event models.ProcessedEvent) error {
	const op = "storage.ApplyFulfillment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	entitlementQuery := `UPDATE accounts
			  SET package_tier = $1,
			      meal_plan_status = $2,
			      purchase_date = $3,
			      email = CASE WHEN email IS NULL OR email = '' THEN $4 ELSE email END
			  WHERE uid = $5`
	res, err := tx.ExecContext(ctx, entitlementQuery,
		update.PackageTier, models.StatusNotStarted, update.PurchaseDate,
		update.Email, update.AccountUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}

	purchaseQuery := `INSERT INTO purchases (id, account_uid, plan_type, status,
			      amount, stripe_session_id, email, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = tx.ExecContext(ctx, purchaseQuery,
		purchase.ID, purchase.AccountUID, purchase.PlanType, purchase.Status,
		purchase.Amount, purchase.StripeSessionID, purchase.Email, purchase.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	eventQuery := `INSERT INTO processed_events (event_id, session_id, account_uid,
			      event_type, processed_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (event_id) DO NOTHING`
	res, err = tx.ExecContext(ctx, eventQuery,
		event.EventID, event.SessionID, event.AccountUID, event.EventType, event.ProcessedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrEventAlreadyProcessed)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
