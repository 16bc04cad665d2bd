package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
)

// FindProcessedEvent возвращает маркер обработанного события по его id.
// Возвращает (nil, false, nil), если маркера нет.
func (s *Storage) FindProcessedEvent(ctx context.Context, eventID string) (*models.ProcessedEvent, bool, error) {
	const op = "storage.FindProcessedEvent"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT event_id, session_id, account_uid, event_type, processed_at
			  FROM processed_events
			  WHERE event_id = $1`
	e := &models.ProcessedEvent{}
	row := s.DB.QueryRowContext(ctx, query, eventID)
	err := row.Scan(&e.EventID, &e.SessionID, &e.AccountUID, &e.EventType, &e.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return e, true, nil
}

// HasProcessedEventForSession сообщает, есть ли маркер обработанного события
// для данной платежной сессии. Используется сверкой журнала.
func (s *Storage) HasProcessedEventForSession(ctx context.Context, sessionID string) (bool, error) {
	const op = "storage.HasProcessedEventForSession"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS (SELECT 1 FROM processed_events WHERE session_id = $1)`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, sessionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}
