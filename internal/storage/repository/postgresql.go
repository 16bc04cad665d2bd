// Package repository реализует хранилище данных на основе PostgreSQL
// для аккаунтов, журнала покупок и маркеров обработанных событий.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ошибки уровня хранилища, по которым сервисный слой различает исходы.
var (
	// ErrAccountNotFound — аккаунт с данным uid не существует.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEventAlreadyProcessed — событие уже имеет маркер обработки.
	ErrEventAlreadyProcessed = errors.New("event already processed")
	// ErrPurchaseNotFound — запись о покупке не существует.
	ErrPurchaseNotFound = errors.New("purchase not found")
	// ErrPurchaseAlreadyDelivered — покупка уже переведена в delivered.
	ErrPurchaseAlreadyDelivered = errors.New("purchase already delivered")
	// ErrReferralCodeTaken — сгенерированный реферальный код уже занят.
	ErrReferralCodeTaken = errors.New("referral code already taken")
	// ErrAccountExists — аккаунт с данным uid уже создан.
	ErrAccountExists = errors.New("account already exists")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func (s *Storage) CheckDatabaseReady(ctx context.Context) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'accounts'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table accounts missing or query error: %w", err)
	}
	return nil
}
