// Package models содержит доменные структуры сервиса фулфилмента:
// аккаунт клиента, запись о покупке и маркер обработанного события.
// Структуры используются в бизнес-логике и при работе с хранилищем.
package models

import "time"

// Статусы доставки плана питания. Новая покупка всегда
// возвращает аккаунт в статус StatusNotStarted.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusDelivered  = "delivered"
)

// Account представляет аккаунт клиента сервиса.
// Аккаунт создается при первой аутентификации; пайплайн фулфилмента
// аккаунты не создает и не удаляет, только обновляет entitlement-поля.
type Account struct {
	UID             string     // Уникальный идентификатор аккаунта
	Email           string     // Электронная почта
	DisplayName     string     // Отображаемое имя
	PackageTier     *string    // Оплаченный тариф (nil, если покупок не было)
	MealPlanStatus  string     // Статус доставки плана питания
	PurchaseDate    *time.Time // Дата первой успешной синхронизации покупки
	ReferralCode    string     // Уникальный реферальный код, неизменяемый
	ReferralCredits int        // Количество реферальных кредитов (только растет)
	ReferredBy      *string    // Реферальный код пригласившего (задается один раз)
	CreatedAt       time.Time  // Дата создания аккаунта
}

// DummyAccount используется для приёма данных из JSON-запроса
// на создание аккаунта, прежде чем конвертировать их в Account.
type DummyAccount struct {
	UID         string `json:"uid" validate:"required,uuid"`          // Идентификатор из платформы аутентификации
	Email       string `json:"email" validate:"required,email"`       // Электронная почта
	DisplayName string `json:"display_name" validate:"required"`      // Отображаемое имя
	ReferredBy  string `json:"referred_by,omitempty" validate:"omitempty"` // Код пригласившего (опционально)
}

// EntitlementUpdate описывает merge-запись entitlement-полей аккаунта
// при успешной синхронизации покупки.
type EntitlementUpdate struct {
	AccountUID   string    // Идентификатор аккаунта
	PackageTier  string    // Новый тариф
	Email        string    // Почта из события (записывается, если не заполнена)
	PurchaseDate time.Time // Момент синхронизации
}
