package models

import "time"

// Статусы записи о покупке. Единственный разрешённый переход — paid -> delivered.
const (
	PurchaseStatusPaid      = "paid"
	PurchaseStatusDelivered = "delivered"
)

// PurchaseRecord представляет неизменяемую запись в журнале покупок.
// Создается один раз на каждое обработанное событие оплаты; после создания
// меняются только поля доставки при переходе paid -> delivered.
type PurchaseRecord struct {
	ID              string     // Уникальный идентификатор записи
	AccountUID      string     // Идентификатор аккаунта-владельца
	PlanType        string     // Тариф на момент покупки
	Status          string     // paid или delivered
	Amount          float64    // Сумма в основных единицах валюты
	StripeSessionID string     // Связь с внешней платежной сессией
	Email           string     // Почта плательщика на момент покупки
	MealPlanURL     *string    // Ссылка на доставленный план (nil до доставки)
	CreatedAt       time.Time  // Момент создания записи
	DeliveredAt     *time.Time // Момент доставки (nil до доставки)
}

// DummyDelivery используется для приёма данных из JSON-запроса
// на отметку покупки доставленной.
type DummyDelivery struct {
	MealPlanURL string `json:"meal_plan_url" validate:"required,url"` // Ссылка на готовый план питания
}

// UnlinkedPurchase описывает расхождение, найденное сверкой журнала:
// запись о покупке, для сессии которой нет маркера обработанного события,
// либо дубликат записи по одной и той же сессии.
type UnlinkedPurchase struct {
	Purchase PurchaseRecord
	Reason   string // "missing_processed_event" или "duplicate_session"
}
