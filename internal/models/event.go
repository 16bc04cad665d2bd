package models

import "time"

// ProcessedEvent — маркер идемпотентности, один на каждое внешнее событие.
// Существование записи с данным event id — доказательство того, что побочные
// эффекты события уже применены. Записи никогда не изменяются и не удаляются.
type ProcessedEvent struct {
	EventID     string    // Идентификатор события у платежного провайдера (первичный ключ)
	SessionID   string    // Идентификатор платежной сессии
	AccountUID  string    // Идентификатор аккаунта
	EventType   string    // Тип события провайдера
	ProcessedAt time.Time // Момент завершения обработки
}

// CheckoutEvent — строго разобранные данные события "checkout.session.completed".
// Обязательные поля (EventID, SessionID, AccountUID, Plan) валидируются при
// разборе: событие без них отклоняется, а не дополняется значениями по умолчанию.
// Email — единственное по-настоящему опциональное поле.
type CheckoutEvent struct {
	EventID     string // Идентификатор события (ключ идемпотентности)
	EventType   string // Тип события провайдера
	SessionID   string // Идентификатор checkout-сессии
	AccountUID  string // Идентификатор аккаунта из metadata.userId
	Plan        string // Тариф из metadata.plan
	Email       string // Почта из metadata.email (может быть пустой)
	AmountTotal int64  // Сумма в минорных единицах валюты
}

// PurchaseNotification — сообщение для очереди уведомлений,
// публикуется после успешной синхронизации покупки.
type PurchaseNotification struct {
	AccountUID  string  `json:"account_uid"`
	Email       string  `json:"email"`
	DisplayName string  `json:"display_name"`
	PlanType    string  `json:"plan_type"`
	Amount      float64 `json:"amount"`
	SessionID   string  `json:"session_id"`
}
