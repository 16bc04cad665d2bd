package rabbitmq

import (
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
)

// PurchaseNotifier публикует уведомления об успешных покупках
// в exchange "purchases".
type PurchaseNotifier struct {
	ch *amqp.Channel
}

// NewPurchaseNotifier создает новый PurchaseNotifier поверх открытого канала.
func NewPurchaseNotifier(ch *amqp.Channel) *PurchaseNotifier {
	return &PurchaseNotifier{ch: ch}
}

// PublishPurchaseCompleted публикует уведомление о завершенной покупке.
func (n *PurchaseNotifier) PublishPurchaseCompleted(notification models.PurchaseNotification) error {
	return PublishMessage(n.ch, PurchasesExchange, CompletedRoutingKey, notification)
}
