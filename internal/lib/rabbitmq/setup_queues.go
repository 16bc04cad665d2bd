package rabbitmq

// PurchasesExchange — exchange, в который публикуются события о покупках.
const PurchasesExchange = "purchases"

// CompletedRoutingKey — ключ маршрутизации событий успешного фулфилмента.
const CompletedRoutingKey = "completed"

// QueueConfig описывает очередь и ключ маршрутизации для её привязки.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetPurchaseQueues возвращает очереди, обслуживаемые воркером уведомлений.
func GetPurchaseQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "purchases.completed", RoutingKey: CompletedRoutingKey},
	}
}
