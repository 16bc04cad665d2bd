// Package sender собирает воркер уведомлений: потребляет очередь покупок
// и отправляет письма-подтверждения.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/config"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/mealplan-fulfillment/internal/services/sender"
)

// App инкапсулирует соединение с брокером и сервис отправки писем.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New собирает воркер: подключает RabbitMQ, объявляет очереди
// и строит сервис отправки писем поверх SMTP-транспорта.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetPurchaseQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg, logger)
	senderService := senderservice.New(transport, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителя очереди покупок и блокируется
// до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	for _, queue := range rabbitmq.GetPurchaseQueues() {
		if err := rabbitmq.ConsumeMessages(ctx, a.ch, queue.QueueName, a.senderService.HandleMessage); err != nil {
			a.logger.Error("failed to start consumer",
				slog.String("queue", queue.QueueName), sl.Err(err))
			return err
		}
		a.logger.Info("consumer started", slog.String("queue", queue.QueueName))
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
