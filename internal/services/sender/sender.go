// Package sender реализует воркер уведомлений: разбирает сообщение
// об успешной покупке из очереди и отправляет клиенту письмо-подтверждение.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/smtp"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
)

// Service отправляет письма-подтверждения покупки.
type Service struct {
	transport smtp.Transport
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(transport smtp.Transport, log *slog.Logger) *Service {
	return &Service{transport: transport, log: log}
}

// HandleMessage разбирает сообщение очереди и отправляет письмо.
// Ошибка возвращается наверх, чтобы потребитель вернул сообщение в очередь.
func (s *Service) HandleMessage(body []byte) error {
	const op = "sender.HandleMessage"

	var notification models.PurchaseNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		// Нечитаемое сообщение не станет читаемым после requeue,
		// логируем и подтверждаем.
		s.log.Error("failed to unmarshal purchase notification", sl.Err(err))
		return nil
	}
	if notification.Email == "" {
		s.log.Warn("purchase notification without email, skipping",
			slog.String("account_uid", notification.AccountUID))
		return nil
	}

	if err := s.sendConfirmation(notification); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("purchase confirmation sent",
		slog.String("email", notification.Email),
		slog.String("plan", notification.PlanType))
	return nil
}

func (s *Service) sendConfirmation(n models.PurchaseNotification) error {
	client, err := s.transport.Connect()
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			s.log.Debug("failed to close smtp client", sl.Err(err))
		}
	}()

	from := s.transport.GetSMTPUser()
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(n.Email); err != nil {
		return err
	}

	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write([]byte(buildConfirmationEmail(from, n))); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// buildConfirmationEmail собирает текст письма с заголовками.
func buildConfirmationEmail(from string, n models.PurchaseNotification) string {
	name := n.DisplayName
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", n.Email)
	fmt.Fprintf(&b, "Subject: Your %s meal plan is on the way\r\n", n.PlanType)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", name)
	fmt.Fprintf(&b, "Thanks for your purchase! We received your payment of $%.2f for the %s package.\r\n\r\n",
		n.Amount, n.PlanType)
	b.WriteString("Your coach is already working on your personalized meal plan. ")
	b.WriteString("You will get another email as soon as it is ready.\r\n\r\n")
	b.WriteString("Stay strong,\r\nThe Meal Plan Team\r\n")
	return b.String()
}
