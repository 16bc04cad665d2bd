// Package stripewebhook реализует HTTP-обработчик вебхука платежного провайдера.
//
// Handler проверяет подпись по сырому телу запроса до любого разбора JSON,
// отбрасывает нерелевантные типы событий и передает строго разобранное
// событие оплаты в пайплайн фулфилмента.
//
// Контракт ответов машинный: {"received": true} на успех, игнор и повтор;
// {"error": "..."} с 4xx/5xx на отказ. Ретраи провайдера опираются
// на код ответа, поэтому фатальные ошибки синхронизации отдаются как 500.
package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/metrics"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/services/fulfillment"
)

// Подпись считается по сырому телу; провайдер не гарантирует, что
// повторная сериализация даст байт-в-байт тот же JSON.
const signatureHeader = "Stripe-Signature"

// maxBodyBytes ограничивает размер тела вебхука.
const maxBodyBytes = int64(65536)

// eventTypeCheckoutCompleted — единственный тип события, который
// продвигается дальше приемника.
const eventTypeCheckoutCompleted = "checkout.session.completed"

// Service описывает интерфейс пайплайна фулфилмента.
type Service interface {
	ProcessCheckoutEvent(ctx context.Context, ev models.CheckoutEvent) error
}

// Handler управляет HTTP-запросами вебхука.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
}

// New создает новый Handler с переданными логгером, сервисом и секретом.
func New(log *slog.Logger, service Service, webhookSecret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: webhookSecret,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook.stripewebhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if h.webhookSecret == "" {
		log.Error("webhook secret is not configured")
		writeError(w, r, http.StatusInternalServerError, "webhook is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		writeError(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}

	// Версия API в конверте зависит от настроек аккаунта провайдера
	// и не обязана совпадать с версией, под которую собран SDK.
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get(signatureHeader),
		h.webhookSecret, webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		log.Error("webhook signature verification failed", sl.Err(err))
		metrics.EventsFailed.WithLabelValues("bad_signature").Inc()
		writeError(w, r, http.StatusBadRequest, "signature verification failed")
		return
	}

	log = log.With(sl.Event(event.ID), slog.String("event_type", string(event.Type)))
	metrics.EventsReceived.WithLabelValues(string(event.Type)).Inc()

	if string(event.Type) != eventTypeCheckoutCompleted {
		log.Info("ignoring irrelevant event type")
		metrics.EventsIgnored.Inc()
		writeReceived(w, r)
		return
	}

	checkoutEvent, err := parseCheckoutEvent(event)
	if err != nil {
		log.Error("failed to parse checkout session", sl.Err(err))
		metrics.EventsFailed.WithLabelValues("malformed_envelope").Inc()
		writeError(w, r, http.StatusBadRequest, "malformed event payload")
		return
	}

	if err := h.service.ProcessCheckoutEvent(r.Context(), checkoutEvent); err != nil {
		if errors.Is(err, fulfillment.ErrAlreadyProcessed) {
			log.Info("event already processed")
			writeReceived(w, r)
			return
		}
		log.Error("fulfillment failed", sl.Err(err))
		writeError(w, r, http.StatusInternalServerError, "fulfillment failed")
		return
	}

	log.Info("webhook processed")
	writeReceived(w, r)
}

// parseCheckoutEvent строго разбирает checkout-сессию из конверта события.
// Поля metadata не имеют значений по умолчанию: событие без session id
// отклоняется здесь, событие без userId или plan — валидацией пайплайна.
func parseCheckoutEvent(event stripe.Event) (models.CheckoutEvent, error) {
	if event.Data == nil {
		return models.CheckoutEvent{}, errors.New("event has no data object")
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return models.CheckoutEvent{}, err
	}
	if session.ID == "" {
		return models.CheckoutEvent{}, errors.New("checkout session has no id")
	}
	return models.CheckoutEvent{
		EventID:     event.ID,
		EventType:   string(event.Type),
		SessionID:   session.ID,
		AccountUID:  session.Metadata["userId"],
		Plan:        session.Metadata["plan"],
		Email:       session.Metadata["email"],
		AmountTotal: session.AmountTotal,
	}, nil
}

func writeReceived(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"received": true})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]any{"error": msg})
}
