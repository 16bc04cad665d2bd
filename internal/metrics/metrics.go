// Package metrics регистрирует счетчики Prometheus для пайплайна фулфилмента.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceived — все принятые webhook-события, по типу события.
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_webhook_events_received_total",
		Help: "Webhook events received, by provider event type.",
	}, []string{"event_type"})

	// EventsIgnored — валидные, но нерелевантные события.
	EventsIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_webhook_events_ignored_total",
		Help: "Valid webhook events acknowledged without processing.",
	})

	// EventsDuplicate — повторные доставки, отброшенные guard-ом идемпотентности.
	EventsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_webhook_events_duplicate_total",
		Help: "Webhook deliveries short-circuited as already processed.",
	})

	// EventsFailed — фатальные ошибки синхронизации, по причине.
	EventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_webhook_events_failed_total",
		Help: "Webhook events that failed fatally, by reason.",
	}, []string{"reason"})

	// PurchasesFulfilled — успешно синхронизированные покупки, по тарифу.
	PurchasesFulfilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_purchases_fulfilled_total",
		Help: "Purchases fulfilled successfully, by plan tier.",
	}, []string{"plan"})

	// ReferralCreditsAwarded — начисленные реферальные кредиты.
	ReferralCreditsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_referral_credits_awarded_total",
		Help: "Referral credits awarded to referring accounts.",
	})

	// ReconcilerDiscrepancies — расхождения, найденные сверкой журнала.
	ReconcilerDiscrepancies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_reconciler_discrepancies_total",
		Help: "Ledger discrepancies detected by the reconciler, by kind.",
	}, []string{"kind"})
)
