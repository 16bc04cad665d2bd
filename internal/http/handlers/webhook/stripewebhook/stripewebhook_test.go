package stripewebhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/services/fulfillment"
)

const testSecret = "whsec_test_secret"

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) ProcessCheckoutEvent(ctx context.Context, ev models.CheckoutEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// signPayload строит заголовок подписи так же, как это делает провайдер:
// HMAC-SHA256 от строки "<timestamp>.<payload>".
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutPayload(t *testing.T, metadata map[string]string) []byte {
	t.Helper()
	session := map[string]any{
		"id":           "cs_test_123",
		"object":       "checkout.session",
		"amount_total": 4999,
		"metadata":     metadata,
	}
	envelope := map[string]any{
		"id":   "evt_123",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": session},
	}
	payload, err := json.Marshal(envelope)
	require.NoError(t, err)
	return payload
}

func doRequest(handler *Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestServeHTTP_Success(t *testing.T) {
	payload := checkoutPayload(t, map[string]string{
		"userId": "550e8400-e29b-41d4-a716-446655440000",
		"plan":   "Pro",
		"email":  "client@example.com",
	})

	service := &ServiceMock{}
	service.On("ProcessCheckoutEvent", mock.Anything, mock.MatchedBy(func(ev models.CheckoutEvent) bool {
		return ev.EventID == "evt_123" &&
			ev.SessionID == "cs_test_123" &&
			ev.AccountUID == "550e8400-e29b-41d4-a716-446655440000" &&
			ev.Plan == "Pro" &&
			ev.AmountTotal == 4999
	})).Return(nil).Once()

	handler := New(newNoopLogger(), service, testSecret)
	rr := doRequest(handler, payload, signPayload(payload, testSecret))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"received": true}`, rr.Body.String())
	service.AssertExpectations(t)
}

func TestServeHTTP_BadSignature(t *testing.T) {
	payload := checkoutPayload(t, map[string]string{"userId": "u", "plan": "Pro"})

	service := &ServiceMock{}
	handler := New(newNoopLogger(), service, testSecret)

	rr := doRequest(handler, payload, signPayload(payload, "whsec_wrong_secret"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "error")
	service.AssertNotCalled(t, "ProcessCheckoutEvent", mock.Anything, mock.Anything)
}

func TestServeHTTP_MissingSignature(t *testing.T) {
	payload := checkoutPayload(t, map[string]string{"userId": "u", "plan": "Pro"})

	service := &ServiceMock{}
	handler := New(newNoopLogger(), service, testSecret)

	rr := doRequest(handler, payload, "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	service.AssertNotCalled(t, "ProcessCheckoutEvent", mock.Anything, mock.Anything)
}

func TestServeHTTP_TamperedPayload(t *testing.T) {
	// Подпись честная, но тело подменили после подписания.
	payload := checkoutPayload(t, map[string]string{"userId": "u", "plan": "Pro"})
	signature := signPayload(payload, testSecret)
	tampered := bytes.Replace(payload, []byte("Pro"), []byte("Elite"), 1)

	service := &ServiceMock{}
	handler := New(newNoopLogger(), service, testSecret)

	rr := doRequest(handler, tampered, signature)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	service.AssertNotCalled(t, "ProcessCheckoutEvent", mock.Anything, mock.Anything)
}

func TestServeHTTP_IgnoresIrrelevantEventType(t *testing.T) {
	envelope := map[string]any{
		"id":   "evt_456",
		"type": "invoice.payment_succeeded",
		"data": map[string]any{"object": map[string]any{"id": "in_123"}},
	}
	payload, err := json.Marshal(envelope)
	require.NoError(t, err)

	service := &ServiceMock{}
	handler := New(newNoopLogger(), service, testSecret)

	rr := doRequest(handler, payload, signPayload(payload, testSecret))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"received": true}`, rr.Body.String())
	service.AssertNotCalled(t, "ProcessCheckoutEvent", mock.Anything, mock.Anything)
}

func TestServeHTTP_AlreadyProcessed(t *testing.T) {
	payload := checkoutPayload(t, map[string]string{"userId": "u", "plan": "Pro"})

	service := &ServiceMock{}
	service.On("ProcessCheckoutEvent", mock.Anything, mock.Anything).
		Return(fulfillment.ErrAlreadyProcessed).Once()

	handler := New(newNoopLogger(), service, testSecret)
	rr := doRequest(handler, payload, signPayload(payload, testSecret))

	// Повтор — не ошибка: провайдер не должен ретраить.
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"received": true}`, rr.Body.String())
}

func TestServeHTTP_FatalSyncFailureIsRetryable(t *testing.T) {
	payload := checkoutPayload(t, map[string]string{"userId": "u", "plan": "Ultra"})

	service := &ServiceMock{}
	service.On("ProcessCheckoutEvent", mock.Anything, mock.Anything).
		Return(fulfillment.ErrInvalidPlanTier).Once()

	handler := New(newNoopLogger(), service, testSecret)
	rr := doRequest(handler, payload, signPayload(payload, testSecret))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "error")
}

func TestServeHTTP_SessionWithoutID(t *testing.T) {
	envelope := map[string]any{
		"id":   "evt_789",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": map[string]any{"metadata": map[string]string{"plan": "Pro"}}},
	}
	payload, err := json.Marshal(envelope)
	require.NoError(t, err)

	service := &ServiceMock{}
	handler := New(newNoopLogger(), service, testSecret)

	rr := doRequest(handler, payload, signPayload(payload, testSecret))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	service.AssertNotCalled(t, "ProcessCheckoutEvent", mock.Anything, mock.Anything)
}

func TestServeHTTP_MissingSecret(t *testing.T) {
	payload := checkoutPayload(t, map[string]string{"userId": "u", "plan": "Pro"})

	handler := New(newNoopLogger(), &ServiceMock{}, "")
	rr := doRequest(handler, payload, signPayload(payload, testSecret))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
