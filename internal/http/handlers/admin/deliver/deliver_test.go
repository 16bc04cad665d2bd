package deliver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/services/delivery"
)

// MockService реализует интерфейс deliver.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) MarkDelivered(ctx context.Context, purchaseID, mealPlanURL string) (*models.PurchaseRecord, error) {
	args := m.Called(ctx, purchaseID, mealPlanURL)
	if res := args.Get(0); res != nil {
		return res.(*models.PurchaseRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestDeliverHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	const purchaseID = "purchase-1"
	validBody := `{"meal_plan_url":"https://cdn.example.com/plans/p1.pdf"}`

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешная пометка доставки",
			body: validBody,
			setupMock: func(m *MockService) {
				m.On("MarkDelivered", mock.Anything, purchaseID, "https://cdn.example.com/plans/p1.pdf").
					Return(&models.PurchaseRecord{
						ID:     purchaseID,
						Status: models.PurchaseStatusDelivered,
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"Status":"delivered"`,
		},
		{
			name:           "некорректный JSON",
			body:           `{not json`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:           "ссылка не url",
			body:           `{"meal_plan_url":"not-a-url"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field MealPlanURL can contain only url`,
		},
		{
			name: "покупка не найдена",
			body: validBody,
			setupMock: func(m *MockService) {
				m.On("MarkDelivered", mock.Anything, purchaseID, mock.Anything).
					Return(nil, delivery.ErrPurchaseNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"purchase not found"`,
		},
		{
			name: "повторная доставка",
			body: validBody,
			setupMock: func(m *MockService) {
				m.On("MarkDelivered", mock.Anything, purchaseID, mock.Anything).
					Return(nil, delivery.ErrAlreadyDelivered)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"purchase already delivered"`,
		},
		{
			name: "ошибка сервиса",
			body: validBody,
			setupMock: func(m *MockService) {
				m.On("MarkDelivered", mock.Anything, purchaseID, mock.Anything).
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not mark purchase delivered"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost,
				"/api/v1/admin/purchases/"+purchaseID+"/deliver", strings.NewReader(tt.body))
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", purchaseID)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)

			mockService.AssertExpectations(t)
		})
	}
}
