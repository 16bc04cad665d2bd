package accountlist

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
)

// MockService реализует интерфейс accountlist.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ListAccounts(ctx context.Context, after *models.Account, limit int) ([]models.Account, error) {
	args := m.Called(ctx, after, limit)
	if res := args.Get(0); res != nil {
		return res.([]models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func makeAccounts(n int) []models.Account {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Account, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Account{
			UID:       fmt.Sprintf("uid-%03d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func TestListHandler_FirstPage(t *testing.T) {
	mockService := new(MockService)
	mockService.On("ListAccounts", mock.Anything, (*models.Account)(nil), 20).
		Return(makeAccounts(20), nil).Once()

	handler := New(newNoopLogger(), mockService)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/accounts", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_more":true`)
	mockService.AssertExpectations(t)
}

func TestListHandler_EmptyCollection(t *testing.T) {
	mockService := new(MockService)
	mockService.On("ListAccounts", mock.Anything, (*models.Account)(nil), 20).
		Return([]models.Account{}, nil).Once()

	handler := New(newNoopLogger(), mockService)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/accounts", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_more":false`)
}

func TestListHandler_MalformedCursorRejected(t *testing.T) {
	mockService := new(MockService)
	handler := New(newNoopLogger(), mockService)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/accounts?cursor=garbage", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "ListAccounts", mock.Anything, mock.Anything, mock.Anything)
}
