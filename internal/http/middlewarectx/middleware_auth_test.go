package middlewarectx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/jwt"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	token, err := maker.GenerateToken("operator", "admin")
	require.NoError(t, err)

	var called bool
	var gotUser, gotRole string
	handler := JWTMiddleware(maker, newNoopLogger())(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			called = true
			gotUser, _ = r.Context().Value(User).(string)
			gotRole, _ = r.Context().Value(Role).(string)
		}))

	req := httptest.NewRequest(http.MethodGet, "/admin/purchases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.True(t, called)
	assert.Equal(t, "operator", gotUser)
	assert.Equal(t, "admin", gotRole)
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)

	var called bool
	handler := JWTMiddleware(maker, newNoopLogger())(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/admin/purchases", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	otherMaker := jwt.NewJWTMaker("other-secret", time.Hour)
	token, err := otherMaker.GenerateToken("operator", "admin")
	require.NoError(t, err)

	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	var called bool
	handler := JWTMiddleware(maker, newNoopLogger())(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/admin/purchases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAdmin_RejectsNonAdmin(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	token, err := maker.GenerateToken("client", "user")
	require.NoError(t, err)

	var called bool
	handler := JWTMiddleware(maker, newNoopLogger())(
		RequireAdmin(newNoopLogger())(okHandler(&called)))

	req := httptest.NewRequest(http.MethodGet, "/admin/purchases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	var called bool
	limiter := rate.NewLimiter(rate.Limit(0), 1)
	handler := RateLimitMiddleware(newNoopLogger(), limiter)(okHandler(&called))

	// Первый запрос съедает единственный токен, второй отклоняется.
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}
