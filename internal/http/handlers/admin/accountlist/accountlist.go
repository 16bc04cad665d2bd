// Package accountlist реализует админский список аккаунтов
// с keyset-пагинацией и непрозрачным курсором.
package accountlist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/response"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/cursor"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service описывает интерфейс выборки аккаунтов.
type Service interface {
	ListAccounts(ctx context.Context, after *models.Account, limit int) ([]models.Account, error)
}

// Handler управляет HTTP-запросами на список аккаунтов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.accountlist"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit := parseLimit(r.URL.Query().Get("limit"))

	token, err := cursor.Decode(r.URL.Query().Get("cursor"))
	if err != nil {
		log.Error("malformed cursor", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("malformed cursor"))
		return
	}
	var after *models.Account
	if token != nil {
		after = &models.Account{UID: token.ID, CreatedAt: token.CreatedAt}
	}

	accounts, err := h.service.ListAccounts(r.Context(), after, limit)
	if err != nil {
		log.Error("failed to list accounts", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list accounts"))
		return
	}

	// Следующая страница может существовать, только если текущая полная.
	var nextCursor string
	if len(accounts) == limit {
		last := accounts[len(accounts)-1]
		nextCursor = cursor.Encode(cursor.Token{CreatedAt: last.CreatedAt, ID: last.UID})
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"accounts":    accounts,
		"next_cursor": nextCursor,
		"has_more":    nextCursor != "",
	}))
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
