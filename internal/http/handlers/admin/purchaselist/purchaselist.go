// Package purchaselist реализует админский список журнала покупок
// с keyset-пагинацией и непрозрачным курсором.
package purchaselist

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

// Service описывает интерфейс выборки журнала покупок.
type Service interface {
	ListPurchases(ctx context.Context, after *models.PurchaseRecord, limit int) ([]models.PurchaseRecord, error)
}

// Handler управляет HTTP-запросами на список покупок.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.purchaselist"
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
	var after *models.PurchaseRecord
	if token != nil {
		after = &models.PurchaseRecord{ID: token.ID, CreatedAt: token.CreatedAt}
	}

	purchases, err := h.service.ListPurchases(r.Context(), after, limit)
	if err != nil {
		log.Error("failed to list purchases", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list purchases"))
		return
	}

	var nextCursor string
	if len(purchases) == limit {
		last := purchases[len(purchases)-1]
		nextCursor = cursor.Encode(cursor.Token{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"purchases":   purchases,
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
