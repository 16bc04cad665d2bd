// Package read реализует HTTP-обработчик чтения аккаунта по UID.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/response"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/services/account"
)

// Service описывает интерфейс бизнес-логики чтения аккаунта.
type Service interface {
	Get(ctx context.Context, uid string) (*models.Account, error)
}

// Handler управляет HTTP-запросами на чтение аккаунта.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid := chi.URLParam(r, "uid")
	if uid == "" {
		log.Error("missing account uid in path")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing account uid"))
		return
	}

	acc, err := h.service.Get(r.Context(), uid)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			log.Info("account not found", slog.String("uid", uid))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("account not found"))
			return
		}
		log.Error("failed to read account", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read account"))
		return
	}

	render.JSON(w, r, response.OKWithData(acc))
}
