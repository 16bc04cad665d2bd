// Package create реализует HTTP-обработчик создания аккаунта клиента.
//
// Handler принимает JSON-запрос с данными аккаунта, валидирует их,
// вызывает бизнес-логику создания через сервис и возвращает созданный
// аккаунт с выданным реферальным кодом.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/response"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/services/account"
)

// Service описывает интерфейс бизнес-логики создания аккаунта.
type Service interface {
	Create(ctx context.Context, req models.DummyAccount) (*models.Account, error)
}

// Handler управляет HTTP-запросами на создание аккаунтов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyAccount
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	created, err := h.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, account.ErrAccountExists) {
			log.Error("account already exists", slog.String("uid", req.UID))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("account already exists"))
			return
		}
		log.Error("failed to create account", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create account"))
		return
	}

	log.Info("account created", slog.String("uid", created.UID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"uid":           created.UID,
		"referral_code": created.ReferralCode,
	}))
}
