// Package deliver реализует HTTP-обработчик пометки покупки доставленной.
//
// Handler принимает ссылку на готовый план питания и выполняет единственный
// разрешенный переход покупки paid -> delivered.
package deliver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/response"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/sl"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/models"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/services/delivery"
)

// Service описывает интерфейс бизнес-логики доставки.
type Service interface {
	MarkDelivered(ctx context.Context, purchaseID, mealPlanURL string) (*models.PurchaseRecord, error)
}

// Handler управляет HTTP-запросами на пометку покупки доставленной.
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
	const op = "handlers.admin.deliver"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	purchaseID := chi.URLParam(r, "id")
	if purchaseID == "" {
		log.Error("missing purchase id in path")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing purchase id"))
		return
	}

	var req models.DummyDelivery
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

	purchase, err := h.service.MarkDelivered(r.Context(), purchaseID, req.MealPlanURL)
	if err != nil {
		switch {
		case errors.Is(err, delivery.ErrPurchaseNotFound):
			log.Info("purchase not found", slog.String("purchase_id", purchaseID))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("purchase not found"))
		case errors.Is(err, delivery.ErrAlreadyDelivered):
			log.Info("purchase already delivered", slog.String("purchase_id", purchaseID))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("purchase already delivered"))
		default:
			log.Error("failed to mark purchase delivered", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not mark purchase delivered"))
		}
		return
	}

	log.Info("purchase delivered", slog.String("purchase_id", purchaseID))
	render.JSON(w, r, response.OKWithData(purchase))
}
