package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/online-shop/internal/domain/models"
	"github.com/linemk/online-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/online-shop/internal/service"
	"github.com/linemk/online-shop/internal/storage"
)

// CreateOrderRequest — тело запроса POST /api/orders.
type CreateOrderRequest struct {
	Items        []CartItemPayload `json:"items" validate:"required,min=1,dive"`
	OrderDetails OrderDetails      `json:"orderDetails" validate:"required"`
	Shipping     AddressPayload    `json:"shippingAddress" validate:"required"`
}

type OrderDetails struct {
	TotalPrice string `json:"totalPrice" validate:"required"`
}

type AddressPayload struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// CreateOrderHandler обрабатывает запрос POST /api/orders.
// Токен не обязателен: без него заказ оформляется как гостевой.
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		items := make([]service.ItemChange, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, service.ItemChange{
				ProductID: item.ProductID,
				Quantity:  item.ProductQuantity,
			})
		}

		input := service.CreateOrderInput{
			Items:      items,
			TotalPrice: req.OrderDetails.TotalPrice,
			Address: models.Address{
				Line1:      req.Shipping.Line1,
				Line2:      req.Shipping.Line2,
				City:       req.Shipping.City,
				PostalCode: req.Shipping.PostalCode,
				Country:    req.Shipping.Country,
			},
		}
		// userID присутствует только если клиент пришёл с валидным токеном
		if userID, ok := jwtmiddleware.FromContext(r.Context()); ok {
			input.UserID = &userID
		}

		result, err := orderService.CreateOrder(r.Context(), input)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrProductNotFound):
				http.Error(w, "product not found", http.StatusNotFound)
			case errors.Is(err, service.ErrTotalMismatch), errors.Is(err, service.ErrEmptyOrder):
				http.Error(w, "invalid order", http.StatusBadRequest)
			default:
				logger.Error("failed to create order", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	}
}

// GetOrderHandler обрабатывает запрос GET /api/orders/{id}, доступен только владельцу.
func GetOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		order, err := orderService.GetOrder(r.Context(), orderID, userID)
		if err != nil {
			if errors.Is(err, storage.ErrOrderNotFound) {
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get order", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(order); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}
