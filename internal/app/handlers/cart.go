package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/online-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/online-shop/internal/service"
	"github.com/linemk/online-shop/internal/storage"
)

// CartItemPayload — одна позиция из запроса клиента.
// productQuantity = 0 означает удаление товара из корзины.
type CartItemPayload struct {
	ProductID       int64 `json:"productId" validate:"required,gt=0"`
	ProductQuantity int   `json:"productQuantity" validate:"gte=0"`
}

// UpdateCartRequest — желаемый список позиций корзины.
type UpdateCartRequest struct {
	Items []CartItemPayload `json:"items" validate:"required,dive"`
}

// GetCartHandler обрабатывает запрос GET /api/cart.
func GetCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetCartHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		cart, err := cartService.GetCart(r.Context(), userID)
		if err != nil {
			logger.Error("failed to get cart", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cart); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}

// UpdateCartHandler обрабатывает запрос POST /api/cart: сверяет присланный
// список позиций с сохранённой корзиной и возвращает её новое состояние.
func UpdateCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateCartHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req UpdateCartRequest
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

		desired := make([]service.ItemChange, 0, len(req.Items))
		for _, item := range req.Items {
			desired = append(desired, service.ItemChange{
				ProductID: item.ProductID,
				Quantity:  item.ProductQuantity,
			})
		}

		cart, err := cartService.UpdateCart(r.Context(), userID, desired)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrProductNotFound):
				logger.Warn("unknown product in request")
				http.Error(w, "product not found", http.StatusNotFound)
			case errors.Is(err, service.ErrDuplicateProduct):
				logger.Warn("conflicting duplicates in request")
				http.Error(w, "invalid request", http.StatusBadRequest)
			default:
				logger.Error("failed to update cart", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cart); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}
