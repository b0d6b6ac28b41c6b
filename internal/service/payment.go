package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/online-shop/internal/domain/models"
	"github.com/linemk/online-shop/internal/storage"
)

// PaymentService определяет интерфейс обработки событий платёжного провайдера.
type PaymentService interface {
	// OnPaymentSucceeded переводит заказ по payment_intent_id в статус
	// payment_succeeded и чистит корзину владельца от купленных товаров.
	OnPaymentSucceeded(ctx context.Context, paymentIntentID string) (*models.Order, error)
}

type paymentService struct {
	log       *slog.Logger
	orderRepo storage.OrderStorage
	cartRepo  storage.CartStorage
}

func NewPaymentService(log *slog.Logger, orderRepo storage.OrderStorage, cartRepo storage.CartStorage) PaymentService {
	return &paymentService{
		log:       log,
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
	}
}

// OnPaymentSucceeded обрабатывает подтверждение оплаты.
// Поиск и смена статуса — один условный UPDATE по уникальному ключу.
// Чистка корзины удаляет купленные товары целиком, независимо от количества
// в корзине. Повторная доставка того же события безвредна: UPDATE вернёт тот
// же заказ, а удаление уже отсутствующих позиций затронет ноль строк.
func (s *paymentService) OnPaymentSucceeded(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	const op = "service.PaymentService.OnPaymentSucceeded"
	logger := s.log.With(slog.String("op", op), slog.String("paymentIntentID", paymentIntentID))
	logger.Info("processing payment confirmation")

	order, err := s.orderRepo.MarkPaymentSucceeded(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			logger.Warn("no order for payment intent")
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		logger.Error("failed to mark payment succeeded", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to mark payment succeeded: %w", op, err)
	}

	// Гостевой заказ — корзины нет, чистить нечего
	if order.UserID == nil {
		logger.Info("guest order, skipping cart cleanup", slog.Int64("orderID", order.ID))
		return order, nil
	}

	cart, err := s.cartRepo.GetCartByUserID(ctx, *order.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			logger.Info("user has no cart, skipping cleanup", slog.Int64("userID", *order.UserID))
			return order, nil
		}
		logger.Error("failed to get cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}

	productIDs := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	if len(productIDs) > 0 {
		if err := s.cartRepo.DeleteCartItemsByProductIDs(ctx, cart.ID, productIDs); err != nil {
			logger.Error("failed to clean cart", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to clean cart: %w", op, err)
		}
	}

	logger.Info("payment confirmed",
		slog.Int64("orderID", order.ID),
		slog.Int("purchasedProducts", len(productIDs)),
	)
	return order, nil
}
