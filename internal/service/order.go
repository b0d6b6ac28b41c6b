package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/online-shop/internal/domain/models"
	"github.com/linemk/online-shop/internal/payment"
	"github.com/linemk/online-shop/internal/storage"
	"github.com/shopspring/decimal"
)

var (
	ErrTotalMismatch = errors.New("total price does not match order items")
	ErrEmptyOrder    = errors.New("order has no items")
)

// CreateOrderInput — данные оформления заказа. UserID == nil для гостя.
type CreateOrderInput struct {
	UserID     *int64
	Items      []ItemChange
	TotalPrice string // десятичная строка, парсится и сверяется с суммой позиций
	Address    models.Address
}

// CreateOrderResult — созданный заказ плюс секрет для подтверждения оплаты на клиенте.
type CreateOrderResult struct {
	Order        *models.Order `json:"order"`
	ClientSecret string        `json:"clientSecret"`
}

// OrderService определяет интерфейс оформления и чтения заказов.
type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	GetOrder(ctx context.Context, orderID, userID int64) (*models.Order, error)
}

type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	orderRepo   storage.OrderStorage
	addressRepo storage.AddressStorage
	productRepo storage.ProductStorage
	intents     payment.IntentCreator
	currency    string
}

func NewOrderService(
	log *slog.Logger,
	db *sql.DB,
	orderRepo storage.OrderStorage,
	addressRepo storage.AddressStorage,
	productRepo storage.ProductStorage,
	intents payment.IntentCreator,
	currency string,
) OrderService {
	return &orderService{
		log:         log,
		db:          db,
		orderRepo:   orderRepo,
		addressRepo: addressRepo,
		productRepo: productRepo,
		intents:     intents,
		currency:    currency,
	}
}

// CreateOrder оформляет заказ: создаёт платёжное намерение у провайдера, затем
// в одной транзакции сохраняет адрес, заказ и снимки позиций. Цены и названия
// берутся из каталога на момент оформления, а не из запроса.
func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op))
	if input.UserID != nil {
		logger = logger.With(slog.Int64("userID", *input.UserID))
	}
	logger.Info("creating order", slog.Int("items", len(input.Items)))

	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyOrder)
	}

	// повторные строки одного товара допустимы, существование проверяем без повторов
	ids := make([]int64, 0, len(input.Items))
	seen := make(map[int64]struct{}, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%s: item quantity must be positive", op)
		}
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	products, err := s.productRepo.GetProductsByIDs(ctx, ids)
	if err != nil {
		logger.Error("failed to load products", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load products: %w", op, err)
	}
	if len(products) != len(ids) {
		logger.Warn("unknown product in order request")
		return nil, fmt.Errorf("%s: %w", op, storage.ErrProductNotFound)
	}
	byID := make(map[int64]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	total, err := decimal.NewFromString(input.TotalPrice)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid total price: %w", op, err)
	}

	// Сверяем присланный итог с суммой по каталогу, клиентской цене не доверяем
	computed := decimal.Zero
	for _, item := range input.Items {
		line := byID[item.ProductID].Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		computed = computed.Add(line)
	}
	if !computed.Equal(total) {
		logger.Warn("total price mismatch",
			slog.String("submitted", total.String()),
			slog.String("computed", computed.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTotalMismatch)
	}

	intent, err := s.intents.CreateIntent(ctx, total, s.currency)
	if err != nil {
		logger.Error("failed to create payment intent", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create payment intent: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	addressID, err := s.addressRepo.CreateAddressTx(ctx, tx, &input.Address)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to create address", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create address: %w", op, err)
	}

	order := &models.Order{
		UserID:          input.UserID,
		AddressID:       addressID,
		PaymentIntentID: intent.ID,
		TotalPrice:      total,
		Status:          models.StatusPaymentInitiated,
	}
	orderID, err := s.orderRepo.CreateOrderTx(ctx, tx, order)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}
	order.ID = orderID

	for _, item := range input.Items {
		product := byID[item.ProductID]
		orderItem := &models.OrderItem{
			OrderID:     orderID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    item.Quantity,
		}
		if err := s.orderRepo.CreateOrderItemTx(ctx, tx, orderItem); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("transaction rollback failed", slog.Any("error", rbErr))
			}
			logger.Error("failed to create order item", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to create order item: %w", op, err)
		}
		order.Items = append(order.Items, orderItem)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order created",
		slog.Int64("orderID", orderID),
		slog.String("paymentIntentID", intent.ID),
	)
	return &CreateOrderResult{Order: order, ClientSecret: intent.ClientSecret}, nil
}

// GetOrder возвращает заказ владельцу. Чужой или гостевой заказ для
// аутентифицированного пользователя неотличим от несуществующего.
func (s *orderService) GetOrder(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Error("failed to get order", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
	}
	return order, nil
}
