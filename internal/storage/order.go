package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/online-shop/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderTx вставляет новый заказ в рамках транзакции.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error)
	// CreateOrderItemTx вставляет снимок позиции заказа в рамках транзакции.
	CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error
	// GetOrderByID возвращает заказ с позициями.
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	// MarkPaymentSucceeded атомарно переводит заказ в статус payment_succeeded
	// по уникальному payment_intent_id и возвращает обновлённый заказ.
	// Повторный вызов с тем же идентификатором возвращает тот же результат;
	// заказ, ушедший дальше по жизненному циклу, не откатывается.
	MarkPaymentSucceeded(ctx context.Context, paymentIntentID string) (*models.Order, error)
	// GetOrderItems возвращает позиции заказа.
	GetOrderItems(ctx context.Context, orderID int64) ([]*models.OrderItem, error)
}

// orderRepository — конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	var id int64
	query := `
		INSERT INTO orders (user_id, address_id, payment_intent_id, total_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id`
	err := tx.QueryRowContext(ctx, query,
		order.UserID, order.AddressID, order.PaymentIntentID, order.TotalPrice, order.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return id, nil
}

func (r *orderRepository) CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, product_name, price, quantity)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := tx.ExecContext(ctx, query, item.OrderID, item.ProductID, item.ProductName, item.Price, item.Quantity)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	order := &models.Order{}
	query := `
		SELECT id, user_id, address_id, payment_intent_id, total_price, status, created_at
		FROM orders
		WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	if err := row.Scan(&order.ID, &order.UserID, &order.AddressID, &order.PaymentIntentID, &order.TotalPrice, &order.Status, &order.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	items, err := r.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// MarkPaymentSucceeded — единый условный UPDATE по уникальному ключу, а не
// чтение с последующей записью: окно для конкурентной модификации отсутствует.
// Повторная доставка того же события находит строку и возвращает её без
// изменений (статус уже payment_succeeded). Статусы дальше по жизненному циклу
// (shipped, delivered) назад не откатываются: CASE оставляет их как есть, а
// запоздавший дубль получает заказ в его текущем состоянии.
func (r *orderRepository) MarkPaymentSucceeded(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	order := &models.Order{}
	query := `
		UPDATE orders
		SET status = CASE WHEN status IN ($1, $2) THEN $2 ELSE status END
		WHERE payment_intent_id = $3
		RETURNING id, user_id, address_id, payment_intent_id, total_price, status, created_at`
	row := r.db.QueryRowContext(ctx, query, models.StatusPaymentInitiated, models.StatusPaymentSucceeded, paymentIntentID)
	if err := row.Scan(&order.ID, &order.UserID, &order.AddressID, &order.PaymentIntentID, &order.TotalPrice, &order.Status, &order.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	items, err := r.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) GetOrderItems(ctx context.Context, orderID int64) ([]*models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
