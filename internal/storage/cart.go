package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/online-shop/internal/domain/models"
)

var ErrCartNotFound = errors.New("cart not found")

// CartStorage описывает методы для работы с корзиной.
type CartStorage interface {
	// GetCartByUserID возвращает корзину пользователя.
	GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error)
	// GetOrCreateCart возвращает корзину пользователя, создавая её при первом обращении.
	GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	// GetCartItems возвращает все позиции корзины.
	GetCartItems(ctx context.Context, cartID int64) ([]*models.CartItem, error)
	// CreateCartItemTx вставляет новую позицию в рамках транзакции.
	CreateCartItemTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int) error
	// UpdateCartItemQuantityTx меняет количество существующей позиции в рамках транзакции.
	UpdateCartItemQuantityTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int) error
	// DeleteCartItemTx удаляет позицию в рамках транзакции.
	DeleteCartItemTx(ctx context.Context, tx *sql.Tx, cartID, productID int64) error
	// DeleteCartItemsByProductIDs удаляет все позиции корзины по списку товаров.
	// Отсутствующие товары просто пропускаются, ошибки это не вызывает.
	DeleteCartItemsByProductIDs(ctx context.Context, cartID int64, productIDs []int64) error
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт новый репозиторий корзины.
func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	cart := &models.Cart{}
	row := r.db.QueryRowContext(ctx, "SELECT id, user_id, created_at FROM carts WHERE user_id = $1", userID)
	if err := row.Scan(&cart.ID, &cart.UserID, &cart.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return cart, nil
}

// GetOrCreateCart использует ON CONFLICT по уникальному user_id, чтобы конкурентные
// первые запросы одного пользователя не падали на вставке дубликата.
func (r *cartRepository) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	cart, err := r.GetCartByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	cart = &models.Cart{UserID: userID}
	query := `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, created_at`
	row := r.db.QueryRowContext(ctx, query, userID)
	if err := row.Scan(&cart.ID, &cart.UserID, &cart.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return cart, nil
}

func (r *cartRepository) GetCartItems(ctx context.Context, cartID int64) ([]*models.CartItem, error) {
	query := `
		SELECT id, cart_id, product_id, quantity
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []*models.CartItem
	for rows.Next() {
		item := &models.CartItem{}
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *cartRepository) CreateCartItemTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int) error {
	query := "INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)"
	if _, err := tx.ExecContext(ctx, query, cartID, productID, quantity); err != nil {
		return fmt.Errorf("failed to create cart item: %w", err)
	}
	return nil
}

func (r *cartRepository) UpdateCartItemQuantityTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int) error {
	query := "UPDATE cart_items SET quantity = $1 WHERE cart_id = $2 AND product_id = $3"
	res, err := tx.ExecContext(ctx, query, quantity, cartID, productID)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (r *cartRepository) DeleteCartItemTx(ctx context.Context, tx *sql.Tx, cartID, productID int64) error {
	// удаление уже отсутствующей позиции — не ошибка
	query := "DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2"
	if _, err := tx.ExecContext(ctx, query, cartID, productID); err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	return nil
}

func (r *cartRepository) DeleteCartItemsByProductIDs(ctx context.Context, cartID int64, productIDs []int64) error {
	query := "DELETE FROM cart_items WHERE cart_id = $1 AND product_id = ANY($2)"
	if _, err := r.db.ExecContext(ctx, query, cartID, pq.Array(productIDs)); err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}
	return nil
}
