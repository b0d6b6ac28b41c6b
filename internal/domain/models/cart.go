package models

import "time"

// Cart представляет корзину пользователя (одна корзина на пользователя)
type Cart struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CartItem представляет позицию корзины.
// Инвариант: не больше одной позиции на товар в рамках одной корзины.
type CartItem struct {
	ID        int64 `json:"id"`
	CartID    int64 `json:"cart_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
