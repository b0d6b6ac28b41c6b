package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus — статус заказа, движется только вперёд
type OrderStatus string

const (
	StatusPaymentInitiated OrderStatus = "payment_initiated"
	StatusPaymentSucceeded OrderStatus = "payment_succeeded"
	StatusShipped          OrderStatus = "shipped"
	StatusDelivered        OrderStatus = "delivered"
)

// Order представляет заказ. UserID == nil для гостевого заказа.
type Order struct {
	ID              int64           `json:"id"`
	UserID          *int64          `json:"user_id,omitempty"`
	AddressID       int64           `json:"address_id"`
	PaymentIntentID string          `json:"payment_intent_id"` // уникальный идентификатор от платёжного провайдера
	TotalPrice      decimal.Decimal `json:"total_price"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []*OrderItem    `json:"items,omitempty"`
}

// OrderItem — снимок купленного товара на момент создания заказа,
// живёт независимо от позиций корзины
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}
