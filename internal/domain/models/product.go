package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category представляет категорию товаров
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Product представляет товар каталога
type Product struct {
	ID          int64           `json:"id"`
	CategoryID  int64           `json:"category_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
