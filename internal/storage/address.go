package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/online-shop/internal/domain/models"
)

// AddressStorage описывает методы для работы с адресами доставки.
type AddressStorage interface {
	// CreateAddressTx вставляет адрес в рамках транзакции и возвращает его id.
	CreateAddressTx(ctx context.Context, tx *sql.Tx, address *models.Address) (int64, error)
}

type addressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) AddressStorage {
	return &addressRepository{db: db}
}

func (r *addressRepository) CreateAddressTx(ctx context.Context, tx *sql.Tx, address *models.Address) (int64, error) {
	var id int64
	query := `
		INSERT INTO addresses (line1, line2, city, postal_code, country)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err := tx.QueryRowContext(ctx, query,
		address.Line1, address.Line2, address.City, address.PostalCode, address.Country,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create address: %w", err)
	}
	return id, nil
}
