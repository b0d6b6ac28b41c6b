package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/online-shop/internal/domain/models"
	"github.com/linemk/online-shop/internal/storage"
)

// ErrDuplicateProduct — один товар встретился в запросе несколько раз с разным количеством.
var ErrDuplicateProduct = errors.New("conflicting duplicate product in request")

// ItemChange — желаемое состояние одной позиции корзины, как его прислал клиент.
type ItemChange struct {
	ProductID int64
	Quantity  int
}

// CartPlan — результат сверки желаемого списка с сохранённой корзиной:
// минимальный набор вставок, обновлений и удалений.
type CartPlan struct {
	Creates []ItemChange
	Updates []ItemChange
	Deletes []int64
}

// Empty сообщает, что план не требует ни одной записи в БД.
func (p CartPlan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// PlanCartChanges сверяет желаемый список позиций с текущим содержимым корзины.
// Количество 0 — сигнал удаления. Позиции корзины, не упомянутые в desired,
// не трогаются: это не полная замена корзины, а точечная правка.
// Количество 0 для товара, которого в корзине нет, — осознанный no-op
// (нечего удалять и нечего создавать).
func PlanCartChanges(desired []ItemChange, current map[int64]*models.CartItem) CartPlan {
	var plan CartPlan
	for _, want := range desired {
		have, ok := current[want.ProductID]
		switch {
		case want.Quantity <= 0:
			if ok {
				plan.Deletes = append(plan.Deletes, want.ProductID)
			}
		case !ok:
			plan.Creates = append(plan.Creates, want)
		case have.Quantity != want.Quantity:
			plan.Updates = append(plan.Updates, want)
		}
	}
	return plan
}

// CartResponse — корзина с позициями, как её отдаёт сервис.
type CartResponse struct {
	ID    int64              `json:"id"`
	Items []*models.CartItem `json:"items"`
}

// CartService определяет интерфейс для работы с корзиной пользователя.
type CartService interface {
	GetCart(ctx context.Context, userID int64) (*CartResponse, error)
	// UpdateCart применяет присланный список позиций к корзине и возвращает результат.
	UpdateCart(ctx context.Context, userID int64, desired []ItemChange) (*CartResponse, error)
}

type cartService struct {
	log         *slog.Logger
	db          *sql.DB
	cartRepo    storage.CartStorage
	productRepo storage.ProductStorage
}

func NewCartService(log *slog.Logger, db *sql.DB, cartRepo storage.CartStorage, productRepo storage.ProductStorage) CartService {
	return &cartService{
		log:         log,
		db:          db,
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

func (s *cartService) GetCart(ctx context.Context, userID int64) (*CartResponse, error) {
	const op = "service.CartService.GetCart"

	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		s.log.Error("failed to get cart", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}

	items, err := s.cartRepo.GetCartItems(ctx, cart.ID)
	if err != nil {
		s.log.Error("failed to get cart items", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart items: %w", op, err)
	}

	return &CartResponse{ID: cart.ID, Items: items}, nil
}

// UpdateCart сверяет присланный список с сохранённой корзиной и применяет
// разницу. Все три пачки (вставки, обновления, удаления) выполняются в одной
// транзакции: либо корзина переходит в новое состояние целиком, либо остаётся
// прежней.
func (s *cartService) UpdateCart(ctx context.Context, userID int64, desired []ItemChange) (*CartResponse, error) {
	const op = "service.CartService.UpdateCart"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))
	logger.Info("reconciling cart", slog.Int("desiredItems", len(desired)))

	desired, err := squashDuplicates(desired)
	if err != nil {
		logger.Warn("conflicting duplicates in request")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		logger.Error("failed to get cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}

	items, err := s.cartRepo.GetCartItems(ctx, cart.ID)
	if err != nil {
		logger.Error("failed to get cart items", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart items: %w", op, err)
	}

	current := make(map[int64]*models.CartItem, len(items))
	for _, item := range items {
		current[item.ProductID] = item
	}

	plan := PlanCartChanges(desired, current)
	if plan.Empty() {
		logger.Info("cart already converged")
		return &CartResponse{ID: cart.ID, Items: items}, nil
	}

	// Новые позиции должны ссылаться на существующие товары
	if len(plan.Creates) > 0 {
		ids := make([]int64, 0, len(plan.Creates))
		for _, c := range plan.Creates {
			ids = append(ids, c.ProductID)
		}
		products, err := s.productRepo.GetProductsByIDs(ctx, ids)
		if err != nil {
			logger.Error("failed to load products", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to load products: %w", op, err)
		}
		if len(products) != len(ids) {
			logger.Warn("unknown product in cart request")
			return nil, fmt.Errorf("%s: %w", op, storage.ErrProductNotFound)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	if err := s.applyPlan(ctx, tx, cart.ID, plan); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to apply cart changes", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	updated, err := s.cartRepo.GetCartItems(ctx, cart.ID)
	if err != nil {
		logger.Error("failed to reload cart items", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to reload cart items: %w", op, err)
	}

	logger.Info("cart reconciled",
		slog.Int("creates", len(plan.Creates)),
		slog.Int("updates", len(plan.Updates)),
		slog.Int("deletes", len(plan.Deletes)),
	)
	return &CartResponse{ID: cart.ID, Items: updated}, nil
}

// squashDuplicates сводит повторы одного товара в одну позицию. Повторы с
// одинаковым количеством безвредны и схлопываются, с разным — противоречие,
// такой запрос отклоняется целиком.
func squashDuplicates(desired []ItemChange) ([]ItemChange, error) {
	seen := make(map[int64]int, len(desired))
	result := make([]ItemChange, 0, len(desired))
	for _, want := range desired {
		if prev, ok := seen[want.ProductID]; ok {
			if prev != want.Quantity {
				return nil, ErrDuplicateProduct
			}
			continue
		}
		seen[want.ProductID] = want.Quantity
		result = append(result, want)
	}
	return result, nil
}

func (s *cartService) applyPlan(ctx context.Context, tx *sql.Tx, cartID int64, plan CartPlan) error {
	for _, c := range plan.Creates {
		if err := s.cartRepo.CreateCartItemTx(ctx, tx, cartID, c.ProductID, c.Quantity); err != nil {
			return fmt.Errorf("failed to create cart item: %w", err)
		}
	}
	for _, u := range plan.Updates {
		if err := s.cartRepo.UpdateCartItemQuantityTx(ctx, tx, cartID, u.ProductID, u.Quantity); err != nil {
			if errors.Is(err, storage.ErrCartNotFound) {
				// позиция исчезла между чтением и записью — считаем это гонкой, а не фатальной ошибкой
				return fmt.Errorf("cart item disappeared during reconcile: %w", err)
			}
			return fmt.Errorf("failed to update cart item: %w", err)
		}
	}
	for _, productID := range plan.Deletes {
		if err := s.cartRepo.DeleteCartItemTx(ctx, tx, cartID, productID); err != nil {
			return fmt.Errorf("failed to delete cart item: %w", err)
		}
	}
	return nil
}
