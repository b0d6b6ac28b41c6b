package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/linemk/online-shop/internal/domain/models"
	"github.com/linemk/online-shop/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func currentItems(items ...*models.CartItem) map[int64]*models.CartItem {
	m := make(map[int64]*models.CartItem, len(items))
	for _, item := range items {
		m[item.ProductID] = item
	}
	return m
}

func TestPlanCartChanges_ZeroQuantityGoesToDeletes(t *testing.T) {
	current := currentItems(
		&models.CartItem{ID: 1, CartID: 1, ProductID: 10, Quantity: 2},
	)
	desired := []service.ItemChange{{ProductID: 10, Quantity: 0}}

	plan := service.PlanCartChanges(desired, current)

	assert.Equal(t, []int64{10}, plan.Deletes, "Zero quantity must route to deletes")
	assert.Empty(t, plan.Creates, "Zero quantity must never create")
	assert.Empty(t, plan.Updates, "Zero quantity must never update")
}

func TestPlanCartChanges_NewItemGoesToCreates(t *testing.T) {
	current := currentItems()
	desired := []service.ItemChange{{ProductID: 7, Quantity: 3}}

	plan := service.PlanCartChanges(desired, current)

	assert.Equal(t, []service.ItemChange{{ProductID: 7, Quantity: 3}}, plan.Creates)
	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Deletes)
}

func TestPlanCartChanges_ChangedQuantityGoesToUpdates(t *testing.T) {
	current := currentItems(
		&models.CartItem{ID: 1, CartID: 1, ProductID: 7, Quantity: 1},
	)
	desired := []service.ItemChange{{ProductID: 7, Quantity: 5}}

	plan := service.PlanCartChanges(desired, current)

	assert.Equal(t, []service.ItemChange{{ProductID: 7, Quantity: 5}}, plan.Updates)
	assert.Empty(t, plan.Creates)
	assert.Empty(t, plan.Deletes)
}

func TestPlanCartChanges_UnchangedQuantityIsNoop(t *testing.T) {
	current := currentItems(
		&models.CartItem{ID: 1, CartID: 1, ProductID: 7, Quantity: 5},
	)
	desired := []service.ItemChange{{ProductID: 7, Quantity: 5}}

	plan := service.PlanCartChanges(desired, current)
	assert.True(t, plan.Empty(), "Matching quantity must produce no writes")
}

// Товар, не упомянутый в desired, остаётся нетронутым: это точечная правка,
// а не полная замена корзины.
func TestPlanCartChanges_UnmentionedItemsUntouched(t *testing.T) {
	current := currentItems(
		&models.CartItem{ID: 1, CartID: 1, ProductID: 7, Quantity: 5},
		&models.CartItem{ID: 2, CartID: 1, ProductID: 8, Quantity: 1},
	)
	desired := []service.ItemChange{{ProductID: 7, Quantity: 2}}

	plan := service.PlanCartChanges(desired, current)

	assert.Equal(t, []service.ItemChange{{ProductID: 7, Quantity: 2}}, plan.Updates)
	assert.Empty(t, plan.Deletes, "Item 8 was not mentioned and must not be deleted")
}

// Количество 0 для товара, которого нет в корзине, — осознанный no-op.
func TestPlanCartChanges_ZeroForAbsentItemIsNoop(t *testing.T) {
	current := currentItems()
	desired := []service.ItemChange{{ProductID: 99, Quantity: 0}}

	plan := service.PlanCartChanges(desired, current)
	assert.True(t, plan.Empty())
}

// Пример из постановки: C = {A:2, B:1}, D = [{A,0},{C,3}]
// => deletes=[A], creates=[C:3], updates=[]
func TestPlanCartChanges_MixedExample(t *testing.T) {
	const (
		productA int64 = 1
		productB int64 = 2
		productC int64 = 3
	)
	current := currentItems(
		&models.CartItem{ID: 1, CartID: 1, ProductID: productA, Quantity: 2},
		&models.CartItem{ID: 2, CartID: 1, ProductID: productB, Quantity: 1},
	)
	desired := []service.ItemChange{
		{ProductID: productA, Quantity: 0},
		{ProductID: productC, Quantity: 3},
	}

	plan := service.PlanCartChanges(desired, current)

	assert.Equal(t, []int64{productA}, plan.Deletes)
	assert.Equal(t, []service.ItemChange{{ProductID: productC, Quantity: 3}}, plan.Creates)
	assert.Empty(t, plan.Updates)
}

func testProduct(id int64, price string) *models.Product {
	p := decimal.RequireFromString(price)
	return &models.Product{ID: id, CategoryID: 1, Name: "product", Price: p}
}

func TestUpdateCart_AppliesPlanInSingleTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cartRepo := newFakeCartRepo()
	productRepo := newFakeProductRepo(testProduct(10, "49.90"), testProduct(20, "5.00"))
	cartService := service.NewCartService(testLogger(), db, cartRepo, productRepo)
	ctx := context.Background()
	userID := int64(1)

	// корзина уже содержит товар 20, его количество поменяется
	cart, err := cartRepo.GetOrCreateCart(ctx, userID)
	assert.NoError(t, err)
	assert.NoError(t, cartRepo.CreateCartItemTx(ctx, nil, cart.ID, 20, 1))

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := cartService.UpdateCart(ctx, userID, []service.ItemChange{
		{ProductID: 10, Quantity: 2},
		{ProductID: 20, Quantity: 4},
	})
	assert.NoError(t, err)
	assert.Len(t, resp.Items, 2)

	byProduct := currentItems(resp.Items...)
	assert.Equal(t, 2, byProduct[10].Quantity)
	assert.Equal(t, 4, byProduct[20].Quantity)

	assert.NoError(t, mock.ExpectationsWereMet(), "Exactly one transaction must be opened and committed")
}

// brokenCartRepo — вставка позиции всегда падает
type brokenCartRepo struct {
	*fakeCartRepo
}

func (f *brokenCartRepo) CreateCartItemTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int) error {
	return assert.AnError
}

// Падение любой пачки откатывает транзакцию целиком: корзина либо переходит
// в новое состояние, либо остаётся прежней.
func TestUpdateCart_FailedBatchRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cartRepo := &brokenCartRepo{newFakeCartRepo()}
	productRepo := newFakeProductRepo(testProduct(10, "49.90"))
	cartService := service.NewCartService(testLogger(), db, cartRepo, productRepo)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = cartService.UpdateCart(context.Background(), 1, []service.ItemChange{
		{ProductID: 10, Quantity: 2},
	})
	assert.Error(t, err, "Failed batch must surface an error")
	assert.NoError(t, mock.ExpectationsWereMet(), "Transaction must be rolled back, not committed")
}

// Повторы одного товара с одинаковым количеством безвредны и схлопываются
// в одну позицию.
func TestUpdateCart_EqualDuplicatesCollapsed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cartRepo := newFakeCartRepo()
	productRepo := newFakeProductRepo(testProduct(10, "49.90"))
	cartService := service.NewCartService(testLogger(), db, cartRepo, productRepo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := cartService.UpdateCart(context.Background(), 1, []service.ItemChange{
		{ProductID: 10, Quantity: 2},
		{ProductID: 10, Quantity: 2},
	})
	assert.NoError(t, err, "Identical duplicate must not look like an unknown product")
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, 2, resp.Items[0].Quantity)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// Повторы с разным количеством — противоречие, запрос отклоняется до
// обращения к корзине.
func TestUpdateCart_ConflictingDuplicatesRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cartRepo := newFakeCartRepo()
	productRepo := newFakeProductRepo(testProduct(10, "49.90"))
	cartService := service.NewCartService(testLogger(), db, cartRepo, productRepo)

	_, err = cartService.UpdateCart(context.Background(), 1, []service.ItemChange{
		{ProductID: 10, Quantity: 2},
		{ProductID: 10, Quantity: 3},
	})
	assert.True(t, errors.Is(err, service.ErrDuplicateProduct))
	assert.Empty(t, cartRepo.carts, "Contradictory request must not even create a cart")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Повторный запуск с тем же списком не должен порождать новых записей:
// план пустой, транзакция не открывается вовсе.
func TestUpdateCart_IdempotentAfterConvergence(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cartRepo := newFakeCartRepo()
	productRepo := newFakeProductRepo(testProduct(10, "49.90"))
	cartService := service.NewCartService(testLogger(), db, cartRepo, productRepo)
	ctx := context.Background()
	userID := int64(1)

	desired := []service.ItemChange{{ProductID: 10, Quantity: 2}}

	mock.ExpectBegin()
	mock.ExpectCommit()

	first, err := cartService.UpdateCart(ctx, userID, desired)
	assert.NoError(t, err)
	assert.Len(t, first.Items, 1)

	// второй прогон — сходимость, БД не трогаем
	second, err := cartService.UpdateCart(ctx, userID, desired)
	assert.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.Equal(t, first.Items[0].ID, second.Items[0].ID, "No new cart item may appear on the second run")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCart_UnknownProductRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cartRepo := newFakeCartRepo()
	productRepo := newFakeProductRepo() // каталог пуст
	cartService := service.NewCartService(testLogger(), db, cartRepo, productRepo)

	_, err = cartService.UpdateCart(context.Background(), 1, []service.ItemChange{
		{ProductID: 404, Quantity: 1},
	})
	assert.Error(t, err, "Creating a cart item for an unknown product must fail")
	assert.NoError(t, mock.ExpectationsWereMet(), "No transaction may be opened for a rejected request")
}

func TestGetCart_CreatesCartOnFirstAccess(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cartRepo := newFakeCartRepo()
	cartService := service.NewCartService(testLogger(), db, cartRepo, newFakeProductRepo())

	resp, err := cartService.GetCart(context.Background(), 42)
	assert.NoError(t, err)
	assert.NotZero(t, resp.ID)
	assert.Empty(t, resp.Items)
}
