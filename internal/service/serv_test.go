package service_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/linemk/online-shop/internal/domain/models"
	"github.com/linemk/online-shop/internal/payment"
	"github.com/linemk/online-shop/internal/service"
	"github.com/linemk/online-shop/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

type fakeUserRepo struct {
	users map[string]*models.User // ключ — email
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = int64(len(f.users) + 1)
	f.users[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

// fakeCartRepo — корзины в памяти: userID -> cart, cartID -> productID -> item
type fakeCartRepo struct {
	carts      map[int64]*models.Cart
	items      map[int64]map[int64]*models.CartItem
	nextCartID int64
	nextItemID int64
	// история пакетных удалений для проверок идемпотентности
	deleteBatches [][]int64
}

var _ storage.CartStorage = (*fakeCartRepo)(nil)

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{
		carts:      make(map[int64]*models.Cart),
		items:      make(map[int64]map[int64]*models.CartItem),
		nextCartID: 1,
		nextItemID: 1,
	}
}

func (f *fakeCartRepo) GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	cart, ok := f.carts[userID]
	if !ok {
		return nil, storage.ErrCartNotFound
	}
	return cart, nil
}

func (f *fakeCartRepo) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	if cart, ok := f.carts[userID]; ok {
		return cart, nil
	}
	cart := &models.Cart{ID: f.nextCartID, UserID: userID, CreatedAt: time.Now()}
	f.nextCartID++
	f.carts[userID] = cart
	f.items[cart.ID] = make(map[int64]*models.CartItem)
	return cart, nil
}

func (f *fakeCartRepo) GetCartItems(ctx context.Context, cartID int64) ([]*models.CartItem, error) {
	var items []*models.CartItem
	for _, item := range f.items[cartID] {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeCartRepo) CreateCartItemTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int) error {
	if f.items[cartID] == nil {
		f.items[cartID] = make(map[int64]*models.CartItem)
	}
	f.items[cartID][productID] = &models.CartItem{
		ID:        f.nextItemID,
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
	}
	f.nextItemID++
	return nil
}

func (f *fakeCartRepo) UpdateCartItemQuantityTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int) error {
	item, ok := f.items[cartID][productID]
	if !ok {
		return storage.ErrCartNotFound
	}
	item.Quantity = quantity
	return nil
}

func (f *fakeCartRepo) DeleteCartItemTx(ctx context.Context, tx *sql.Tx, cartID, productID int64) error {
	delete(f.items[cartID], productID)
	return nil
}

func (f *fakeCartRepo) DeleteCartItemsByProductIDs(ctx context.Context, cartID int64, productIDs []int64) error {
	f.deleteBatches = append(f.deleteBatches, productIDs)
	for _, id := range productIDs {
		delete(f.items[cartID], id)
	}
	return nil
}

type fakeProductRepo struct {
	products map[int64]*models.Product
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func newFakeProductRepo(products ...*models.Product) *fakeProductRepo {
	repo := &fakeProductRepo{products: make(map[int64]*models.Product)}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (f *fakeProductRepo) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProductRepo) GetProductsByIDs(ctx context.Context, ids []int64) ([]*models.Product, error) {
	var result []*models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func (f *fakeProductRepo) ListProducts(ctx context.Context, categoryID int64) ([]*models.Product, error) {
	var result []*models.Product
	for _, p := range f.products {
		if categoryID == 0 || p.CategoryID == categoryID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeProductRepo) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return []*models.Category{{ID: 1, Name: "default"}}, nil
}

// fakeOrderRepo — заказы в памяти, ключ — payment_intent_id
type fakeOrderRepo struct {
	orders    map[string]*models.Order
	markCalls int
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo(orders ...*models.Order) *fakeOrderRepo {
	repo := &fakeOrderRepo{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		repo.orders[o.PaymentIntentID] = o
	}
	return repo
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	id := int64(len(f.orders) + 1)
	order.ID = id
	f.orders[order.PaymentIntentID] = order
	return id, nil
}

func (f *fakeOrderRepo) CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, storage.ErrOrderNotFound
}

func (f *fakeOrderRepo) MarkPaymentSucceeded(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	f.markCalls++
	order, ok := f.orders[paymentIntentID]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	// статусы дальше по жизненному циклу назад не откатываются
	if order.Status == models.StatusPaymentInitiated || order.Status == models.StatusPaymentSucceeded {
		order.Status = models.StatusPaymentSucceeded
	}
	return order, nil
}

func (f *fakeOrderRepo) GetOrderItems(ctx context.Context, orderID int64) ([]*models.OrderItem, error) {
	for _, o := range f.orders {
		if o.ID == orderID {
			return o.Items, nil
		}
	}
	return nil, nil
}

type fakeAddressRepo struct {
	nextID int64
}

var _ storage.AddressStorage = (*fakeAddressRepo)(nil)

func (f *fakeAddressRepo) CreateAddressTx(ctx context.Context, tx *sql.Tx, address *models.Address) (int64, error) {
	f.nextID++
	address.ID = f.nextID
	return f.nextID, nil
}

type fakeIntentCreator struct {
	intent *payment.Intent
	err    error
	calls  int
}

func (f *fakeIntentCreator) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (*payment.Intent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

func TestAuthService_Login_NewUser(t *testing.T) {
	userRepo := newFakeUserRepo()
	authService := service.NewAuthService(testLogger(), userRepo, time.Minute)

	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	token, err := authService.Login(context.Background(), "new@example.com", "password123")
	assert.NoError(t, err, "Login for a new user should create it")
	assert.NotEmpty(t, token)

	// Пользователь создан, пароль сохранён хэшем
	user, err := userRepo.GetUserByEmail(context.Background(), "new@example.com")
	assert.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword(user.PassHash, []byte("password123")))
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	userRepo := newFakeUserRepo()
	passHash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	assert.NoError(t, err)
	_, err = userRepo.CreateUser(context.Background(), &models.User{
		Email:    "user@example.com",
		PassHash: passHash,
	})
	assert.NoError(t, err)

	authService := service.NewAuthService(testLogger(), userRepo, time.Minute)

	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	_, err = authService.Login(context.Background(), "user@example.com", "wrong-password")
	assert.Error(t, err, "Wrong password should be rejected")
}

func TestAuthService_Login_ExistingUser(t *testing.T) {
	userRepo := newFakeUserRepo()
	passHash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	assert.NoError(t, err)
	_, err = userRepo.CreateUser(context.Background(), &models.User{
		Email:    "user@example.com",
		PassHash: passHash,
	})
	assert.NoError(t, err)

	authService := service.NewAuthService(testLogger(), userRepo, time.Minute)

	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	token, err := authService.Login(context.Background(), "user@example.com", "password123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}
