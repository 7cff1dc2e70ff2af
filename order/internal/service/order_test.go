package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inErrors "github.com/ametori/storefront/internal/errors"
	"github.com/ametori/storefront/internal/repository"
	"github.com/ametori/storefront/order/internal/service"
	"github.com/ametori/storefront/order/pkg/pricing"
	"github.com/ametori/storefront/order/pkg/request"
	"github.com/ametori/storefront/order/pkg/status"
)

type fakeLine struct {
	productId uuid.UUID
	quantity  int32
	unitPrice decimal.Decimal
}

// fakeOrderStore mimics the transactional order store: checkout validates
// and decrements stock under one lock, so concurrent checkouts contend the
// same way they would on row locks.
type fakeOrderStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]*repository.Product
	carts    map[uuid.UUID][]fakeLine
	orders   map[uuid.UUID]*repository.OrderWithItems
}

// unreachableCache fails every cache call immediately so tests exercise the
// store path; cache errors are non-fatal to the service.
func unreachableCache() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "localhost:1", MaxRetries: -1})
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		products: map[uuid.UUID]*repository.Product{},
		carts:    map[uuid.UUID][]fakeLine{},
		orders:   map[uuid.UUID]*repository.OrderWithItems{},
	}
}

func (f *fakeOrderStore) addProduct(name string, price string, stock int32) uuid.UUID {
	id := uuid.New()
	f.products[id] = &repository.Product{
		ID:            id,
		Name:          name,
		Sku:           "SKU-" + name,
		Price:         repository.NumericFromDecimal(decimal.RequireFromString(price)),
		StockQuantity: stock,
	}
	return id
}

func (f *fakeOrderStore) fillCart(userId uuid.UUID, productId uuid.UUID, quantity int32) {
	product := f.products[productId]
	f.carts[userId] = append(f.carts[userId], fakeLine{
		productId: productId,
		quantity:  quantity,
		unitPrice: repository.DecimalFromNumeric(product.Price),
	})
}

func (f *fakeOrderStore) stock(productId uuid.UUID) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[productId].StockQuantity
}

func (f *fakeOrderStore) CreateOrder(
	_ context.Context,
	param repository.CreateOrderParams,
) (repository.OrderWithItems, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lines := f.carts[param.UserID]
	if len(lines) == 0 {
		return repository.OrderWithItems{}, inErrors.ErrEmptyCart
	}
	for _, line := range lines {
		product := f.products[line.productId]
		if product.StockQuantity < line.quantity {
			return repository.OrderWithItems{}, inErrors.OutOfStock(
				product.Name,
				product.StockQuantity,
				line.quantity,
			)
		}
	}

	subtotal := decimal.Zero
	items := make([]repository.OrderItem, 0, len(lines))
	orderId := uuid.New()
	for _, line := range lines {
		product := f.products[line.productId]
		product.StockQuantity -= line.quantity
		subtotal = subtotal.Add(line.unitPrice.Mul(decimal.NewFromInt32(line.quantity)))
		items = append(items, repository.OrderItem{
			ID:             uuid.New(),
			OrderID:        orderId,
			ProductID:      line.productId,
			ProductName:    product.Name,
			ProductSku:     product.Sku,
			Quantity:       line.quantity,
			UnitPrice:      repository.NumericFromDecimal(line.unitPrice),
			ProductOptions: []byte(`{}`),
		})
	}
	totals := pricing.Compute(subtotal)

	order := &repository.OrderWithItems{
		Order: repository.Order{
			ID:              orderId,
			OrderNumber:     param.OrderNumber,
			UserID:          param.UserID,
			Status:          status.OrderPending,
			PaymentStatus:   status.PaymentPending,
			Subtotal:        repository.NumericFromDecimal(totals.Subtotal),
			TaxAmount:       repository.NumericFromDecimal(totals.TaxAmount),
			ShippingAmount:  repository.NumericFromDecimal(totals.ShippingAmount),
			TotalAmount:     repository.NumericFromDecimal(totals.TotalAmount),
			ShippingAddress: param.ShippingAddress,
			BillingAddress:  param.BillingAddress,
			CustomerName:    param.CustomerName,
			CustomerEmail:   param.CustomerEmail,
			CustomerPhone:   param.CustomerPhone,
			PaymentMethod:   param.PaymentMethod,
		},
		Items: items,
	}
	f.orders[orderId] = order
	delete(f.carts, param.UserID)
	return *order, nil
}

func (f *fakeOrderStore) restockLocked(order *repository.OrderWithItems) {
	for _, item := range order.Items {
		f.products[item.ProductID].StockQuantity += item.Quantity
	}
}

func (f *fakeOrderStore) CancelOrder(
	_ context.Context,
	orderId uuid.UUID,
	userId uuid.UUID,
) (repository.OrderWithItems, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderId]
	if !ok {
		return repository.OrderWithItems{}, inErrors.ErrOrderNotFound
	}
	if order.Order.UserID != userId {
		return repository.OrderWithItems{}, inErrors.ErrForbidden
	}
	if !order.Order.Status.Cancellable() {
		return repository.OrderWithItems{}, inErrors.ErrInvalidTransition
	}
	order.Order.Status = status.OrderCancelled
	f.restockLocked(order)
	return *order, nil
}

func (f *fakeOrderStore) UpdateOrderStatus(
	_ context.Context,
	orderId uuid.UUID,
	next status.Order,
) (repository.OrderWithItems, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderId]
	if !ok {
		return repository.OrderWithItems{}, inErrors.ErrOrderNotFound
	}
	if !order.Order.Status.CanTransitionTo(next) {
		return repository.OrderWithItems{}, inErrors.ErrInvalidTransition
	}
	order.Order.Status = next
	if next == status.OrderCancelled {
		f.restockLocked(order)
	}
	return *order, nil
}

func (f *fakeOrderStore) UpdatePaymentStatus(
	_ context.Context,
	orderId uuid.UUID,
	next status.Payment,
) (repository.OrderWithItems, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderId]
	if !ok {
		return repository.OrderWithItems{}, inErrors.ErrOrderNotFound
	}
	if !order.Order.PaymentStatus.CanTransitionTo(next) {
		return repository.OrderWithItems{}, inErrors.ErrInvalidTransition
	}
	order.Order.PaymentStatus = next
	return *order, nil
}

func (f *fakeOrderStore) FindOrderByID(
	_ context.Context,
	orderId uuid.UUID,
) (repository.OrderWithItems, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderId]
	if !ok {
		return repository.OrderWithItems{}, inErrors.ErrOrderNotFound
	}
	return *order, nil
}

func (f *fakeOrderStore) FindOrderByNumber(
	_ context.Context,
	number string,
) (repository.OrderWithItems, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, order := range f.orders {
		if order.Order.OrderNumber == number {
			return *order, nil
		}
	}
	return repository.OrderWithItems{}, inErrors.ErrOrderNotFound
}

func (f *fakeOrderStore) FindOrdersByUserID(
	_ context.Context,
	userId uuid.UUID,
	limit int32,
	offset int32,
) ([]repository.OrderWithItems, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	orders := []repository.OrderWithItems{}
	for _, order := range f.orders {
		if order.Order.UserID == userId {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func checkoutRequest() request.Checkout {
	return request.Checkout{
		ShippingAddress: request.Address{
			Line1:      "1 Main St",
			City:       "Springfield",
			State:      "IL",
			PostalCode: "62701",
			Country:    "US",
		},
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		PaymentMethod: "card",
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())

	_, err := svc.Checkout(context.Background(), uuid.New(), checkoutRequest())
	require.ErrorIs(t, err, inErrors.ErrEmptyCart)
}

func TestCheckoutComputesTotalsAndDecrementsStock(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	userId := uuid.New()
	productId := store.addProduct("Mug", "25.00", 10)
	store.fillCart(userId, productId, 1)

	order, err := svc.Checkout(context.Background(), userId, checkoutRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.Equal(t, string(status.OrderPending), order.Status)
	assert.Equal(t, string(status.PaymentPending), order.PaymentStatus)
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("25.00")), "subtotal=%s", order.Subtotal)
	assert.True(t, order.TaxAmount.Equal(decimal.RequireFromString("2.50")), "tax=%s", order.TaxAmount)
	assert.True(t, order.ShippingAmount.Equal(decimal.RequireFromString("10")), "shipping=%s", order.ShippingAmount)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("37.50")), "total=%s", order.TotalAmount)
	require.Len(t, order.OrderItems, 1)
	assert.Equal(t, "Mug", order.OrderItems[0].ProductName)

	assert.Equal(t, int32(9), store.stock(productId))
	assert.Empty(t, store.carts[userId])

	// Billing falls back to the shipping address when not given.
	assert.Equal(t, order.ShippingAddress, order.BillingAddress)
}

func TestCheckoutFreeShippingAboveThreshold(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	userId := uuid.New()
	productId := store.addProduct("Monitor", "120.00", 3)
	store.fillCart(userId, productId, 1)

	order, err := svc.Checkout(context.Background(), userId, checkoutRequest())
	require.NoError(t, err)
	assert.True(t, order.ShippingAmount.IsZero())
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("132.00")))
}

func TestCheckoutInsufficientStock(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	userId := uuid.New()
	productId := store.addProduct("Mug", "25.00", 2)
	store.fillCart(userId, productId, 3)

	_, err := svc.Checkout(context.Background(), userId, checkoutRequest())
	require.ErrorIs(t, err, inErrors.ErrOutOfStock)

	// Nothing was decremented and the cart survived.
	assert.Equal(t, int32(2), store.stock(productId))
	assert.Len(t, store.carts[userId], 1)
}

func TestConcurrentCheckoutOfLastUnit(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	productId := store.addProduct("Mug", "25.00", 1)

	userA, userB := uuid.New(), uuid.New()
	store.fillCart(userA, productId, 1)
	store.fillCart(userB, productId, 1)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, userId := range []uuid.UUID{userA, userB} {
		wg.Add(1)
		go func(userId uuid.UUID) {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), userId, checkoutRequest())
			errs <- err
		}(userId)
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, inErrors.ErrOutOfStock):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	assert.Equal(t, int32(0), store.stock(productId))
}

func TestCancelOrderRestocks(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	userId := uuid.New()
	productId := store.addProduct("Mug", "25.00", 5)
	store.fillCart(userId, productId, 2)

	order, err := svc.Checkout(context.Background(), userId, checkoutRequest())
	require.NoError(t, err)
	require.Equal(t, int32(3), store.stock(productId))

	cancelled, err := svc.CancelOrder(context.Background(), userId, order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(status.OrderCancelled), cancelled.Status)
	assert.Equal(t, int32(5), store.stock(productId))
}

func TestCancelOrderOwnedByAnotherUser(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	userId := uuid.New()
	productId := store.addProduct("Mug", "25.00", 5)
	store.fillCart(userId, productId, 1)

	order, err := svc.Checkout(context.Background(), userId, checkoutRequest())
	require.NoError(t, err)

	_, err = svc.CancelOrder(context.Background(), uuid.New(), order.ID)
	require.ErrorIs(t, err, inErrors.ErrForbidden)
}

func TestCancelDeliveredOrderFails(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	userId := uuid.New()
	productId := store.addProduct("Mug", "25.00", 5)
	store.fillCart(userId, productId, 2)

	order, err := svc.Checkout(context.Background(), userId, checkoutRequest())
	require.NoError(t, err)

	for _, next := range []string{"CONFIRMED", "PROCESSING", "SHIPPED", "DELIVERED"} {
		_, err = svc.UpdateOrderStatus(
			context.Background(),
			order.ID,
			request.UpdateOrderStatus{Status: next},
		)
		require.NoError(t, err)
	}

	_, err = svc.CancelOrder(context.Background(), userId, order.ID)
	require.ErrorIs(t, err, inErrors.ErrInvalidTransition)
	assert.Equal(t, int32(3), store.stock(productId))
}

func TestUpdateOrderStatusRejectsSkips(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	userId := uuid.New()
	productId := store.addProduct("Mug", "25.00", 5)
	store.fillCart(userId, productId, 1)

	order, err := svc.Checkout(context.Background(), userId, checkoutRequest())
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(
		context.Background(),
		order.ID,
		request.UpdateOrderStatus{Status: "DELIVERED"},
	)
	require.ErrorIs(t, err, inErrors.ErrInvalidTransition)

	_, err = svc.UpdateOrderStatus(
		context.Background(),
		order.ID,
		request.UpdateOrderStatus{Status: "LOST"},
	)
	require.ErrorIs(t, err, status.ErrUnknown)
}

func TestUpdateOrderStatusToCancelledRestocks(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	userId := uuid.New()
	productId := store.addProduct("Mug", "25.00", 5)
	store.fillCart(userId, productId, 2)

	order, err := svc.Checkout(context.Background(), userId, checkoutRequest())
	require.NoError(t, err)
	require.Equal(t, int32(3), store.stock(productId))

	updated, err := svc.UpdateOrderStatus(
		context.Background(),
		order.ID,
		request.UpdateOrderStatus{Status: "CANCELLED"},
	)
	require.NoError(t, err)
	assert.Equal(t, string(status.OrderCancelled), updated.Status)
	assert.Equal(t, int32(5), store.stock(productId))
}

func TestUpdatePaymentStatus(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	userId := uuid.New()
	productId := store.addProduct("Mug", "25.00", 5)
	store.fillCart(userId, productId, 1)

	order, err := svc.Checkout(context.Background(), userId, checkoutRequest())
	require.NoError(t, err)

	updated, err := svc.UpdatePaymentStatus(
		context.Background(),
		order.ID,
		request.UpdatePaymentStatus{PaymentStatus: "PAID"},
	)
	require.NoError(t, err)
	assert.Equal(t, string(status.PaymentPaid), updated.PaymentStatus)

	updated, err = svc.UpdatePaymentStatus(
		context.Background(),
		order.ID,
		request.UpdatePaymentStatus{PaymentStatus: "REFUNDED"},
	)
	require.NoError(t, err)
	assert.Equal(t, string(status.PaymentRefunded), updated.PaymentStatus)

	_, err = svc.UpdatePaymentStatus(
		context.Background(),
		order.ID,
		request.UpdatePaymentStatus{PaymentStatus: "PAID"},
	)
	require.ErrorIs(t, err, inErrors.ErrInvalidTransition)
}

func TestFindOrderByIDForbiddenForOtherUser(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	userId := uuid.New()
	productId := store.addProduct("Mug", "25.00", 5)
	store.fillCart(userId, productId, 1)

	order, err := svc.Checkout(context.Background(), userId, checkoutRequest())
	require.NoError(t, err)

	found, err := svc.FindOrderByID(context.Background(), userId, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = svc.FindOrderByID(context.Background(), uuid.New(), order.ID)
	require.ErrorIs(t, err, inErrors.ErrForbidden)
}

func TestFindOrderByNumber(t *testing.T) {
	store := newFakeOrderStore()
	svc := service.NewOrderService(store, unreachableCache())
	userId := uuid.New()
	productId := store.addProduct("Mug", "25.00", 5)
	store.fillCart(userId, productId, 1)

	order, err := svc.Checkout(context.Background(), userId, checkoutRequest())
	require.NoError(t, err)

	found, err := svc.FindOrderByNumber(context.Background(), userId, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = svc.FindOrderByNumber(context.Background(), uuid.New(), order.OrderNumber)
	require.ErrorIs(t, err, inErrors.ErrForbidden)

	_, err = svc.FindOrderByNumber(context.Background(), userId, "ORD-0-MISSING")
	require.ErrorIs(t, err, inErrors.ErrOrderNotFound)
}
