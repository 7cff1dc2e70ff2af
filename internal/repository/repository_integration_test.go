package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgxuuid "github.com/vgarvardt/pgx-google-uuid/v5"

	inErrors "github.com/ametori/storefront/internal/errors"
	"github.com/ametori/storefront/internal/identity"
	"github.com/ametori/storefront/order/pkg/status"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	if os.Getenv("STOREFRONT_INTEGRATION_TEST") == "" {
		t.Skip("set STOREFRONT_INTEGRATION_TEST to run database tests")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed terminating container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migration, err := migrate.New("file://../../migrations", dsn)
	require.NoError(t, err)
	require.NoError(t, migration.Up())

	poolConfig, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	poolConfig.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxuuid.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func insertTestProduct(
	t *testing.T,
	catalog *CatalogRepository,
	name string,
	price string,
	stock int32,
) Product {
	t.Helper()
	product, err := catalog.InsertProduct(context.Background(), InsertProductParams{
		Name:          name,
		Sku:           "SKU-" + name + "-" + uuid.NewString()[:8],
		Price:         NumericFromDecimal(decimal.RequireFromString(price)),
		StockQuantity: stock,
	})
	require.NoError(t, err)
	return product
}

func testCheckoutParams(userId uuid.UUID) CreateOrderParams {
	address := Address{
		Line1:      "1 Main St",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62701",
		Country:    "US",
	}
	return CreateOrderParams{
		UserID:          userId,
		OrderNumber:     "ORD-TEST-" + uuid.NewString()[:8],
		ShippingAddress: address,
		BillingAddress:  address,
		CustomerName:    "Ada Lovelace",
		CustomerEmail:   "ada@example.com",
	}
}

func TestCheckoutFlow(t *testing.T) {
	pool := setupTestDB(t)
	carts := NewCartRepository(pool)
	orders := NewOrderRepository(pool)
	catalog := NewCatalogRepository(pool)
	ctx := context.Background()

	product := insertTestProduct(t, catalog, "Mug", "25.00", 3)
	userId := uuid.New()
	owner := identity.User(userId)

	_, err := carts.AddItem(ctx, AddCartItemParams{
		Owner:     owner,
		ProductID: product.ID,
		Quantity:  2,
		UnitPrice: product.Price,
	})
	require.NoError(t, err)

	order, err := orders.CreateOrder(ctx, testCheckoutParams(userId))
	require.NoError(t, err)
	assert.Equal(t, status.OrderPending, order.Order.Status)
	assert.Equal(t, status.PaymentPending, order.Order.PaymentStatus)
	assert.True(t, DecimalFromNumeric(order.Order.Subtotal).Equal(decimal.RequireFromString("50.00")))
	assert.True(t, DecimalFromNumeric(order.Order.TaxAmount).Equal(decimal.RequireFromString("5.00")))
	assert.True(t, DecimalFromNumeric(order.Order.ShippingAmount).Equal(decimal.RequireFromString("10")))
	assert.True(t, DecimalFromNumeric(order.Order.TotalAmount).Equal(decimal.RequireFromString("65.00")))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Mug", order.Items[0].ProductName)

	// Stock decremented and the cart consumed.
	reloaded, err := catalog.FindProductByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), reloaded.StockQuantity)
	_, err = carts.FindCart(ctx, owner)
	require.ErrorIs(t, err, inErrors.ErrCartNotFound)

	// Cancelling restores the stock.
	cancelled, err := orders.CancelOrder(ctx, order.Order.ID, userId)
	require.NoError(t, err)
	assert.Equal(t, status.OrderCancelled, cancelled.Order.Status)
	reloaded, err = catalog.FindProductByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(3), reloaded.StockQuantity)
}

func TestCheckoutEmptyCartFails(t *testing.T) {
	pool := setupTestDB(t)
	orders := NewOrderRepository(pool)

	_, err := orders.CreateOrder(context.Background(), testCheckoutParams(uuid.New()))
	require.ErrorIs(t, err, inErrors.ErrEmptyCart)
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	carts := NewCartRepository(pool)
	orders := NewOrderRepository(pool)
	catalog := NewCatalogRepository(pool)
	ctx := context.Background()

	cheap := insertTestProduct(t, catalog, "Sticker", "2.00", 100)
	scarce := insertTestProduct(t, catalog, "Poster", "15.00", 1)
	userId := uuid.New()
	owner := identity.User(userId)

	_, err := carts.AddItem(ctx, AddCartItemParams{
		Owner: owner, ProductID: cheap.ID, Quantity: 5, UnitPrice: cheap.Price,
	})
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, AddCartItemParams{
		Owner: owner, ProductID: scarce.ID, Quantity: 2, UnitPrice: scarce.Price,
	})
	require.NoError(t, err)

	_, err = orders.CreateOrder(ctx, testCheckoutParams(userId))
	require.ErrorIs(t, err, inErrors.ErrOutOfStock)

	// The first line's decrement was rolled back with the rest.
	reloaded, err := catalog.FindProductByID(ctx, cheap.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(100), reloaded.StockQuantity)
	cart, err := carts.FindCart(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestConcurrentCheckoutOfLastUnit(t *testing.T) {
	pool := setupTestDB(t)
	carts := NewCartRepository(pool)
	orders := NewOrderRepository(pool)
	catalog := NewCatalogRepository(pool)
	ctx := context.Background()

	product := insertTestProduct(t, catalog, "Mug", "25.00", 1)
	userA, userB := uuid.New(), uuid.New()
	for _, userId := range []uuid.UUID{userA, userB} {
		_, err := carts.AddItem(ctx, AddCartItemParams{
			Owner:     identity.User(userId),
			ProductID: product.ID,
			Quantity:  1,
			UnitPrice: product.Price,
		})
		require.NoError(t, err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, userId := range []uuid.UUID{userA, userB} {
		wg.Add(1)
		go func(userId uuid.UUID) {
			defer wg.Done()
			_, err := orders.CreateOrder(ctx, testCheckoutParams(userId))
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

	reloaded, err := catalog.FindProductByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), reloaded.StockQuantity)
}

func TestMergeCartsSumsQuantitiesAndDropsGuestCart(t *testing.T) {
	pool := setupTestDB(t)
	carts := NewCartRepository(pool)
	catalog := NewCatalogRepository(pool)
	ctx := context.Background()

	product := insertTestProduct(t, catalog, "Mug", "25.00", 10)
	session := identity.Session(identity.NewSessionToken())
	userId := uuid.New()

	_, err := carts.AddItem(ctx, AddCartItemParams{
		Owner: session, ProductID: product.ID, Quantity: 2, UnitPrice: product.Price,
	})
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, AddCartItemParams{
		Owner: identity.User(userId), ProductID: product.ID, Quantity: 3, UnitPrice: product.Price,
	})
	require.NoError(t, err)

	merged, err := carts.MergeCarts(ctx, session, userId)
	require.NoError(t, err)
	require.Len(t, merged.Items, 1)
	assert.Equal(t, int32(5), merged.Items[0].Quantity)

	_, err = carts.FindCart(ctx, session)
	require.ErrorIs(t, err, inErrors.ErrCartNotFound)
}

func TestOrderSnapshotKeepsPriceAfterCatalogChange(t *testing.T) {
	pool := setupTestDB(t)
	carts := NewCartRepository(pool)
	orders := NewOrderRepository(pool)
	catalog := NewCatalogRepository(pool)
	ctx := context.Background()

	product := insertTestProduct(t, catalog, "Mug", "25.00", 5)
	userId := uuid.New()
	_, err := carts.AddItem(ctx, AddCartItemParams{
		Owner:     identity.User(userId),
		ProductID: product.ID,
		Quantity:  1,
		UnitPrice: product.Price,
	})
	require.NoError(t, err)

	order, err := orders.CreateOrder(ctx, testCheckoutParams(userId))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE products SET price = 99.99 WHERE id = $1`, product.ID)
	require.NoError(t, err)

	reloaded, err := orders.FindOrderByID(ctx, order.Order.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 1)
	assert.True(t, DecimalFromNumeric(reloaded.Items[0].UnitPrice).
		Equal(decimal.RequireFromString("25.00")))
}
