package service_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ametori/storefront/cart/internal/service"
	"github.com/ametori/storefront/cart/pkg/request"
	"github.com/ametori/storefront/internal/identity"
	"github.com/ametori/storefront/internal/repository"
)

func setupTestCache(t *testing.T) *goredis.Client {
	if os.Getenv("STOREFRONT_INTEGRATION_TEST") == "" {
		t.Skip("set STOREFRONT_INTEGRATION_TEST to run cache tests")
	}
	ctx := context.Background()

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed terminating container: %s", err)
		}
	})

	endpoint, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(endpoint)
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestFindCartReadsThroughCache(t *testing.T) {
	cache := setupTestCache(t)
	product := newProduct("Keyboard", "KB-01", "49.99", 10)
	catalog := &fakeCatalog{products: map[uuid.UUID]repository.Product{product.ID: product}}
	store := newFakeCartStore(catalog)
	svc := service.NewCartService(store, catalog, cache)
	owner := identity.User(uuid.New())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, owner, request.AddCartItem{ProductId: product.ID, Quantity: 2})
	require.NoError(t, err)

	cart, err := svc.FindCart(ctx, owner)
	require.NoError(t, err)
	require.Len(t, cart.CartItems, 1)

	// The store losing the cart is invisible while the cache holds it.
	delete(store.carts, owner.String())
	cart, err = svc.FindCart(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, cart.CartItems, 1)

	// Clearing invalidates, so the next read sees the store again.
	require.NoError(t, svc.ClearCart(ctx, owner))
	cart, err = svc.FindCart(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, cart.CartItems)
}
