package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ametori/storefront/cart/internal/common/otel"
	"github.com/ametori/storefront/cart/pkg/request"
	"github.com/ametori/storefront/cart/pkg/response"
	"github.com/ametori/storefront/internal/constants"
	inErrors "github.com/ametori/storefront/internal/errors"
	"github.com/ametori/storefront/internal/identity"
	"github.com/ametori/storefront/internal/log"
	"github.com/ametori/storefront/internal/repository"
)

const cacheTTL = 15 * time.Minute

type CartStore interface {
	FindCart(c context.Context, owner identity.Owner) (repository.CartWithItems, error)
	AddItem(c context.Context, param repository.AddCartItemParams) (repository.CartWithItems, error)
	UpdateItemQuantity(
		c context.Context,
		owner identity.Owner,
		itemId uuid.UUID,
		quantity int32,
	) (repository.CartWithItems, error)
	RemoveItem(
		c context.Context,
		owner identity.Owner,
		itemId uuid.UUID,
	) (repository.CartWithItems, error)
	ClearCart(c context.Context, owner identity.Owner) error
	MergeCarts(
		c context.Context,
		session identity.Owner,
		userId uuid.UUID,
	) (repository.CartWithItems, error)
}

type CatalogStore interface {
	FindProductByID(c context.Context, productId uuid.UUID) (repository.Product, error)
}

type CartService struct {
	carts    CartStore
	products CatalogStore
	cache    *redis.Client
}

func NewCartService(carts CartStore, products CatalogStore, cache *redis.Client) CartService {
	return CartService{carts: carts, products: products, cache: cache}
}

// emptyCart is what a fetch of a cart that was never created resolves to.
func emptyCart() response.Cart {
	return response.Cart{CartItems: []response.CartItem{}}
}

// FindCart returns the owner's cart, reading through the cache. An owner
// without a cart gets an empty cart, not an error.
func (s CartService) FindCart(c context.Context, owner identity.Owner) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService FindCart")
	defer span.End()

	cacheKey := fmt.Sprintf(constants.KeyCacheCartByOwner, owner.String())
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService FindCart").
		Str(log.KeyCacheKey, cacheKey).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart in cache").Logger()
	logger.Info().Msg("finding cart in cache")
	jsonString, err := s.cache.Get(c, cacheKey).Result()
	if err == nil {
		cart := response.Cart{}
		err = json.NewDecoder(bytes.NewBufferString(jsonString)).Decode(&cart)
		if err == nil {
			logger.Info().Msg("found cart in cache")
			return cart, nil
		}
		err = fmt.Errorf("failed unmarshaling cached cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	} else if !errors.Is(err, redis.Nil) {
		err = fmt.Errorf("failed finding cart in cache with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	}

	logger = logger.With().Str(log.KeyProcess, "finding cart in database").Logger()
	logger.Info().Msg("finding cart in database")
	cart, err := s.carts.FindCart(c, owner)
	if errors.Is(err, inErrors.ErrCartNotFound) {
		logger.Info().Msg("cart not found, returning empty cart")
		return emptyCart(), nil
	}
	if err != nil {
		err = fmt.Errorf("failed finding cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found cart in database")

	mapped := cart.Response()
	s.insertCache(c, logger, cacheKey, mapped)
	return mapped, nil
}

// AddItem appends a product to the owner's cart, capturing the current
// catalog price on the line. The requested quantity plus whatever the cart
// already holds for the same product and options must fit current stock.
func (s CartService) AddItem(
	c context.Context,
	owner identity.Owner,
	param request.AddCartItem,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService AddItem").
		Str(log.KeyProductID, param.ProductId.String()).
		Int32(log.KeyQuantity, param.Quantity).
		Logger()

	if param.Quantity <= 0 {
		err := fmt.Errorf(
			"quantity=%d with error=%w",
			param.Quantity,
			inErrors.ErrInvalidQuantity,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "finding product").Logger()
	logger.Info().Msgf("finding product by productId=%s", param.ProductId.String())
	product, err := s.products.FindProductByID(c, param.ProductId)
	if err != nil {
		err = fmt.Errorf(
			"failed finding product by productId=%s with error=%w",
			param.ProductId.String(),
			err,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msgf("found product by productId=%s", param.ProductId.String())

	options := param.ProductOptions
	if len(options) == 0 {
		options = json.RawMessage(`{}`)
	}

	logger = logger.With().Str(log.KeyProcess, "validating stock").Logger()
	logger.Info().Msg("validating stock")
	requested := param.Quantity + s.quantityInCart(c, owner, param.ProductId, options)
	if requested > product.StockQuantity {
		err = inErrors.OutOfStock(product.Name, product.StockQuantity, requested)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("validated stock")

	logger = logger.With().Str(log.KeyProcess, "inserting cart item").Logger()
	logger.Info().Msg("inserting cart item")
	cart, err := s.carts.AddItem(c, repository.AddCartItemParams{
		Owner:          owner,
		ProductID:      param.ProductId,
		Quantity:       param.Quantity,
		UnitPrice:      product.Price,
		ProductOptions: options,
	})
	if err != nil {
		err = fmt.Errorf("failed inserting cart item with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("inserted cart item")

	s.invalidateCache(c, logger, owner)
	return cart.Response(), nil
}

// UpdateItem sets the quantity of a cart line. Zero removes the line.
func (s CartService) UpdateItem(
	c context.Context,
	owner identity.Owner,
	itemId uuid.UUID,
	param request.UpdateCartItem,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService UpdateItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService UpdateItem").
		Str(log.KeyCartItemID, itemId.String()).
		Int32(log.KeyQuantity, param.Quantity).
		Logger()

	if param.Quantity < 0 {
		err := fmt.Errorf(
			"quantity=%d with error=%w",
			param.Quantity,
			inErrors.ErrInvalidQuantity,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	if param.Quantity == 0 {
		logger.Info().Msg("quantity is zero, removing cart item")
		return s.RemoveItem(c, owner, itemId)
	}

	logger = logger.With().Str(log.KeyProcess, "validating stock").Logger()
	logger.Info().Msg("validating stock")
	item, err := s.findItem(c, owner, itemId)
	if err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	product, err := s.products.FindProductByID(c, item.ProductID)
	if err != nil {
		err = fmt.Errorf(
			"failed finding product by productId=%s with error=%w",
			item.ProductID.String(),
			err,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	if param.Quantity > product.StockQuantity {
		err = inErrors.OutOfStock(product.Name, product.StockQuantity, param.Quantity)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("validated stock")

	logger = logger.With().Str(log.KeyProcess, "updating cart item").Logger()
	logger.Info().Msg("updating cart item")
	cart, err := s.carts.UpdateItemQuantity(c, owner, itemId, param.Quantity)
	if err != nil {
		err = fmt.Errorf("failed updating cart item with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("updated cart item")

	s.invalidateCache(c, logger, owner)
	return cart.Response(), nil
}

// RemoveItem deletes a cart line. Removing a line that is already gone, or
// from a cart that never existed, succeeds.
func (s CartService) RemoveItem(
	c context.Context,
	owner identity.Owner,
	itemId uuid.UUID,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemoveItem").
		Str(log.KeyCartItemID, itemId.String()).
		Str(log.KeyProcess, "removing cart item").
		Logger()

	logger.Info().Msg("removing cart item")
	cart, err := s.carts.RemoveItem(c, owner, itemId)
	if errors.Is(err, inErrors.ErrCartNotFound) {
		logger.Info().Msg("cart not found, nothing to remove")
		return emptyCart(), nil
	}
	if err != nil {
		err = fmt.Errorf("failed removing cart item with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("removed cart item")

	s.invalidateCache(c, logger, owner)
	return cart.Response(), nil
}

// ClearCart drops the owner's cart entirely.
func (s CartService) ClearCart(c context.Context, owner identity.Owner) error {
	c, span := otel.Tracer.Start(c, "CartService ClearCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ClearCart").
		Str(log.KeyProcess, "clearing cart").
		Logger()

	logger.Info().Msg("clearing cart")
	err := s.carts.ClearCart(c, owner)
	if err != nil {
		err = fmt.Errorf("failed clearing cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("cleared cart")

	s.invalidateCache(c, logger, owner)
	return nil
}

// MergeCarts folds a guest session cart into the authenticated user's cart
// after login. Quantities of matching lines are summed and every merged line
// is re-validated against stock.
func (s CartService) MergeCarts(
	c context.Context,
	sessionToken string,
	userId uuid.UUID,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService MergeCarts")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService MergeCarts").
		Str(log.KeyUserID, userId.String()).
		Str(log.KeyProcess, "merging carts").
		Logger()

	session := identity.Session(sessionToken)

	logger.Info().Msg("merging session cart into user cart")
	cart, err := s.carts.MergeCarts(c, session, userId)
	if errors.Is(err, inErrors.ErrCartNotFound) {
		logger.Info().Msg("no carts to merge, returning empty cart")
		return emptyCart(), nil
	}
	if err != nil {
		err = fmt.Errorf("failed merging carts with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("merged session cart into user cart")

	s.invalidateCache(c, logger, session)
	s.invalidateCache(c, logger, identity.User(userId))
	return cart.Response(), nil
}

// quantityInCart returns how many units of the product, with the same
// options, the owner's cart already holds. A missing cart counts as zero.
func (s CartService) quantityInCart(
	c context.Context,
	owner identity.Owner,
	productId uuid.UUID,
	options json.RawMessage,
) int32 {
	cart, err := s.carts.FindCart(c, owner)
	if errors.Is(err, inErrors.ErrCartNotFound) {
		return 0
	}
	if err != nil {
		// Recoverable: checkout revalidates stock, so a failed read here
		// only weakens the early combined-quantity check.
		err = fmt.Errorf("failed finding cart for quantity check with error=%w", err)
		zerolog.Ctx(c).Error().Err(err).Msg(err.Error())
		return 0
	}
	for _, item := range cart.Items {
		if item.ProductID == productId && bytes.Equal(item.ProductOptions, options) {
			return item.Quantity
		}
	}
	return 0
}

func (s CartService) findItem(
	c context.Context,
	owner identity.Owner,
	itemId uuid.UUID,
) (repository.CartItem, error) {
	cart, err := s.carts.FindCart(c, owner)
	if errors.Is(err, inErrors.ErrCartNotFound) {
		return repository.CartItem{}, inErrors.ErrItemNotFound
	}
	if err != nil {
		return repository.CartItem{}, fmt.Errorf("failed finding cart with error=%w", err)
	}
	for _, item := range cart.Items {
		if item.ID == itemId {
			return item, nil
		}
	}
	return repository.CartItem{}, inErrors.ErrItemNotFound
}

func (s CartService) insertCache(
	c context.Context,
	logger zerolog.Logger,
	cacheKey string,
	cart response.Cart,
) {
	logger = logger.With().
		Str(log.KeyProcess, "inserting cart to cache").
		Str(log.KeyCacheKey, cacheKey).
		Logger()
	logger.Info().Msg("inserting cart to cache")
	encoded, err := json.Marshal(cart)
	if err != nil {
		err = fmt.Errorf("failed marshaling cart for cache with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	err = s.cache.Set(c, cacheKey, encoded, cacheTTL).Err()
	if err != nil {
		err = fmt.Errorf("failed inserting cart to cache with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("inserted cart to cache")
}

func (s CartService) invalidateCache(
	c context.Context,
	logger zerolog.Logger,
	owner identity.Owner,
) {
	cacheKey := fmt.Sprintf(constants.KeyCacheCartByOwner, owner.String())
	logger = logger.With().
		Str(log.KeyProcess, "invalidating cart cache").
		Str(log.KeyCacheKey, cacheKey).
		Logger()
	err := s.cache.Del(c, cacheKey).Err()
	if err != nil {
		err = fmt.Errorf("failed invalidating cart cache with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("invalidated cart cache")
}
