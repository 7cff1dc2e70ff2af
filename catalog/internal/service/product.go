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

	"github.com/ametori/storefront/catalog/internal/common/otel"
	"github.com/ametori/storefront/catalog/pkg/request"
	"github.com/ametori/storefront/catalog/pkg/response"
	inErrors "github.com/ametori/storefront/internal/errors"
	"github.com/ametori/storefront/internal/log"
	"github.com/ametori/storefront/internal/repository"
)

const (
	keyProductById = "products:%s"

	cacheTTL = 5 * time.Minute
)

type ProductStore interface {
	FindProducts(c context.Context, limit int32, offset int32) ([]repository.Product, error)
	FindProductByID(c context.Context, productId uuid.UUID) (repository.Product, error)
	InsertProduct(c context.Context, param repository.InsertProductParams) (repository.Product, error)
}

type ProductService struct {
	products ProductStore
	cache    *redis.Client
}

func NewProductService(products ProductStore, cache *redis.Client) ProductService {
	return ProductService{products: products, cache: cache}
}

func (s ProductService) FindProducts(
	c context.Context,
	limit int32,
	offset int32,
) ([]response.Product, error) {
	c, span := otel.Tracer.Start(c, "ProductService FindProducts")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductService FindProducts").
		Str(log.KeyProcess, "finding products").
		Logger()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	logger.Info().Msg("finding products")
	products, err := s.products.FindProducts(c, limit, offset)
	if err != nil {
		err = fmt.Errorf("failed finding products with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Msgf("found %d products", len(products))

	mapped := make([]response.Product, 0, len(products))
	for _, product := range products {
		mapped = append(mapped, product.Response())
	}
	return mapped, nil
}

// FindProductByID reads through the cache. Stale stock values in the cache
// are acceptable here, checkout revalidates against the database.
func (s ProductService) FindProductByID(
	c context.Context,
	productId uuid.UUID,
) (response.Product, error) {
	c, span := otel.Tracer.Start(c, "ProductService FindProductByID")
	defer span.End()

	cacheKey := fmt.Sprintf(keyProductById, productId.String())
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductService FindProductByID").
		Str(log.KeyProductID, productId.String()).
		Str(log.KeyCacheKey, cacheKey).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding product in cache").Logger()
	logger.Info().Msg("finding product in cache")
	jsonString, err := s.cache.Get(c, cacheKey).Result()
	if err == nil {
		product := response.Product{}
		err = json.NewDecoder(bytes.NewBufferString(jsonString)).Decode(&product)
		if err == nil {
			logger.Info().Msg("found product in cache")
			return product, nil
		}
		err = fmt.Errorf("failed unmarshaling cached product with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	} else if !errors.Is(err, redis.Nil) {
		err = fmt.Errorf("failed finding product in cache with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	}

	logger = logger.With().Str(log.KeyProcess, "finding product in database").Logger()
	logger.Info().Msg("finding product in database")
	product, err := s.products.FindProductByID(c, productId)
	if err != nil {
		err = fmt.Errorf("failed finding product with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger.Info().Msg("found product in database")

	mapped := product.Response()
	encoded, err := json.Marshal(mapped)
	if err == nil {
		if err = s.cache.Set(c, cacheKey, encoded, cacheTTL).Err(); err != nil {
			err = fmt.Errorf("failed inserting product to cache with error=%w", err)
			logger.Error().Err(err).Msg(err.Error())
		}
	}
	return mapped, nil
}

func (s ProductService) InsertProduct(
	c context.Context,
	param request.CreateProduct,
) (response.Product, error) {
	c, span := otel.Tracer.Start(c, "ProductService InsertProduct")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductService InsertProduct").
		Str(log.KeyProcess, "inserting product").
		Logger()

	logger.Info().Msgf("inserting product with sku=%s", param.Sku)
	product, err := s.products.InsertProduct(c, repository.InsertProductParams{
		Name:          param.Name,
		Sku:           param.Sku,
		Price:         repository.NumericFromDecimal(param.Price),
		StockQuantity: param.StockQuantity,
	})
	if err != nil {
		err = fmt.Errorf("failed inserting product with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger.Info().Msgf("inserted product with sku=%s", param.Sku)

	return product.Response(), nil
}
