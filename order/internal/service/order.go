package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ametori/storefront/internal/constants"
	inErrors "github.com/ametori/storefront/internal/errors"
	"github.com/ametori/storefront/internal/identity"
	"github.com/ametori/storefront/internal/log"
	"github.com/ametori/storefront/internal/repository"
	commonOtel "github.com/ametori/storefront/order/internal/common/otel"
	"github.com/ametori/storefront/order/pkg/request"
	"github.com/ametori/storefront/order/pkg/response"
	"github.com/ametori/storefront/order/pkg/status"
)

var meter = otel.Meter(constants.AppOrderService)

type OrderStore interface {
	CreateOrder(c context.Context, param repository.CreateOrderParams) (repository.OrderWithItems, error)
	CancelOrder(c context.Context, orderId uuid.UUID, userId uuid.UUID) (repository.OrderWithItems, error)
	UpdateOrderStatus(c context.Context, orderId uuid.UUID, next status.Order) (repository.OrderWithItems, error)
	UpdatePaymentStatus(c context.Context, orderId uuid.UUID, next status.Payment) (repository.OrderWithItems, error)
	FindOrderByID(c context.Context, orderId uuid.UUID) (repository.OrderWithItems, error)
	FindOrderByNumber(c context.Context, number string) (repository.OrderWithItems, error)
	FindOrdersByUserID(c context.Context, userId uuid.UUID, limit int32, offset int32) ([]repository.OrderWithItems, error)
}

type OrderService struct {
	orders OrderStore
	cache  *redis.Client

	ordersCreated  metric.Int64Counter
	stockConflicts metric.Int64Counter
}

func NewOrderService(orders OrderStore, cache *redis.Client) OrderService {
	ordersCreated, err := meter.Int64Counter("storefront.orders.created")
	if err != nil {
		ordersCreated = nil
	}
	stockConflicts, err := meter.Int64Counter("storefront.orders.stock_conflicts")
	if err != nil {
		stockConflicts = nil
	}
	return OrderService{
		orders:         orders,
		cache:          cache,
		ordersCreated:  ordersCreated,
		stockConflicts: stockConflicts,
	}
}

// newOrderNumber builds a human-readable order reference from the creation
// timestamp and a random suffix.
func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%d-%s", time.Now().Unix(), suffix)
}

// Checkout turns the user's cart into an order. Stock validation and
// decrement happen atomically inside the store; a conflict on any line
// leaves both the cart and the stock untouched.
func (s OrderService) Checkout(
	c context.Context,
	userId uuid.UUID,
	param request.Checkout,
) (response.Order, error) {
	c, span := commonOtel.Tracer.Start(c, "OrderService Checkout")
	defer span.End()

	orderNumber := newOrderNumber()
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService Checkout").
		Str(log.KeyUserID, userId.String()).
		Str(log.KeyOrderNumber, orderNumber).
		Logger()

	shipping := addressFromRequest(param.ShippingAddress)
	billing := shipping
	if param.BillingAddress != nil {
		billing = addressFromRequest(*param.BillingAddress)
	}

	logger = logger.With().Str(log.KeyProcess, "creating order").Logger()
	logger.Info().Msg("creating order")
	order, err := s.orders.CreateOrder(c, repository.CreateOrderParams{
		UserID:          userId,
		OrderNumber:     orderNumber,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		CustomerName:    param.CustomerName,
		CustomerEmail:   param.CustomerEmail,
		CustomerPhone:   param.CustomerPhone,
		PaymentMethod:   param.PaymentMethod,
	})
	if err != nil {
		if errors.Is(err, inErrors.ErrOutOfStock) && s.stockConflicts != nil {
			s.stockConflicts.Add(c, 1)
		}
		err = fmt.Errorf("failed creating order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger = logger.With().Str(log.KeyOrderID, order.Order.ID.String()).Logger()
	logger.Info().Msgf("created order with orderNumber=%s", orderNumber)

	s.invalidateCartCache(c, logger, userId)

	if s.ordersCreated != nil {
		s.ordersCreated.Add(c, 1, metric.WithAttributes(
			attribute.String("payment_method", param.PaymentMethod),
		))
	}
	return order.Response(), nil
}

// CancelOrder cancels the caller's own order and restores its stock.
func (s OrderService) CancelOrder(
	c context.Context,
	userId uuid.UUID,
	orderId uuid.UUID,
) (response.Order, error) {
	c, span := commonOtel.Tracer.Start(c, "OrderService CancelOrder")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService CancelOrder").
		Str(log.KeyUserID, userId.String()).
		Str(log.KeyOrderID, orderId.String()).
		Str(log.KeyProcess, "cancelling order").
		Logger()

	logger.Info().Msg("cancelling order")
	order, err := s.orders.CancelOrder(c, orderId, userId)
	if err != nil {
		err = fmt.Errorf("failed cancelling order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger.Info().Msg("cancelled order")

	return order.Response(), nil
}

// UpdateOrderStatus applies a fulfillment transition on behalf of an
// operator.
func (s OrderService) UpdateOrderStatus(
	c context.Context,
	orderId uuid.UUID,
	param request.UpdateOrderStatus,
) (response.Order, error) {
	c, span := commonOtel.Tracer.Start(c, "OrderService UpdateOrderStatus")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService UpdateOrderStatus").
		Str(log.KeyOrderID, orderId.String()).
		Str(log.KeyOrderStatus, param.Status).
		Str(log.KeyProcess, "updating order status").
		Logger()

	next, err := status.ParseOrder(param.Status)
	if err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}

	logger.Info().Msgf("updating order status to %s", next)
	order, err := s.orders.UpdateOrderStatus(c, orderId, next)
	if err != nil {
		err = fmt.Errorf("failed updating order status with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger.Info().Msgf("updated order status to %s", next)

	return order.Response(), nil
}

// UpdatePaymentStatus applies a payment transition on behalf of an operator.
func (s OrderService) UpdatePaymentStatus(
	c context.Context,
	orderId uuid.UUID,
	param request.UpdatePaymentStatus,
) (response.Order, error) {
	c, span := commonOtel.Tracer.Start(c, "OrderService UpdatePaymentStatus")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService UpdatePaymentStatus").
		Str(log.KeyOrderID, orderId.String()).
		Str(log.KeyPaymentStatus, param.PaymentStatus).
		Str(log.KeyProcess, "updating payment status").
		Logger()

	next, err := status.ParsePayment(param.PaymentStatus)
	if err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}

	logger.Info().Msgf("updating payment status to %s", next)
	order, err := s.orders.UpdatePaymentStatus(c, orderId, next)
	if err != nil {
		err = fmt.Errorf("failed updating payment status with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger.Info().Msgf("updated payment status to %s", next)

	return order.Response(), nil
}

// FindOrderByID returns an order the caller owns.
func (s OrderService) FindOrderByID(
	c context.Context,
	userId uuid.UUID,
	orderId uuid.UUID,
) (response.Order, error) {
	c, span := commonOtel.Tracer.Start(c, "OrderService FindOrderByID")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService FindOrderByID").
		Str(log.KeyUserID, userId.String()).
		Str(log.KeyOrderID, orderId.String()).
		Str(log.KeyProcess, "finding order").
		Logger()

	logger.Info().Msg("finding order")
	order, err := s.orders.FindOrderByID(c, orderId)
	if err != nil {
		err = fmt.Errorf("failed finding order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	if order.Order.UserID != userId {
		err = inErrors.ErrForbidden
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger.Info().Msg("found order")

	return order.Response(), nil
}

// FindOrderByNumber returns an order the caller owns, looked up by its
// order number.
func (s OrderService) FindOrderByNumber(
	c context.Context,
	userId uuid.UUID,
	number string,
) (response.Order, error) {
	c, span := commonOtel.Tracer.Start(c, "OrderService FindOrderByNumber")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService FindOrderByNumber").
		Str(log.KeyUserID, userId.String()).
		Str(log.KeyOrderNumber, number).
		Str(log.KeyProcess, "finding order").
		Logger()

	logger.Info().Msg("finding order")
	order, err := s.orders.FindOrderByNumber(c, number)
	if err != nil {
		err = fmt.Errorf("failed finding order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	if order.Order.UserID != userId {
		err = inErrors.ErrForbidden
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger.Info().Msg("found order")

	return order.Response(), nil
}

// FindOrders lists the caller's orders, newest first.
func (s OrderService) FindOrders(
	c context.Context,
	userId uuid.UUID,
	limit int32,
	offset int32,
) ([]response.Order, error) {
	c, span := commonOtel.Tracer.Start(c, "OrderService FindOrders")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService FindOrders").
		Str(log.KeyUserID, userId.String()).
		Str(log.KeyProcess, "finding orders").
		Logger()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	logger.Info().Msg("finding orders")
	orders, err := s.orders.FindOrdersByUserID(c, userId, limit, offset)
	if err != nil {
		err = fmt.Errorf("failed finding orders with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Msgf("found %d orders", len(orders))

	mapped := make([]response.Order, 0, len(orders))
	for _, order := range orders {
		mapped = append(mapped, order.Response())
	}
	return mapped, nil
}

// invalidateCartCache drops the cached cart after checkout consumed it, so
// a follow-up cart read cannot serve the pre-checkout lines.
func (s OrderService) invalidateCartCache(
	c context.Context,
	logger zerolog.Logger,
	userId uuid.UUID,
) {
	cacheKey := fmt.Sprintf(constants.KeyCacheCartByOwner, identity.User(userId).String())
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

func addressFromRequest(a request.Address) repository.Address {
	return repository.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
