package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	inErrors "github.com/ametori/storefront/internal/errors"
	"github.com/ametori/storefront/order/pkg/pricing"
	"github.com/ametori/storefront/order/pkg/status"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `
id, order_number, user_id, status, payment_status,
subtotal, tax_amount, shipping_amount, total_amount,
shipping_address_line1, shipping_address_line2, shipping_city,
shipping_state, shipping_postal_code, shipping_country,
billing_address_line1, billing_address_line2, billing_city,
billing_state, billing_postal_code, billing_country,
customer_name, customer_email, customer_phone, payment_method,
created_at, updated_at
`

const findOrderById = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

const findOrderByNumber = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

const findOrdersByUserId = `SELECT ` + orderColumns + `
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

const insertOrder = `
INSERT INTO orders (
	order_number, user_id, status, payment_status,
	subtotal, tax_amount, shipping_amount, total_amount,
	shipping_address_line1, shipping_address_line2, shipping_city,
	shipping_state, shipping_postal_code, shipping_country,
	billing_address_line1, billing_address_line2, billing_city,
	billing_state, billing_postal_code, billing_country,
	customer_name, customer_email, customer_phone, payment_method
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8,
	$9, $10, $11, $12, $13, $14,
	$15, $16, $17, $18, $19, $20,
	$21, $22, $23, $24
)
RETURNING ` + orderColumns

const insertOrderItem = `
INSERT INTO order_items (
	order_id, product_id, product_name, product_sku,
	quantity, unit_price, product_options
) VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const findOrderItems = `
SELECT id, order_id, product_id, product_name, product_sku,
       quantity, unit_price, product_options, created_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at, id
`

const decrementProductStock = `
UPDATE products
SET stock_quantity = stock_quantity - $2, updated_at = now()
WHERE id = $1 AND stock_quantity >= $2
`

const restockOrderItems = `
UPDATE products p
SET stock_quantity = p.stock_quantity + oi.quantity, updated_at = now()
FROM order_items oi
WHERE oi.order_id = $1 AND p.id = oi.product_id
`

const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1
`

const updateOrderPaymentStatus = `
UPDATE orders
SET payment_status = $2, updated_at = now()
WHERE id = $1
`

const findCartIdByUserIdForUpdate = `
SELECT id FROM carts WHERE user_id = $1 FOR UPDATE
`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		order                        Order
		orderStatus, paymentStatus   string
		shippingLine2, billingLine2  *string
		customerPhone, paymentMethod *string
	)
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&orderStatus,
		&paymentStatus,
		&order.Subtotal,
		&order.TaxAmount,
		&order.ShippingAmount,
		&order.TotalAmount,
		&order.ShippingAddress.Line1,
		&shippingLine2,
		&order.ShippingAddress.City,
		&order.ShippingAddress.State,
		&order.ShippingAddress.PostalCode,
		&order.ShippingAddress.Country,
		&order.BillingAddress.Line1,
		&billingLine2,
		&order.BillingAddress.City,
		&order.BillingAddress.State,
		&order.BillingAddress.PostalCode,
		&order.BillingAddress.Country,
		&order.CustomerName,
		&order.CustomerEmail,
		&customerPhone,
		&paymentMethod,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	order.Status = status.Order(orderStatus)
	order.PaymentStatus = status.Payment(paymentStatus)
	if shippingLine2 != nil {
		order.ShippingAddress.Line2 = *shippingLine2
	}
	if billingLine2 != nil {
		order.BillingAddress.Line2 = *billingLine2
	}
	if customerPhone != nil {
		order.CustomerPhone = *customerPhone
	}
	if paymentMethod != nil {
		order.PaymentMethod = *paymentMethod
	}
	return order, nil
}

func findOrderItemsByOrderId(c context.Context, db DBTX, orderId uuid.UUID) ([]OrderItem, error) {
	rows, err := db.Query(c, findOrderItems, orderId)
	if err != nil {
		return nil, fmt.Errorf("failed finding order items with error=%w", err)
	}
	defer rows.Close()

	items := []OrderItem{}
	for rows.Next() {
		item := OrderItem{}
		err = rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductSku,
			&item.Quantity,
			&item.UnitPrice,
			&item.ProductOptions,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed scanning order item with error=%w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating order items with error=%w", err)
	}
	return items, nil
}

func loadOrder(c context.Context, db DBTX, orderId uuid.UUID) (OrderWithItems, error) {
	order, err := scanOrder(db.QueryRow(c, findOrderById, orderId))
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderWithItems{}, inErrors.ErrOrderNotFound
	}
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed finding order with error=%w", err)
	}
	items, err := findOrderItemsByOrderId(c, db, orderId)
	if err != nil {
		return OrderWithItems{}, err
	}
	return OrderWithItems{Order: order, Items: items}, nil
}

type CreateOrderParams struct {
	UserID          uuid.UUID
	OrderNumber     string
	ShippingAddress Address
	BillingAddress  Address
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	PaymentMethod   string
}

// CreateOrder converts the user's active cart into an order in a single
// transaction: every line is checked-and-decremented against stock with one
// guarded UPDATE, the cart items are frozen into order items and the cart is
// deleted. Any line failing the stock guard aborts the whole order, so two
// concurrent checkouts racing for the last unit cannot both succeed.
func (r *OrderRepository) CreateOrder(
	c context.Context,
	param CreateOrderParams,
) (OrderWithItems, error) {
	tx, err := r.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed initializing transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	var cartId uuid.UUID
	err = tx.QueryRow(c, findCartIdByUserIdForUpdate, param.UserID).Scan(&cartId)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderWithItems{}, inErrors.ErrEmptyCart
	}
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed finding cart with error=%w", err)
	}

	items, err := findCartItemsByCartId(c, tx, cartId)
	if err != nil {
		return OrderWithItems{}, err
	}
	if len(items) == 0 {
		return OrderWithItems{}, inErrors.ErrEmptyCart
	}

	subtotal := decimal.Zero
	for _, item := range items {
		tag, err := tx.Exec(c, decrementProductStock, item.ProductID, item.Quantity)
		if err != nil {
			return OrderWithItems{}, fmt.Errorf("failed decrementing stock with error=%w", err)
		}
		if tag.RowsAffected() == 0 {
			var available int32
			err = tx.QueryRow(c, `SELECT stock_quantity FROM products WHERE id = $1`, item.ProductID).
				Scan(&available)
			if err != nil {
				return OrderWithItems{}, fmt.Errorf("failed reading stock with error=%w", err)
			}
			return OrderWithItems{}, inErrors.OutOfStock(item.ProductName, available, item.Quantity)
		}
		subtotal = subtotal.Add(
			DecimalFromNumeric(item.UnitPrice).Mul(decimal.NewFromInt32(item.Quantity)),
		)
	}

	totals := pricing.Compute(subtotal)

	order, err := scanOrder(tx.QueryRow(
		c,
		insertOrder,
		param.OrderNumber,
		param.UserID,
		string(status.OrderPending),
		string(status.PaymentPending),
		NumericFromDecimal(totals.Subtotal),
		NumericFromDecimal(totals.TaxAmount),
		NumericFromDecimal(totals.ShippingAmount),
		NumericFromDecimal(totals.TotalAmount),
		param.ShippingAddress.Line1,
		nullable(param.ShippingAddress.Line2),
		param.ShippingAddress.City,
		param.ShippingAddress.State,
		param.ShippingAddress.PostalCode,
		param.ShippingAddress.Country,
		param.BillingAddress.Line1,
		nullable(param.BillingAddress.Line2),
		param.BillingAddress.City,
		param.BillingAddress.State,
		param.BillingAddress.PostalCode,
		param.BillingAddress.Country,
		param.CustomerName,
		param.CustomerEmail,
		nullable(param.CustomerPhone),
		nullable(param.PaymentMethod),
	))
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed inserting order with error=%w", err)
	}

	for _, item := range items {
		_, err = tx.Exec(
			c,
			insertOrderItem,
			order.ID,
			item.ProductID,
			item.ProductName,
			item.ProductSku,
			item.Quantity,
			item.UnitPrice,
			item.ProductOptions,
		)
		if err != nil {
			return OrderWithItems{}, fmt.Errorf("failed inserting order item with error=%w", err)
		}
	}

	_, err = tx.Exec(c, deleteCartById, cartId)
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed deleting cart with error=%w", err)
	}

	orderItems, err := findOrderItemsByOrderId(c, tx, order.ID)
	if err != nil {
		return OrderWithItems{}, err
	}

	if err = tx.Commit(c); err != nil {
		return OrderWithItems{}, fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return OrderWithItems{Order: order, Items: orderItems}, nil
}

// CancelOrder transitions an order owned by userId to CANCELLED and restores
// the stock of every order item. The restock and the status change commit
// together or not at all.
func (r *OrderRepository) CancelOrder(
	c context.Context,
	orderId uuid.UUID,
	userId uuid.UUID,
) (OrderWithItems, error) {
	tx, err := r.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed initializing transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	order, err := scanOrder(tx.QueryRow(c, findOrderById+" FOR UPDATE", orderId))
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderWithItems{}, inErrors.ErrOrderNotFound
	}
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed finding order with error=%w", err)
	}
	if order.UserID != userId {
		return OrderWithItems{}, inErrors.ErrForbidden
	}
	if !order.Status.Cancellable() {
		return OrderWithItems{}, fmt.Errorf(
			"order with status=%s cannot be cancelled with error=%w",
			order.Status,
			inErrors.ErrInvalidTransition,
		)
	}

	result, err := r.cancelLocked(c, tx, order)
	if err != nil {
		return OrderWithItems{}, err
	}

	if err = tx.Commit(c); err != nil {
		return OrderWithItems{}, fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return result, nil
}

func (r *OrderRepository) cancelLocked(
	c context.Context,
	tx pgx.Tx,
	order Order,
) (OrderWithItems, error) {
	_, err := tx.Exec(c, updateOrderStatus, order.ID, string(status.OrderCancelled))
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed updating order status with error=%w", err)
	}
	_, err = tx.Exec(c, restockOrderItems, order.ID)
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed restoring stock with error=%w", err)
	}
	return loadOrder(c, tx, order.ID)
}

// UpdateOrderStatus applies a privileged fulfillment transition. A
// transition to CANCELLED restocks the order items like CancelOrder does.
func (r *OrderRepository) UpdateOrderStatus(
	c context.Context,
	orderId uuid.UUID,
	next status.Order,
) (OrderWithItems, error) {
	tx, err := r.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed initializing transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	order, err := scanOrder(tx.QueryRow(c, findOrderById+" FOR UPDATE", orderId))
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderWithItems{}, inErrors.ErrOrderNotFound
	}
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed finding order with error=%w", err)
	}
	if !order.Status.CanTransitionTo(next) {
		return OrderWithItems{}, fmt.Errorf(
			"order status transition %s -> %s is not allowed with error=%w",
			order.Status,
			next,
			inErrors.ErrInvalidTransition,
		)
	}

	var result OrderWithItems
	if next == status.OrderCancelled {
		result, err = r.cancelLocked(c, tx, order)
	} else {
		_, err = tx.Exec(c, updateOrderStatus, order.ID, string(next))
		if err != nil {
			err = fmt.Errorf("failed updating order status with error=%w", err)
		} else {
			result, err = loadOrder(c, tx, order.ID)
		}
	}
	if err != nil {
		return OrderWithItems{}, err
	}

	if err = tx.Commit(c); err != nil {
		return OrderWithItems{}, fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return result, nil
}

// UpdatePaymentStatus applies a privileged payment transition.
func (r *OrderRepository) UpdatePaymentStatus(
	c context.Context,
	orderId uuid.UUID,
	next status.Payment,
) (OrderWithItems, error) {
	tx, err := r.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed initializing transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	order, err := scanOrder(tx.QueryRow(c, findOrderById+" FOR UPDATE", orderId))
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderWithItems{}, inErrors.ErrOrderNotFound
	}
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed finding order with error=%w", err)
	}
	if !order.PaymentStatus.CanTransitionTo(next) {
		return OrderWithItems{}, fmt.Errorf(
			"payment status transition %s -> %s is not allowed with error=%w",
			order.PaymentStatus,
			next,
			inErrors.ErrInvalidTransition,
		)
	}

	_, err = tx.Exec(c, updateOrderPaymentStatus, order.ID, string(next))
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed updating payment status with error=%w", err)
	}

	result, err := loadOrder(c, tx, order.ID)
	if err != nil {
		return OrderWithItems{}, err
	}

	if err = tx.Commit(c); err != nil {
		return OrderWithItems{}, fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return result, nil
}

func (r *OrderRepository) FindOrderByID(c context.Context, orderId uuid.UUID) (OrderWithItems, error) {
	return loadOrder(c, r.pool, orderId)
}

func (r *OrderRepository) FindOrderByNumber(c context.Context, number string) (OrderWithItems, error) {
	order, err := scanOrder(r.pool.QueryRow(c, findOrderByNumber, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderWithItems{}, inErrors.ErrOrderNotFound
	}
	if err != nil {
		return OrderWithItems{}, fmt.Errorf("failed finding order with error=%w", err)
	}
	items, err := findOrderItemsByOrderId(c, r.pool, order.ID)
	if err != nil {
		return OrderWithItems{}, err
	}
	return OrderWithItems{Order: order, Items: items}, nil
}

func (r *OrderRepository) FindOrdersByUserID(
	c context.Context,
	userId uuid.UUID,
	limit int32,
	offset int32,
) ([]OrderWithItems, error) {
	rows, err := r.pool.Query(c, findOrdersByUserId, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed finding orders with error=%w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed scanning order with error=%w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating orders with error=%w", err)
	}

	result := make([]OrderWithItems, 0, len(orders))
	for _, order := range orders {
		items, err := findOrderItemsByOrderId(c, r.pool, order.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, OrderWithItems{Order: order, Items: items})
	}
	return result, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
