package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	inErrors "github.com/ametori/storefront/internal/errors"
	"github.com/ametori/storefront/internal/identity"
)

type CartRepository struct {
	pool *pgxpool.Pool
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

const findCartByUserId = `
SELECT id, user_id, session_digest, created_at, updated_at
FROM carts
WHERE user_id = $1
`

const findCartBySessionDigest = `
SELECT id, user_id, session_digest, created_at, updated_at
FROM carts
WHERE session_digest = $1
`

const findCartItems = `
SELECT ci.id,
       ci.cart_id,
       ci.product_id,
       p.name,
       p.sku,
       ci.quantity,
       ci.unit_price,
       ci.product_options,
       ci.created_at,
       ci.updated_at
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.cart_id = $1
ORDER BY ci.created_at, ci.id
`

const insertCartForUser = `
INSERT INTO carts (user_id)
VALUES ($1)
ON CONFLICT (user_id) WHERE user_id IS NOT NULL
DO UPDATE SET updated_at = now()
RETURNING id, user_id, session_digest, created_at, updated_at
`

const insertCartForSession = `
INSERT INTO carts (session_digest)
VALUES ($1)
ON CONFLICT (session_digest) WHERE session_digest IS NOT NULL
DO UPDATE SET updated_at = now()
RETURNING id, user_id, session_digest, created_at, updated_at
`

const upsertCartItem = `
INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, product_options)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (cart_id, product_id, product_options)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
`

const updateCartItemQuantity = `
UPDATE cart_items
SET quantity = $3, updated_at = now()
WHERE id = $1 AND cart_id = $2
`

const deleteCartItem = `
DELETE FROM cart_items
WHERE id = $1 AND cart_id = $2
`

const deleteCartById = `
DELETE FROM carts
WHERE id = $1
`

const mergeCartItems = `
INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, product_options)
SELECT $2, ci.product_id, ci.quantity, ci.unit_price, ci.product_options
FROM cart_items ci
WHERE ci.cart_id = $1
ON CONFLICT (cart_id, product_id, product_options)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
`

const findOverstockedCartItem = `
SELECT p.name, p.stock_quantity, ci.quantity
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.cart_id = $1 AND ci.quantity > p.stock_quantity
ORDER BY ci.created_at
LIMIT 1
`

func scanCart(row pgx.Row) (Cart, error) {
	cart := Cart{}
	err := row.Scan(
		&cart.ID,
		&cart.UserID,
		&cart.SessionDigest,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	return cart, err
}

func findCartByOwner(c context.Context, db DBTX, owner identity.Owner) (Cart, error) {
	var row pgx.Row
	if owner.IsUser() {
		row = db.QueryRow(c, findCartByUserId, owner.UserID)
	} else {
		row = db.QueryRow(c, findCartBySessionDigest, owner.SessionDigest())
	}
	cart, err := scanCart(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, inErrors.ErrCartNotFound
	}
	if err != nil {
		return Cart{}, fmt.Errorf("failed finding cart with error=%w", err)
	}
	return cart, nil
}

func getOrCreateCart(c context.Context, db DBTX, owner identity.Owner) (Cart, error) {
	var row pgx.Row
	if owner.IsUser() {
		row = db.QueryRow(c, insertCartForUser, owner.UserID)
	} else {
		row = db.QueryRow(c, insertCartForSession, owner.SessionDigest())
	}
	cart, err := scanCart(row)
	if err != nil {
		return Cart{}, fmt.Errorf("failed getting or creating cart with error=%w", err)
	}
	return cart, nil
}

func findCartItemsByCartId(c context.Context, db DBTX, cartId uuid.UUID) ([]CartItem, error) {
	rows, err := db.Query(c, findCartItems, cartId)
	if err != nil {
		return nil, fmt.Errorf("failed finding cart items with error=%w", err)
	}
	defer rows.Close()

	items := []CartItem{}
	for rows.Next() {
		item := CartItem{}
		err = rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductSku,
			&item.Quantity,
			&item.UnitPrice,
			&item.ProductOptions,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed scanning cart item with error=%w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating cart items with error=%w", err)
	}
	return items, nil
}

func loadCart(c context.Context, db DBTX, owner identity.Owner) (CartWithItems, error) {
	cart, err := findCartByOwner(c, db, owner)
	if err != nil {
		return CartWithItems{}, err
	}
	items, err := findCartItemsByCartId(c, db, cart.ID)
	if err != nil {
		return CartWithItems{}, err
	}
	return CartWithItems{Cart: cart, Items: items}, nil
}

// FindCart returns the owner's active cart with its items, or
// ErrCartNotFound when the owner never added anything.
func (r *CartRepository) FindCart(c context.Context, owner identity.Owner) (CartWithItems, error) {
	return loadCart(c, r.pool, owner)
}

type AddCartItemParams struct {
	Owner          identity.Owner
	ProductID      uuid.UUID
	Quantity       int32
	UnitPrice      pgtype.Numeric
	ProductOptions []byte
}

// AddItem upserts a cart line: an existing (product, options) line has the
// quantity added onto it and keeps its originally captured unit price. The
// cart row is created lazily on the first add.
func (r *CartRepository) AddItem(c context.Context, param AddCartItemParams) (CartWithItems, error) {
	tx, err := r.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return CartWithItems{}, fmt.Errorf("failed initializing transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	cart, err := getOrCreateCart(c, tx, param.Owner)
	if err != nil {
		return CartWithItems{}, err
	}

	options := param.ProductOptions
	if len(options) == 0 {
		options = []byte(`{}`)
	}
	_, err = tx.Exec(
		c,
		upsertCartItem,
		cart.ID,
		param.ProductID,
		param.Quantity,
		param.UnitPrice,
		options,
	)
	if err != nil {
		return CartWithItems{}, fmt.Errorf("failed upserting cart item with error=%w", err)
	}

	items, err := findCartItemsByCartId(c, tx, cart.ID)
	if err != nil {
		return CartWithItems{}, err
	}

	if err = tx.Commit(c); err != nil {
		return CartWithItems{}, fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return CartWithItems{Cart: cart, Items: items}, nil
}

// UpdateItemQuantity sets the quantity of an existing line.
func (r *CartRepository) UpdateItemQuantity(
	c context.Context,
	owner identity.Owner,
	itemId uuid.UUID,
	quantity int32,
) (CartWithItems, error) {
	tx, err := r.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return CartWithItems{}, fmt.Errorf("failed initializing transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	cart, err := findCartByOwner(c, tx, owner)
	if errors.Is(err, inErrors.ErrCartNotFound) {
		return CartWithItems{}, inErrors.ErrItemNotFound
	}
	if err != nil {
		return CartWithItems{}, err
	}

	tag, err := tx.Exec(c, updateCartItemQuantity, itemId, cart.ID, quantity)
	if err != nil {
		return CartWithItems{}, fmt.Errorf("failed updating cart item with error=%w", err)
	}
	if tag.RowsAffected() == 0 {
		return CartWithItems{}, inErrors.ErrItemNotFound
	}

	items, err := findCartItemsByCartId(c, tx, cart.ID)
	if err != nil {
		return CartWithItems{}, err
	}

	if err = tx.Commit(c); err != nil {
		return CartWithItems{}, fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return CartWithItems{Cart: cart, Items: items}, nil
}

// RemoveItem deletes a line if present. Removing an absent line is not an
// error.
func (r *CartRepository) RemoveItem(
	c context.Context,
	owner identity.Owner,
	itemId uuid.UUID,
) (CartWithItems, error) {
	tx, err := r.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return CartWithItems{}, fmt.Errorf("failed initializing transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	cart, err := findCartByOwner(c, tx, owner)
	if err != nil {
		return CartWithItems{}, err
	}

	_, err = tx.Exec(c, deleteCartItem, itemId, cart.ID)
	if err != nil {
		return CartWithItems{}, fmt.Errorf("failed deleting cart item with error=%w", err)
	}

	items, err := findCartItemsByCartId(c, tx, cart.ID)
	if err != nil {
		return CartWithItems{}, err
	}

	if err = tx.Commit(c); err != nil {
		return CartWithItems{}, fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return CartWithItems{Cart: cart, Items: items}, nil
}

// ClearCart removes the owner's cart and all of its items. Clearing an
// absent cart succeeds.
func (r *CartRepository) ClearCart(c context.Context, owner identity.Owner) error {
	cart, err := findCartByOwner(c, r.pool, owner)
	if errors.Is(err, inErrors.ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(c, deleteCartById, cart.ID)
	if err != nil {
		return fmt.Errorf("failed deleting cart with error=%w", err)
	}
	return nil
}

// MergeCarts folds the guest session cart into the user's cart, summing
// quantities per (product, options) line, then re-validates every merged
// line against current stock. The whole merge aborts when any line would
// exceed availability.
func (r *CartRepository) MergeCarts(
	c context.Context,
	session identity.Owner,
	userId uuid.UUID,
) (CartWithItems, error) {
	tx, err := r.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return CartWithItems{}, fmt.Errorf("failed initializing transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	guestRow := tx.QueryRow(
		c,
		findCartBySessionDigest+" FOR UPDATE",
		session.SessionDigest(),
	)
	guestCart, err := scanCart(guestRow)
	if errors.Is(err, pgx.ErrNoRows) {
		// Nothing to merge.
		return loadCart(c, tx, identity.User(userId))
	}
	if err != nil {
		return CartWithItems{}, fmt.Errorf("failed finding session cart with error=%w", err)
	}

	userCart, err := getOrCreateCart(c, tx, identity.User(userId))
	if err != nil {
		return CartWithItems{}, err
	}

	_, err = tx.Exec(c, mergeCartItems, guestCart.ID, userCart.ID)
	if err != nil {
		return CartWithItems{}, fmt.Errorf("failed merging cart items with error=%w", err)
	}

	var (
		productName string
		available   int32
		requested   int32
	)
	err = tx.QueryRow(c, findOverstockedCartItem, userCart.ID).
		Scan(&productName, &available, &requested)
	if err == nil {
		return CartWithItems{}, inErrors.OutOfStock(productName, available, requested)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return CartWithItems{}, fmt.Errorf("failed validating merged cart with error=%w", err)
	}

	_, err = tx.Exec(c, deleteCartById, guestCart.ID)
	if err != nil {
		return CartWithItems{}, fmt.Errorf("failed deleting session cart with error=%w", err)
	}

	items, err := findCartItemsByCartId(c, tx, userCart.ID)
	if err != nil {
		return CartWithItems{}, err
	}

	if err = tx.Commit(c); err != nil {
		return CartWithItems{}, fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return CartWithItems{Cart: userCart, Items: items}, nil
}
