package constants

// Cache key formats shared by the services that read and invalidate them.
// The cart service writes carts under the owner's string form; checkout in
// the order service consumes the cart and must drop the same key.
const (
	KeyCacheCartByOwner = "carts:owner:%s"
)
