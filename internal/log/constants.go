package log

const (
	KeyAppName   = "app"
	KeyTag       = "tag"
	KeyProcess   = "process"
	KeyRequestID = "requestId"
	KeyTraceID   = "traceId"
	KeySpanID    = "spanId"
	KeyConfig    = "config"

	KeyRequest       = "request"
	KeyRequestBody   = "requestBody"
	KeyRequestHeader = "requestHeader"
	KeyRequestHost   = "host"
	KeyRequestIP     = "requesterIP"
	KeyRequestMethod = "requestMethod"
	KeyRequestURI    = "requestURI"
	KeyRequestURL    = "requestURL"

	KeyUserID          = "userId"
	KeySessionID       = "sessionId"
	KeyCartID          = "cartId"
	KeyCartItemID      = "cartItemId"
	KeyCartItems       = "cartItems"
	KeyOrderID         = "orderId"
	KeyOrderNumber     = "orderNumber"
	KeyOrderItems      = "orderItems"
	KeyOrderStatus     = "orderStatus"
	KeyPaymentStatus   = "paymentStatus"
	KeyProductID       = "productId"
	KeyProductQuantity = "productQuantity"
	KeyQuantity        = "quantity"
	KeyCacheKey        = "cacheKey"
	KeyDbURL           = "dbUrl"
	KeyToken           = "token"
)
