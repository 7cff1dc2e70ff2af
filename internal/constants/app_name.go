package constants

const (
	AppMain           = "storefront"
	AppCartService    = "cart-service"
	AppOrderService   = "order-service"
	AppCatalogService = "catalog-service"

	AudienceUser  = "audience-user"
	AudienceAdmin = "audience-admin"
)
