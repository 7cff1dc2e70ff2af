package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	inErrors "github.com/ametori/storefront/internal/errors"
	inHttp "github.com/ametori/storefront/internal/http"
	"github.com/ametori/storefront/internal/identity"
	"github.com/ametori/storefront/internal/log"
	"github.com/ametori/storefront/order/internal/common/otel"
	"github.com/ametori/storefront/order/internal/service"
	"github.com/ametori/storefront/order/pkg/request"
)

type OrderController struct {
	service *service.OrderService
}

// AttachOrderController mounts customer routes under the user router and
// the privileged status routes under the admin router.
func AttachOrderController(
	userRouter *mux.Router,
	adminRouter *mux.Router,
	service *service.OrderService,
) {
	controller := OrderController{service: service}

	sub := userRouter.PathPrefix("/orders").Subrouter()
	sub.HandleFunc("/checkout", controller.Checkout).Methods(http.MethodPost)
	sub.HandleFunc("", controller.FindOrders).Methods(http.MethodGet)
	sub.HandleFunc("/number/{orderNumber}", controller.FindOrderByNumber).Methods(http.MethodGet)
	sub.HandleFunc("/{orderId}", controller.FindOrderById).Methods(http.MethodGet)
	sub.HandleFunc("/{orderId}/cancel", controller.CancelOrder).Methods(http.MethodPost)

	admin := adminRouter.PathPrefix("/orders").Subrouter()
	admin.HandleFunc("/{orderId}/status", controller.UpdateOrderStatus).Methods(http.MethodPut)
	admin.HandleFunc("/{orderId}/payment", controller.UpdatePaymentStatus).Methods(http.MethodPut)
}

func writeError(
	w http.ResponseWriter,
	r *http.Request,
	statusCode int,
	err error,
) {
	inHttp.WriteJsonResponse(r.Context(), w, map[string]string{}, map[string]interface{}{
		"status":     "failed",
		"statusCode": statusCode,
		"message":    err.Error(),
	})
}

func (t OrderController) Checkout(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController Checkout")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderController Checkout").
		Logger()

	userId, err := identity.UserFromContext(c)
	if err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.Checkout{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().
		Str(log.KeyProcess, "creating order").
		Str(log.KeyUserID, userId.String()).
		Logger()
	logger.Info().Msg("creating order")
	c = logger.WithContext(c)
	order, err := t.service.Checkout(c, userId, reqBody)
	if err != nil {
		err = fmt.Errorf("failed creating order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}
	logger.Info().Msgf("created order with orderNumber=%s", order.OrderNumber)

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusCreated,
		"message":    "created order",
		"data":       map[string]interface{}{"order": order},
	})
}

func (t OrderController) CancelOrder(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController CancelOrder")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderController CancelOrder").
		Logger()

	userId, err := identity.UserFromContext(c)
	if err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}

	orderId, err := uuid.Parse(mux.Vars(r)["orderId"])
	if err != nil {
		err = fmt.Errorf("failed parsing orderId with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	logger = logger.With().
		Str(log.KeyProcess, "cancelling order").
		Str(log.KeyOrderID, orderId.String()).
		Logger()
	logger.Info().Msg("cancelling order")
	c = logger.WithContext(c)
	order, err := t.service.CancelOrder(c, userId, orderId)
	if err != nil {
		err = fmt.Errorf("failed cancelling order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}
	logger.Info().Msg("cancelled order")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "cancelled order",
		"data":       map[string]interface{}{"order": order},
	})
}

func (t OrderController) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController UpdateOrderStatus")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderController UpdateOrderStatus").
		Logger()

	orderId, err := uuid.Parse(mux.Vars(r)["orderId"])
	if err != nil {
		err = fmt.Errorf("failed parsing orderId with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.UpdateOrderStatus{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().
		Str(log.KeyProcess, "updating order status").
		Str(log.KeyOrderID, orderId.String()).
		Str(log.KeyOrderStatus, reqBody.Status).
		Logger()
	logger.Info().Msg("updating order status")
	c = logger.WithContext(c)
	order, err := t.service.UpdateOrderStatus(c, orderId, reqBody)
	if err != nil {
		err = fmt.Errorf("failed updating order status with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}
	logger.Info().Msg("updated order status")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "updated order status",
		"data":       map[string]interface{}{"order": order},
	})
}

func (t OrderController) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController UpdatePaymentStatus")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderController UpdatePaymentStatus").
		Logger()

	orderId, err := uuid.Parse(mux.Vars(r)["orderId"])
	if err != nil {
		err = fmt.Errorf("failed parsing orderId with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.UpdatePaymentStatus{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().
		Str(log.KeyProcess, "updating payment status").
		Str(log.KeyOrderID, orderId.String()).
		Str(log.KeyPaymentStatus, reqBody.PaymentStatus).
		Logger()
	logger.Info().Msg("updating payment status")
	c = logger.WithContext(c)
	order, err := t.service.UpdatePaymentStatus(c, orderId, reqBody)
	if err != nil {
		err = fmt.Errorf("failed updating payment status with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}
	logger.Info().Msg("updated payment status")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "updated payment status",
		"data":       map[string]interface{}{"order": order},
	})
}

func (t OrderController) FindOrderById(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController FindOrderById")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderController FindOrderById").
		Logger()

	userId, err := identity.UserFromContext(c)
	if err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}

	orderId, err := uuid.Parse(mux.Vars(r)["orderId"])
	if err != nil {
		err = fmt.Errorf("failed parsing orderId with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	logger = logger.With().
		Str(log.KeyProcess, "finding order").
		Str(log.KeyOrderID, orderId.String()).
		Logger()
	logger.Info().Msg("finding order")
	c = logger.WithContext(c)
	order, err := t.service.FindOrderByID(c, userId, orderId)
	if err != nil {
		err = fmt.Errorf("failed finding order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}
	logger.Info().Msg("found order")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "found order",
		"data":       map[string]interface{}{"order": order},
	})
}

func (t OrderController) FindOrderByNumber(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController FindOrderByNumber")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderController FindOrderByNumber").
		Logger()

	userId, err := identity.UserFromContext(c)
	if err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}

	number := mux.Vars(r)["orderNumber"]

	logger = logger.With().
		Str(log.KeyProcess, "finding order").
		Str(log.KeyOrderNumber, number).
		Logger()
	logger.Info().Msg("finding order")
	c = logger.WithContext(c)
	order, err := t.service.FindOrderByNumber(c, userId, number)
	if err != nil {
		err = fmt.Errorf("failed finding order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}
	logger.Info().Msg("found order")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "found order",
		"data":       map[string]interface{}{"order": order},
	})
}

func (t OrderController) FindOrders(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController FindOrders")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderController FindOrders").
		Logger()

	userId, err := identity.UserFromContext(c)
	if err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	logger = logger.With().
		Str(log.KeyProcess, "finding orders").
		Str(log.KeyUserID, userId.String()).
		Logger()
	logger.Info().Msg("finding orders")
	c = logger.WithContext(c)
	orders, err := t.service.FindOrders(c, userId, limit, offset)
	if err != nil {
		err = fmt.Errorf("failed finding orders with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeError(w, r, inHttp.StatusCodeFromError(err), err)
		return
	}
	logger.Info().Msgf("found %d orders", len(orders))

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "found orders",
		"data":       map[string]interface{}{"orders": orders},
	})
}

func queryInt(r *http.Request, key string, fallback int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(parsed)
}
