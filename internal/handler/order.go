package handler

import (
	"jewelry-checkout/internal/dto"
	"jewelry-checkout/internal/middleware"
	"jewelry-checkout/internal/model"
	"jewelry-checkout/internal/service"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orderService   service.OrderService
	paymentService service.PaymentService
	log            *zap.Logger
}

func NewOrderHandler(orderService service.OrderService, paymentService service.PaymentService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService:   orderService,
		paymentService: paymentService,
		log:            log,
	}
}

func orderIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, service.ErrOrderNotFound
	}
	return uint(id), nil
}

func (h *OrderHandler) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PlaceOrderRequest
	if err := decodeStrict(c, &req); err != nil {
		return writeError(c, h.log, err)
	}

	in := service.PlaceOrderInput{
		Items:    make([]service.CartItem, len(req.Items)),
		Customer: service.Customer{Name: req.Customer.Name, Email: req.Customer.Email, Phone: req.Customer.Phone},
		Address: service.Address{
			Line1:   req.Address.Line1,
			Line2:   req.Address.Line2,
			City:    req.Address.City,
			State:   req.Address.State,
			Pincode: req.Address.Pincode,
		},
		UserID:           middleware.UserID(c),
		PaymentMethod:    model.PaymentMethod(req.PaymentMethod),
		PaymentStatus:    model.PaymentStatusPending,
		MerchantOrderID:  req.MerchantOrderID,
		PaymentID:        req.PaymentID,
		PaymentSignature: req.PaymentSignature,
	}
	for i, item := range req.Items {
		in.Items[i] = service.CartItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := h.orderService.PlaceOrder(ctx, in)
	if err != nil {
		return writeError(c, h.log, err)
	}

	resp := &dto.PlaceOrderResponse{Order: order}
	if order.PaymentMethod != model.PaymentMethodOnline {
		return c.JSON(http.StatusCreated, resp)
	}

	// the order is committed either way; payment problems are reported
	// alongside it so the client can fall back to cash on delivery
	if req.MerchantOrderID != "" {
		synced, err := h.paymentService.SyncPaymentStatus(ctx, req.MerchantOrderID)
		if err != nil {
			h.log.Warn("payment status poll failed",
				zap.Uint("order_id", order.ID),
				zap.String("merchant_order_id", req.MerchantOrderID),
				zap.Error(err),
			)
			_, resp.PaymentError = errorResponse(err)
		} else {
			resp.Order = synced
		}
		return c.JSON(http.StatusCreated, resp)
	}

	payment, err := h.paymentService.InitiatePayment(ctx, order.ID)
	if err != nil {
		_, resp.PaymentError = errorResponse(err)
		resp.PaymentError.Suggestion = suggestCOD
		return c.JSON(http.StatusCreated, resp)
	}
	resp.Payment = payment

	return c.JSON(http.StatusCreated, resp)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.orderService.ListOrdersForUser(ctx, middleware.UserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, orders)
}

// authorizeOrder lets anyone act on a guest order. An order of a registered
// user is reserved to that user and to admins.
func authorizeOrder(c echo.Context, order *model.Order) error {
	if order.UserID == nil {
		return nil
	}
	userID := middleware.UserID(c)
	if userID == "" {
		return service.ErrUnauthorized
	}
	if userID != *order.UserID && !middleware.IsAdmin(c) {
		return service.ErrForbidden
	}
	return nil
}

// GetOrder serves guest orders to anyone holding the id; orders of a
// registered user are visible to that user and to admins only.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := orderIDParam(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	order, err := h.orderService.GetOrder(ctx, orderID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	if err := authorizeOrder(c, order); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := orderIDParam(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req dto.UpdateOrderStatusRequest
	if err := decodeStrict(c, &req); err != nil {
		return writeError(c, h.log, err)
	}

	order, err := h.orderService.UpdateOrderStatus(ctx, orderID, model.OrderStatus(req.Status))
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdatePaymentStatus(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := orderIDParam(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req dto.UpdatePaymentStatusRequest
	if err := decodeStrict(c, &req); err != nil {
		return writeError(c, h.log, err)
	}

	order, err := h.orderService.UpdatePaymentStatus(ctx, orderID, model.PaymentStatus(req.PaymentStatus))
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, order)
}
