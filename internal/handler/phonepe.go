package handler

import (
	"io"
	"jewelry-checkout/internal/dto"
	"jewelry-checkout/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	signatureHeader = "X-VERIFY"
	maxWebhookBody  = 64 << 10
)

type PhonePeHandler struct {
	orderService   service.OrderService
	paymentService service.PaymentService
	log            *zap.Logger
}

func NewPhonePeHandler(orderService service.OrderService, paymentService service.PaymentService, log *zap.Logger) *PhonePeHandler {
	return &PhonePeHandler{
		orderService:   orderService,
		paymentService: paymentService,
		log:            log,
	}
}

func (h *PhonePeHandler) Initiate(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.InitiatePaymentRequest
	if err := decodeStrict(c, &req); err != nil {
		return writeError(c, h.log, err)
	}

	order, err := h.orderService.GetOrder(ctx, req.OrderID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if err := authorizeOrder(c, order); err != nil {
		return writeError(c, h.log, err)
	}

	result, err := h.paymentService.InitiatePayment(ctx, order.ID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *PhonePeHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	err = h.paymentService.HandleWebhook(ctx, body, c.Request().Header.Get(signatureHeader))
	if err != nil {
		h.log.Warn("phonepe webhook not processed",
			zap.String("remote_ip", c.RealIP()),
			zap.Error(err),
		)
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *PhonePeHandler) Status(c echo.Context) error {
	ctx := c.Request().Context()

	merchantOrderID := c.Param("merchantOrderId")
	if merchantOrderID == "" {
		return writeError(c, h.log, service.ErrOrderNotFound)
	}

	order, err := h.paymentService.SyncPaymentStatus(ctx, merchantOrderID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, order)
}
