package handler

import (
	"jewelry-checkout/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ProductHandler struct {
	productService service.ProductService
	log            *zap.Logger
}

func NewProductHandler(productService service.ProductService, log *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		log:            log,
	}
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()

	product, err := h.productService.GetProduct(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetStock(c echo.Context) error {
	ctx := c.Request().Context()

	productID := c.Param("id")
	stock, err := h.productService.GetStock(ctx, productID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"productId": productID,
		"stock":     stock,
	})
}
