package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"jewelry-checkout/internal/client"
	"jewelry-checkout/internal/dto"
	"jewelry-checkout/internal/service"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	suggestRemoveItems = "remove unavailable items and retry"
	suggestRefreshCart = "refresh your cart and retry"
	suggestCOD         = "switch to cash on delivery"
)

var errInvalidBody = errors.New("invalid request body")

var statusByKind = map[string]int{
	"UNAUTHORIZED":                  http.StatusUnauthorized,
	"INVALID_SIGNATURE":             http.StatusUnauthorized,
	"FORBIDDEN":                     http.StatusForbidden,
	"PRODUCT_NOT_FOUND":             http.StatusNotFound,
	"ORDER_NOT_FOUND":               http.StatusNotFound,
	"STOCK_UPDATE_CONFLICT":         http.StatusConflict,
	"PAYMENT_NOT_APPLICABLE":        http.StatusConflict,
	"INTERNAL":                      http.StatusInternalServerError,
	"GATEWAY_MISCONFIGURED":         http.StatusBadGateway,
	"GATEWAY_AUTH_ERROR":            http.StatusBadGateway,
	"MERCHANT_NOT_CONFIGURED":       http.StatusBadGateway,
	"BAD_REQUEST":                   http.StatusBadGateway,
	"GATEWAY_RESPONSE_UNRECOGNIZED": http.StatusBadGateway,
	"GATEWAY_ERROR":                 http.StatusBadGateway,
}

// errorResponse builds the JSON body and HTTP status for err. Unmapped
// domain kinds are client errors.
func errorResponse(err error) (int, *dto.ErrorResponse) {
	if errors.Is(err, errInvalidBody) {
		return http.StatusBadRequest, &dto.ErrorResponse{Error: err.Error(), Code: "INVALID_BODY"}
	}

	kind := service.ErrorKind(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusBadRequest
	}

	resp := &dto.ErrorResponse{Error: err.Error(), Code: kind}
	switch {
	case kind == "INTERNAL":
		resp.Error = "internal server error"
	case errors.Is(err, service.ErrInsufficientStock), errors.Is(err, service.ErrProductNotFound):
		resp.Suggestion = suggestRemoveItems
	case errors.Is(err, service.ErrStockUpdateConflict):
		resp.Suggestion = suggestRefreshCart
	case client.GatewayKind(err) != "", errors.Is(err, service.ErrMinimumAmount):
		resp.Suggestion = suggestCOD
	}
	return status, resp
}

// writeError is the single place handlers turn errors into responses.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	status, resp := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("code", resp.Code),
			zap.Error(err),
		)
	}
	return c.JSON(status, resp)
}

// decodeStrict rejects unknown fields and trailing data, then runs the
// registered validator.
func decodeStrict(c echo.Context, v interface{}) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: unexpected data after object", errInvalidBody)
	}

	if err := c.Validate(v); err != nil {
		return translateValidation(err)
	}
	return nil
}

// translateValidation maps struct tag failures onto the domain errors the
// service would return for the same input.
func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}

	var missing []string
	for _, fe := range verrs {
		switch fe.Field() {
		case "items":
			return service.ErrEmptyCart
		case "quantity":
			return service.ErrInvalidQuantity
		case "paymentMethod":
			if fe.Tag() == "oneof" {
				return service.ErrInvalidPaymentMethod
			}
		case "paymentStatus":
			if fe.Tag() == "oneof" {
				return service.ErrInvalidPaymentStatus
			}
		case "email":
			if fe.Tag() != "required" {
				return service.ErrInvalidEmail
			}
		}

		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		return fmt.Errorf("%w: %s failed %s", errInvalidBody, fe.Namespace(), fe.Tag())
	}
	return &service.MissingFieldsError{Fields: missing}
}

type Validator struct {
	validate *validator.Validate
}

// NewValidator reports field names as they appear in JSON bodies.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
