package service

import (
	"errors"
	"fmt"
	"jewelry-checkout/internal/client"
	"strings"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrEmptyCart            = errors.New("cart is empty")
	ErrMissingFields        = errors.New("missing required fields")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrInvalidPhone         = errors.New("phone number must have 10 digits")
	ErrInvalidPincode       = errors.New("pincode must be a 6 digit postal code")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidPaymentMethod = errors.New("payment method must be cod or online")

	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrStockUpdateConflict = errors.New("stock changed while placing the order")

	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrInvalidPaymentStatus    = errors.New("invalid payment status")

	ErrMinimumAmount         = errors.New("order total is below the ₹1 online payment minimum")
	ErrPaymentNotApplicable  = errors.New("order is not awaiting online payment")
	ErrInvalidSignature      = errors.New("webhook signature mismatch")
	ErrInvalidWebhookPayload = errors.New("malformed webhook payload")
)

type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingFields, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingFields }

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrProductNotFound, e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

type StockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%s for %s: available %d, requested %d",
		ErrInsufficientStock, e.ProductName, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type StockConflictError struct {
	ProductID   string
	ProductName string
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrStockUpdateConflict, e.ProductName)
}

func (e *StockConflictError) Unwrap() error { return ErrStockUpdateConflict }

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrEmptyCart, "EMPTY_CART"},
	{ErrMissingFields, "MISSING_FIELDS"},
	{ErrInvalidEmail, "INVALID_EMAIL"},
	{ErrInvalidPhone, "INVALID_PHONE"},
	{ErrInvalidPincode, "INVALID_PINCODE"},
	{ErrInvalidQuantity, "INVALID_QUANTITY"},
	{ErrInvalidPaymentMethod, "INVALID_PAYMENT_METHOD"},
	{ErrProductNotFound, "PRODUCT_NOT_FOUND"},
	{ErrInsufficientStock, "INSUFFICIENT_STOCK"},
	{ErrStockUpdateConflict, "STOCK_UPDATE_CONFLICT"},
	{ErrOrderNotFound, "ORDER_NOT_FOUND"},
	{ErrInvalidStatusTransition, "INVALID_STATUS_TRANSITION"},
	{ErrInvalidPaymentStatus, "INVALID_PAYMENT_STATUS"},
	{ErrMinimumAmount, "MINIMUM_AMOUNT_ERROR"},
	{ErrPaymentNotApplicable, "PAYMENT_NOT_APPLICABLE"},
	{ErrInvalidSignature, "INVALID_SIGNATURE"},
	{ErrInvalidWebhookPayload, "INVALID_WEBHOOK_PAYLOAD"},
}

// ErrorKind returns the machine readable kind of err, or "INTERNAL".
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if kind := client.GatewayKind(err); kind != "" {
		return string(kind)
	}
	return "INTERNAL"
}
