package dto

import (
	"jewelry-checkout/internal/client"
	"jewelry-checkout/internal/model"
)

type CartItem struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type CustomerInfo struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,max=254"`
	Phone string `json:"phone" validate:"required"`
}

type AddressInfo struct {
	Line1   string `json:"line1" validate:"required,max=200"`
	Line2   string `json:"line2" validate:"max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	Pincode string `json:"pincode" validate:"required"`
}

// PlaceOrderRequest carries no price fields; totals are always computed
// from the catalog.
type PlaceOrderRequest struct {
	Items         []CartItem   `json:"items" validate:"required,min=1,dive"`
	Customer      CustomerInfo `json:"customer"`
	Address       AddressInfo  `json:"address"`
	PaymentMethod string       `json:"paymentMethod" validate:"required,oneof=cod online"`

	// set when the client completed an online payment before checkout
	MerchantOrderID  string `json:"merchantOrderId" validate:"max=64"`
	PaymentID        string `json:"paymentId" validate:"max=128"`
	PaymentSignature string `json:"paymentSignature" validate:"max=256"`
}

type PlaceOrderResponse struct {
	Order        *model.Order               `json:"order"`
	Payment      *client.PaymentOrderResult `json:"payment,omitempty"`
	PaymentError *ErrorResponse             `json:"paymentError,omitempty"`
}

type InitiatePaymentRequest struct {
	OrderID uint `json:"orderId" validate:"required,gt=0"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=placed packed shipped delivered cancelled"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required,oneof=pending completed failed"`
}

type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
}
