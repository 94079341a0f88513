package model

import "encoding/json"

// PhonePeWebhookEnvelope is the body PhonePe posts to the callback URL.
// Response is the base64 encoded JSON payload the signature covers.
type PhonePeWebhookEnvelope struct {
	Response string `json:"response"`
}

type PhonePeCallbackData struct {
	MerchantID            string          `json:"merchantId"`
	MerchantTransactionID string          `json:"merchantTransactionId"`
	MerchantOrderID       string          `json:"merchantOrderId"`
	TransactionID         string          `json:"transactionId"`
	Amount                int64           `json:"amount"`
	State                 string          `json:"state"`
	ResponseCode          string          `json:"responseCode"`
	PaymentInstrument     json.RawMessage `json:"paymentInstrument,omitempty"`
}

// MerchantRef returns the merchant order id regardless of which field the
// provider filled in.
func (d PhonePeCallbackData) MerchantRef() string {
	if d.MerchantOrderID != "" {
		return d.MerchantOrderID
	}
	return d.MerchantTransactionID
}

type PhonePeCallback struct {
	Success bool                `json:"success"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Data    PhonePeCallbackData `json:"data"`
}

// Provider payment states.
const (
	PhonePeStateCompleted = "COMPLETED"
	PhonePeStateFailed    = "FAILED"
	PhonePeStatePending   = "PENDING"
)

// PaymentStatusFromState maps a provider state onto the order payment
// status. ok is false when the state does not resolve the payment yet.
func PaymentStatusFromState(state string) (status PaymentStatus, ok bool) {
	switch state {
	case PhonePeStateCompleted:
		return PaymentStatusCompleted, true
	case PhonePeStateFailed:
		return PaymentStatusFailed, true
	}
	return "", false
}
