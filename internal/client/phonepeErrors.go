package client

import (
	"errors"
	"fmt"
	"net/http"
)

type GatewayErrorKind string

const (
	KindGatewayMisconfigured  GatewayErrorKind = "GATEWAY_MISCONFIGURED"
	KindGatewayAuth           GatewayErrorKind = "GATEWAY_AUTH_ERROR"
	KindMerchantNotConfigured GatewayErrorKind = "MERCHANT_NOT_CONFIGURED"
	KindBadRequest            GatewayErrorKind = "BAD_REQUEST"
	KindResponseUnrecognized  GatewayErrorKind = "GATEWAY_RESPONSE_UNRECOGNIZED"
	KindMinimumAmount         GatewayErrorKind = "MINIMUM_AMOUNT_ERROR"
	KindGateway               GatewayErrorKind = "GATEWAY_ERROR"
)

// GatewayError keeps the provider's own code, message and raw body next to
// the locally assigned kind.
type GatewayError struct {
	Kind       GatewayErrorKind
	StatusCode int
	Code       string
	Message    string
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("phonepe %s", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += " code=" + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether calling again may succeed. Merchant
// misconfiguration, malformed requests and unknown response shapes never
// are.
func (e *GatewayError) Retryable() bool {
	if e.Kind != KindGateway {
		return false
	}
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// GatewayKind extracts the gateway error kind, or "" if err is not one.
func GatewayKind(err error) GatewayErrorKind {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return ""
}

var merchantNotConfiguredCodes = map[string]bool{
	"KEY_NOT_CONFIGURED":      true,
	"MERCHANT_NOT_ACTIVATED":  true,
	"MERCHANT_NOT_CONFIGURED": true,
}

var badRequestCodes = map[string]bool{
	"BAD_REQUEST":     true,
	"INVALID_REQUEST": true,
	"INVALID_INPUT":   true,
}

func classifyProviderError(status int, code, message, body string) *GatewayError {
	kind := KindGateway
	switch {
	case merchantNotConfiguredCodes[code]:
		kind = KindMerchantNotConfigured
	case badRequestCodes[code]:
		kind = KindBadRequest
	}

	return &GatewayError{
		Kind:       kind,
		StatusCode: status,
		Code:       code,
		Message:    message,
		Body:       body,
	}
}
