package service

import (
	"jewelry-checkout/internal/client"
	"jewelry-checkout/internal/model"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
)

// sanitize trims s and drops control characters.
func sanitize(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

// normalizeInput sanitizes every free-text field and validates the result.
// Checks run in a fixed order so the first failure is stable.
func normalizeInput(in PlaceOrderInput) (PlaceOrderInput, error) {
	if len(in.Items) == 0 {
		return in, ErrEmptyCart
	}

	in.Customer.Name = sanitize(in.Customer.Name)
	in.Customer.Email = strings.ToLower(sanitize(in.Customer.Email))
	in.Customer.Phone = sanitize(in.Customer.Phone)
	in.Address.Line1 = sanitize(in.Address.Line1)
	in.Address.Line2 = sanitize(in.Address.Line2)
	in.Address.City = sanitize(in.Address.City)
	in.Address.State = sanitize(in.Address.State)
	in.Address.Pincode = sanitize(in.Address.Pincode)
	in.UserID = sanitize(in.UserID)

	items := make([]CartItem, len(in.Items))
	for i, item := range in.Items {
		items[i] = CartItem{ProductID: sanitize(item.ProductID), Quantity: item.Quantity}
	}
	in.Items = items

	required := []struct {
		name  string
		value string
	}{
		{"name", in.Customer.Name},
		{"email", in.Customer.Email},
		{"phone", in.Customer.Phone},
		{"address line1", in.Address.Line1},
		{"city", in.Address.City},
		{"state", in.Address.State},
		{"pincode", in.Address.Pincode},
	}
	var missing []string
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	for _, item := range in.Items {
		if item.ProductID == "" {
			missing = append(missing, "productId")
			break
		}
	}
	if len(missing) > 0 {
		return in, &MissingFieldsError{Fields: missing}
	}

	if !emailPattern.MatchString(in.Customer.Email) {
		return in, ErrInvalidEmail
	}

	phone, ok := client.NormalizePhone(in.Customer.Phone)
	if !ok {
		return in, ErrInvalidPhone
	}
	in.Customer.Phone = phone

	if !pincodePattern.MatchString(in.Address.Pincode) {
		return in, ErrInvalidPincode
	}

	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return in, ErrInvalidQuantity
		}
	}

	switch in.PaymentMethod {
	case model.PaymentMethodCOD, model.PaymentMethodOnline:
	default:
		return in, ErrInvalidPaymentMethod
	}

	switch in.PaymentStatus {
	case "":
		in.PaymentStatus = model.PaymentStatusPending
	case model.PaymentStatusPending, model.PaymentStatusCompleted, model.PaymentStatusFailed:
	default:
		return in, ErrInvalidPaymentStatus
	}

	return in, nil
}
