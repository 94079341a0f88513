package client

import "encoding/json"

type payResponseKind int

const (
	payResponseRedirectInfo payResponseKind = iota + 1 // data.instrumentResponse.redirectInfo.url
	payResponseOrderToken                              // {orderId, state}, checkout url built locally
	payResponseDirectURL                               // {paymentUrl}
)

// payResponse is the decoded pay endpoint reply. URL is set for
// RedirectInfo and DirectURL; Token for OrderToken.
type payResponse struct {
	Kind          payResponseKind
	URL           string
	Token         string
	TransactionID string
}

type payResponseDecoder func(raw []byte) (payResponse, bool)

// Tried in order, first match wins. New provider shapes are added here.
var payResponseDecoders = []payResponseDecoder{
	decodeRedirectInfo,
	decodeOrderToken,
	decodeDirectURL,
}

func decodePayResponse(raw []byte) (payResponse, bool) {
	for _, decode := range payResponseDecoders {
		if resp, ok := decode(raw); ok {
			return resp, true
		}
	}
	return payResponse{}, false
}

func decodeRedirectInfo(raw []byte) (payResponse, bool) {
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			MerchantTransactionID string `json:"merchantTransactionId"`
			TransactionID         string `json:"transactionId"`
			InstrumentResponse    *struct {
				RedirectInfo struct {
					URL string `json:"url"`
				} `json:"redirectInfo"`
			} `json:"instrumentResponse"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return payResponse{}, false
	}
	if body.Data.InstrumentResponse == nil || body.Data.InstrumentResponse.RedirectInfo.URL == "" {
		return payResponse{}, false
	}

	txID := body.Data.TransactionID
	if txID == "" {
		txID = body.Data.MerchantTransactionID
	}

	return payResponse{
		Kind:          payResponseRedirectInfo,
		URL:           body.Data.InstrumentResponse.RedirectInfo.URL,
		TransactionID: txID,
	}, true
}

func decodeOrderToken(raw []byte) (payResponse, bool) {
	var body struct {
		OrderID string `json:"orderId"`
		State   string `json:"state"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return payResponse{}, false
	}
	if body.OrderID == "" || body.State == "" {
		return payResponse{}, false
	}

	return payResponse{
		Kind:          payResponseOrderToken,
		Token:         body.OrderID,
		TransactionID: body.OrderID,
	}, true
}

func decodeDirectURL(raw []byte) (payResponse, bool) {
	var body struct {
		PaymentURL    string `json:"paymentUrl"`
		TransactionID string `json:"transactionId"`
		OrderID       string `json:"orderId"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return payResponse{}, false
	}
	if body.PaymentURL == "" {
		return payResponse{}, false
	}

	txID := body.TransactionID
	if txID == "" {
		txID = body.OrderID
	}

	return payResponse{
		Kind:          payResponseDirectURL,
		URL:           body.PaymentURL,
		TransactionID: txID,
	}, true
}

// providerEnvelope is the common {success, code, message} wrapper of
// PhonePe error replies.
type providerEnvelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeEnvelope(raw []byte) providerEnvelope {
	var env providerEnvelope
	_ = json.Unmarshal(raw, &env)
	return env
}

type statusResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		MerchantTransactionID string          `json:"merchantTransactionId"`
		TransactionID         string          `json:"transactionId"`
		Amount                int64           `json:"amount"`
		State                 string          `json:"state"`
		ResponseCode          string          `json:"responseCode"`
		PaymentInstrument     json.RawMessage `json:"paymentInstrument"`
	} `json:"data"`

	// flat order-status shape
	OrderID        string `json:"orderId"`
	State          string `json:"state"`
	Amount         int64  `json:"amount"`
	PaymentDetails []struct {
		TransactionID string          `json:"transactionId"`
		PaymentMode   string          `json:"paymentMode"`
		State         string          `json:"state"`
		Instrument    json.RawMessage `json:"instrument"`
	} `json:"paymentDetails"`
}

func (r statusResponse) normalize() (*PaymentStatusResult, bool) {
	if r.Data != nil && r.Data.State != "" {
		return &PaymentStatusResult{
			Success:           r.Success,
			Status:            r.Code,
			State:             r.Data.State,
			TransactionID:     r.Data.TransactionID,
			Amount:            r.Data.Amount,
			PaymentInstrument: r.Data.PaymentInstrument,
		}, true
	}

	if r.State == "" {
		return nil, false
	}

	res := &PaymentStatusResult{
		Success: r.State == "COMPLETED",
		Status:  r.State,
		State:   r.State,
		Amount:  r.Amount,
	}
	if n := len(r.PaymentDetails); n > 0 {
		last := r.PaymentDetails[n-1]
		res.TransactionID = last.TransactionID
		res.PaymentInstrument = last.Instrument
		if res.PaymentInstrument == nil && last.PaymentMode != "" {
			res.PaymentInstrument, _ = json.Marshal(map[string]string{"type": last.PaymentMode})
		}
	}
	return res, true
}
