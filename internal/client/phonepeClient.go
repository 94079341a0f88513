package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"jewelry-checkout/internal/config"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	phonePeProductionHost = "api.phonepe.com"
	productionCheckoutURL = "https://mercury-t2.phonepe.com/transact/pg"
	sandboxCheckoutURL    = "https://mercury-uat.phonepe.com/transact/uat_v2"

	// MinimumAmountPaise is the smallest amount PhonePe accepts (1 rupee).
	MinimumAmountPaise = 100

	// tokens are dropped from the cache this long before they expire
	tokenExpirySkew = 60 * time.Second
	maxResponseSize = 1 << 20
)

type PhonePeClient interface {
	// AcquireToken always performs the client-credentials handshake.
	AcquireToken(ctx context.Context) (*AccessToken, error)
	CreatePaymentOrder(ctx context.Context, req PaymentOrderRequest) (*PaymentOrderResult, error)
	VerifyPaymentStatus(ctx context.Context, merchantOrderID string) (*PaymentStatusResult, error)
	// VerifyWebhookSignature never panics or errors; anything malformed is
	// reported as false.
	VerifyWebhookSignature(base64Body, signatureHeader string) bool
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"`
}

type PaymentCustomer struct {
	UserID string
	Name   string
	Email  string
	Phone  string
}

type PaymentOrderRequest struct {
	MerchantOrderID string
	Amount          decimal.Decimal // rupees
	OrderID         uint
	Customer        PaymentCustomer
}

type PaymentOrderResult struct {
	PaymentURL      string `json:"paymentUrl"`
	TransactionID   string `json:"transactionId"`
	MerchantOrderID string `json:"merchantOrderId"`
}

type PaymentStatusResult struct {
	Success           bool            `json:"success"`
	Status            string          `json:"status"`
	State             string          `json:"state"`
	TransactionID     string          `json:"transactionId"`
	Amount            int64           `json:"amount"` // paise
	PaymentInstrument json.RawMessage `json:"paymentInstrument,omitempty"`
}

type phonePeClientImpl struct {
	httpClient    *http.Client
	baseApiURL    string
	authBaseURL   string
	appBaseURL    string
	clientID      string
	clientSecret  string
	clientVersion string
	cache         TokenCache
	log           *zap.Logger
}

// NewPhonePeClient fails with GATEWAY_MISCONFIGURED when credentials or
// endpoints are missing. cache may be nil to disable token reuse.
func NewPhonePeClient(cfg *config.PhonePe, appBaseURL string, cache TokenCache, log *zap.Logger) (PhonePeClient, error) {
	c := &phonePeClientImpl{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseApiURL:    strings.TrimRight(cfg.BaseApiURL, "/"),
		authBaseURL:   strings.TrimRight(cfg.AuthBaseURL, "/"),
		appBaseURL:    strings.TrimRight(appBaseURL, "/"),
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		clientVersion: cfg.ClientVersion,
		cache:         cache,
		log:           log,
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = 15 * time.Second
	}
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *phonePeClientImpl) checkConfig() error {
	var missing []string
	if c.clientID == "" {
		missing = append(missing, "client id")
	}
	if c.clientSecret == "" {
		missing = append(missing, "client secret")
	}
	if c.baseApiURL == "" {
		missing = append(missing, "api base url")
	}
	if c.authBaseURL == "" {
		missing = append(missing, "auth base url")
	}
	if c.appBaseURL == "" {
		missing = append(missing, "app base url")
	}
	if len(missing) > 0 {
		return &GatewayError{
			Kind:    KindGatewayMisconfigured,
			Message: "missing " + strings.Join(missing, ", "),
		}
	}
	return nil
}

// merchantID follows the provider convention {merchantId}_{suffix}.
func (c *phonePeClientImpl) merchantID() string {
	id, _, _ := strings.Cut(c.clientID, "_")
	return id
}

func (c *phonePeClientImpl) AcquireToken(ctx context.Context) (*AccessToken, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("client_version", c.clientVersion)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authBaseURL+"/v1/oauth/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		env := decodeEnvelope(body)
		return nil, &GatewayError{
			Kind:       KindGatewayAuth,
			StatusCode: status,
			Code:       env.Code,
			Message:    env.Message,
			Body:       string(body),
		}
	}

	var token AccessToken
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return nil, &GatewayError{
			Kind:       KindGatewayAuth,
			StatusCode: status,
			Message:    "token response without access_token",
			Body:       string(body),
			Err:        err,
		}
	}

	return &token, nil
}

// token serves a cached access token and falls back to a fresh handshake.
// Cache failures are treated as misses.
func (c *phonePeClientImpl) token(ctx context.Context) (string, error) {
	key := "phonepe:token:" + c.clientID

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Warn("token cache get failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	token, err := c.AcquireToken(ctx)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if ttl := tokenTTL(token, time.Now()); ttl > 0 {
			if err := c.cache.Set(ctx, key, token.AccessToken, ttl); err != nil {
				c.log.Warn("token cache set failed", zap.Error(err))
			}
		}
	}

	return token.AccessToken, nil
}

func tokenTTL(token *AccessToken, now time.Time) time.Duration {
	var ttl time.Duration
	switch {
	case token.ExpiresIn > 0:
		ttl = time.Duration(token.ExpiresIn) * time.Second
	case token.ExpiresAt > 0:
		ttl = time.Unix(token.ExpiresAt, 0).Sub(now)
	}
	return ttl - tokenExpirySkew
}

type payInstrument struct {
	Type string `json:"type"`
}

type payRequest struct {
	MerchantID            string        `json:"merchantId"`
	MerchantTransactionID string        `json:"merchantTransactionId"`
	MerchantOrderID       string        `json:"merchantOrderId"`
	MerchantUserID        string        `json:"merchantUserId"`
	Amount                int64         `json:"amount"`
	RedirectURL           string        `json:"redirectUrl"`
	RedirectMode          string        `json:"redirectMode"`
	CallbackURL           string        `json:"callbackUrl"`
	MobileNumber          string        `json:"mobileNumber"`
	PaymentInstrument     payInstrument `json:"paymentInstrument"`
}

// ToPaise converts rupees to the provider's minor unit, rounding half away
// from zero.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (c *phonePeClientImpl) CreatePaymentOrder(ctx context.Context, in PaymentOrderRequest) (*PaymentOrderResult, error) {
	paise := ToPaise(in.Amount)
	if paise < MinimumAmountPaise {
		return nil, &GatewayError{
			Kind:    KindMinimumAmount,
			Message: fmt.Sprintf("amount %d paise is below the minimum of %d", paise, MinimumAmountPaise),
		}
	}

	phone, ok := NormalizePhone(in.Customer.Phone)
	if !ok {
		return nil, &GatewayError{
			Kind:    KindBadRequest,
			Message: "customer phone must have 10 digits",
		}
	}

	accessToken, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get phonepe access token: %w", err)
	}

	payload := payRequest{
		MerchantID:            c.merchantID(),
		MerchantTransactionID: in.MerchantOrderID,
		MerchantOrderID:       in.MerchantOrderID,
		MerchantUserID:        merchantUserID(in.Customer, phone),
		Amount:                paise,
		RedirectURL:           fmt.Sprintf("%s/order-confirmation/%d", c.appBaseURL, in.OrderID),
		RedirectMode:          "REDIRECT",
		CallbackURL:           c.appBaseURL + "/api/payments/phonepe/webhook",
		MobileNumber:          phone,
		PaymentInstrument:     payInstrument{Type: "PAY_PAGE"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/pg/v1/pay",
		bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "O-Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		env := decodeEnvelope(respBody)
		return nil, classifyProviderError(status, env.Code, env.Message, string(respBody))
	}

	resp, ok := decodePayResponse(respBody)
	if !ok {
		if env := decodeEnvelope(respBody); !env.Success && env.Code != "" {
			return nil, classifyProviderError(status, env.Code, env.Message, string(respBody))
		}
		return nil, &GatewayError{
			Kind:       KindResponseUnrecognized,
			StatusCode: status,
			Message:    "no payment url in pay response",
			Body:       string(respBody),
		}
	}

	paymentURL := resp.URL
	if resp.Kind == payResponseOrderToken {
		paymentURL = c.checkoutURL(resp.Token)
	}

	c.log.Debug("phonepe payment order created",
		zap.String("merchant_order_id", in.MerchantOrderID),
		zap.Int64("amount_paise", paise),
		zap.Int("response_kind", int(resp.Kind)),
	)

	return &PaymentOrderResult{
		PaymentURL:      paymentURL,
		TransactionID:   resp.TransactionID,
		MerchantOrderID: in.MerchantOrderID,
	}, nil
}

// checkoutURL builds the hosted checkout link for an order token, picking
// the production host when the API base points at production.
func (c *phonePeClientImpl) checkoutURL(token string) string {
	base := sandboxCheckoutURL
	if strings.Contains(c.baseApiURL, phonePeProductionHost) {
		base = productionCheckoutURL
	}
	return base + "?token=" + url.QueryEscape(token)
}

func merchantUserID(customer PaymentCustomer, phone string) string {
	id := customer.UserID
	if id == "" {
		id = phone
	}
	id = strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, id)
	return "MUID" + id
}

func (c *phonePeClientImpl) VerifyPaymentStatus(ctx context.Context, merchantOrderID string) (*PaymentStatusResult, error) {
	if merchantOrderID == "" {
		return nil, &GatewayError{Kind: KindBadRequest, Message: "merchant order id is required"}
	}

	accessToken, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get phonepe access token: %w", err)
	}

	statusURL := fmt.Sprintf("%s/pg/v1/status/%s/%s",
		c.baseApiURL,
		url.PathEscape(c.merchantID()),
		url.PathEscape(merchantOrderID),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}
	req.Header.Set("Authorization", "O-Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		env := decodeEnvelope(body)
		return nil, classifyProviderError(status, env.Code, env.Message, string(body))
	}

	var parsed statusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &GatewayError{
			Kind:       KindResponseUnrecognized,
			StatusCode: status,
			Message:    "status response is not json",
			Body:       string(body),
			Err:        err,
		}
	}

	result, ok := parsed.normalize()
	if !ok {
		if !parsed.Success && parsed.Code != "" {
			return nil, classifyProviderError(status, parsed.Code, parsed.Message, string(body))
		}
		return nil, &GatewayError{
			Kind:       KindResponseUnrecognized,
			StatusCode: status,
			Message:    "no payment state in status response",
			Body:       string(body),
		}
	}

	return result, nil
}

func (c *phonePeClientImpl) VerifyWebhookSignature(base64Body, signatureHeader string) bool {
	return VerifySignature(base64Body, signatureHeader, c.clientSecret)
}

// VerifySignature checks a "<sha256 hex>###<salt index>" header against
// sha256(body + secret) in constant time.
func VerifySignature(body, signatureHeader, secret string) bool {
	if secret == "" || body == "" {
		return false
	}

	hashPart, _, _ := strings.Cut(signatureHeader, "###")
	got, err := hex.DecodeString(strings.TrimSpace(hashPart))
	if err != nil || len(got) != sha256.Size {
		return false
	}

	want := sha256.Sum256([]byte(body + secret))
	return subtle.ConstantTimeCompare(got, want[:]) == 1
}

// GenerateMerchantOrderID returns {prefix}-{unix millis}-{8 uppercase hex}.
func GenerateMerchantOrderID(prefix string) string {
	id := uuid.New()
	return fmt.Sprintf("%s-%d-%s",
		prefix,
		time.Now().UnixMilli(),
		strings.ToUpper(hex.EncodeToString(id[:4])),
	)
}

// NormalizePhone strips formatting and a leading +91/91/0, and reports
// whether exactly 10 digits remain.
func NormalizePhone(phone string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}

	return digits, len(digits) == 10
}

func (c *phonePeClientImpl) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &GatewayError{
			Kind:    KindGateway,
			Message: "phonepe request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, &GatewayError{
			Kind:       KindGateway,
			StatusCode: resp.StatusCode,
			Message:    "read phonepe response",
			Err:        err,
		}
	}

	return resp.StatusCode, body, nil
}
