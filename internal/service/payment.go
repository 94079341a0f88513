package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"jewelry-checkout/internal/client"
	"jewelry-checkout/internal/model"
	"jewelry-checkout/internal/repository"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PaymentService interface {
	InitiatePayment(ctx context.Context, orderID uint) (*client.PaymentOrderResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	SyncPaymentStatus(ctx context.Context, merchantOrderID string) (*model.Order, error)
	// ExpireStalePayments cancels online orders left pending for longer than
	// olderThan and returns how many were cancelled.
	ExpireStalePayments(ctx context.Context, olderThan time.Duration) (int, error)
}

type PaymentConfig struct {
	BrandPrefix    string
	RetryMax       uint64
	InitialBackoff time.Duration
}

type paymentServiceImpl struct {
	db               *gorm.DB
	gateway          client.PhonePeClient
	orders           OrderService
	orderRepo        repository.OrderRepository
	webhookEventRepo repository.WebhookEventRepository
	events           client.EventPublisher
	cfg              PaymentConfig
	log              *zap.Logger
}

func NewPaymentService(
	db *gorm.DB,
	gateway client.PhonePeClient,
	orders OrderService,
	orderRepo repository.OrderRepository,
	webhookEventRepo repository.WebhookEventRepository,
	events client.EventPublisher,
	cfg PaymentConfig,
	log *zap.Logger,
) PaymentService {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	return &paymentServiceImpl{
		db:               db,
		gateway:          gateway,
		orders:           orders,
		orderRepo:        orderRepo,
		webhookEventRepo: webhookEventRepo,
		events:           events,
		cfg:              cfg,
		log:              log,
	}
}

func (s *paymentServiceImpl) InitiatePayment(ctx context.Context, orderID uint) (*client.PaymentOrderResult, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.PaymentMethod != model.PaymentMethodOnline ||
		order.PaymentStatus != model.PaymentStatusPending ||
		order.Status != model.OrderStatusPlaced {
		return nil, ErrPaymentNotApplicable
	}

	if paise := client.ToPaise(order.TotalPrice); paise < client.MinimumAmountPaise {
		return nil, fmt.Errorf("%w: %d paise", ErrMinimumAmount, paise)
	}

	// a pending payment keeps its first merchant order id, so a retried or
	// repeated initiate still settles through the link the customer paid on
	merchantOrderID, err := s.orderRepo.ClaimMerchantOrderID(ctx, order.ID, client.GenerateMerchantOrderID(s.cfg.BrandPrefix))
	if err != nil {
		return nil, fmt.Errorf("store merchant order id: %w", err)
	}

	req := client.PaymentOrderRequest{
		MerchantOrderID: merchantOrderID,
		Amount:          order.TotalPrice,
		OrderID:         order.ID,
		Customer: client.PaymentCustomer{
			Name:  order.CustomerName,
			Email: order.CustomerEmail,
			Phone: order.CustomerPhone,
		},
	}
	if order.UserID != nil {
		req.Customer.UserID = *order.UserID
	}

	var result *client.PaymentOrderResult
	attempt := 0
	op := func() error {
		attempt++
		res, err := s.gateway.CreatePaymentOrder(ctx, req)
		if err == nil {
			result = res
			return nil
		}

		var gwErr *client.GatewayError
		if errors.As(err, &gwErr) && gwErr.Retryable() {
			s.log.Warn("payment gateway call failed, retrying",
				zap.String("merchant_order_id", merchantOrderID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.InitialBackoff
	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, s.cfg.RetryMax), ctx))
	if err != nil {
		s.log.Error("create payment order failed",
			zap.Uint("order_id", order.ID),
			zap.String("merchant_order_id", merchantOrderID),
			zap.String("kind", ErrorKind(err)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create payment order: %w", err)
	}

	s.log.Info("payment initiated",
		zap.Uint("order_id", order.ID),
		zap.String("merchant_order_id", merchantOrderID),
		zap.String("transaction_id", result.TransactionID),
	)
	return result, nil
}

func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	var envelope model.PhonePeWebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Response == "" {
		s.log.Warn("webhook rejected: malformed envelope")
		return ErrInvalidSignature
	}

	if !s.gateway.VerifyWebhookSignature(envelope.Response, signature) {
		s.log.Warn("webhook rejected: signature mismatch")
		return ErrInvalidSignature
	}

	raw, err := base64.StdEncoding.DecodeString(envelope.Response)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
	}

	var callback model.PhonePeCallback
	if err := json.Unmarshal(raw, &callback); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
	}

	merchantOrderID := callback.Data.MerchantRef()
	if merchantOrderID == "" {
		return fmt.Errorf("%w: missing merchant order id", ErrInvalidWebhookPayload)
	}

	state := callback.Data.State
	if state == "" {
		state = callback.Code
	}
	eventID := merchantOrderID + ":" + callback.Data.TransactionID + ":" + state

	exists, err := s.webhookEventRepo.Exists(ctx, eventID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if exists {
		s.log.Info("webhook already processed", zap.String("event_id", eventID))
		return nil
	}

	status, ok := model.PaymentStatusFromState(state)
	if !ok {
		s.log.Info("webhook state does not resolve payment",
			zap.String("merchant_order_id", merchantOrderID),
			zap.String("state", state),
		)
		return nil
	}

	order, err := s.orderRepo.FindByMerchantOrderID(ctx, merchantOrderID)
	if err != nil {
		return fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		s.log.Warn("webhook for unknown merchant order", zap.String("merchant_order_id", merchantOrderID))
		return nil
	}
	if status == model.PaymentStatusCompleted && !s.amountMatches(order, callback.Data.Amount) {
		return nil
	}

	order, err = s.applyPaymentOutcome(ctx, merchantOrderID, status, callback.Data.TransactionID, eventID)
	if err != nil {
		return err
	}
	if order != nil {
		s.log.Info("webhook processed",
			zap.String("merchant_order_id", merchantOrderID),
			zap.String("payment_status", string(status)),
		)
	}
	return nil
}

func (s *paymentServiceImpl) SyncPaymentStatus(ctx context.Context, merchantOrderID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByMerchantOrderID(ctx, merchantOrderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.PaymentStatus != model.PaymentStatusPending {
		return order, nil
	}

	result, err := s.gateway.VerifyPaymentStatus(ctx, merchantOrderID)
	if err != nil {
		return nil, fmt.Errorf("verify payment status: %w", err)
	}

	status, ok := model.PaymentStatusFromState(result.State)
	if !ok {
		return order, nil
	}
	if status == model.PaymentStatusCompleted && !s.amountMatches(order, result.Amount) {
		return order, nil
	}

	updated, err := s.applyPaymentOutcome(ctx, merchantOrderID, status, result.TransactionID, "")
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return s.orders.GetOrder(ctx, order.ID)
	}
	return updated, nil
}

// amountMatches reports whether a completed payment of paise covers the
// order total exactly. A mismatch leaves the payment pending.
func (s *paymentServiceImpl) amountMatches(order *model.Order, paise int64) bool {
	want := client.ToPaise(order.TotalPrice)
	if paise == want {
		return true
	}
	s.log.Warn("payment amount does not match order total",
		zap.Uint("order_id", order.ID),
		zap.Int64("order_paise", want),
		zap.Int64("paid_paise", paise),
	)
	return false
}

// applyPaymentOutcome resolves a pending payment and publishes
// payment.updated. It returns nil when nothing changed. A non-empty eventID
// is recorded in the same transaction so a redelivery is ignored.
func (s *paymentServiceImpl) applyPaymentOutcome(
	ctx context.Context,
	merchantOrderID string,
	status model.PaymentStatus,
	paymentID string,
	eventID string,
) (*model.Order, error) {
	resolved := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if eventID != "" {
			inserted, err := s.webhookEventRepo.MarkProcessed(ctx, tx, eventID, string(status))
			if err != nil {
				return fmt.Errorf("mark webhook event processed: %w", err)
			}
			if !inserted {
				return nil
			}
		}

		ok, err := s.orderRepo.ResolvePayment(ctx, tx, merchantOrderID, status, paymentID)
		if err != nil {
			return fmt.Errorf("resolve payment: %w", err)
		}
		resolved = ok
		return nil
	})
	if err != nil || !resolved {
		return nil, err
	}

	order, err := s.orderRepo.FindByMerchantOrderID(ctx, merchantOrderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if err := s.events.Publish(ctx, newOrderEvent(client.EventPaymentUpdated, order)); err != nil {
		s.log.Warn("publish order event failed",
			zap.String("type", client.EventPaymentUpdated),
			zap.Uint("order_id", order.ID),
			zap.Error(err),
		)
	}
	return order, nil
}

const stalePaymentBatch = 100

func (s *paymentServiceImpl) ExpireStalePayments(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}

	stale, err := s.orderRepo.ListStalePending(ctx, time.Now().Add(-olderThan), stalePaymentBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale payments: %w", err)
	}

	cancelled := 0
	for _, order := range stale {
		ok, err := s.orders.CancelUnpaid(ctx, order.ID)
		if err != nil {
			s.log.Error("expire stale payment failed", zap.Uint("order_id", order.ID), zap.Error(err))
			continue
		}
		if ok {
			cancelled++
		}
	}

	if cancelled > 0 {
		s.log.Info("stale payments expired", zap.Int("count", cancelled))
	}
	return cancelled, nil
}
