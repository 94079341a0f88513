package client

import (
	"context"
	"encoding/json"
	"fmt"
	"jewelry-checkout/internal/config"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventOrderPlaced    = "order.placed"
	EventPaymentUpdated = "payment.updated"
	EventOrderCancelled = "order.cancelled"
)

type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       uint      `json:"orderId"`
	OrderNumber   int64     `json:"orderNumber"`
	UserID        string    `json:"userId,omitempty"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	TotalPrice    string    `json:"totalPrice"`
	Timestamp     time.Time `json:"timestamp"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

type kafkaEventPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewEventPublisher returns a Kafka backed publisher, or a no-op one when
// no brokers are configured.
func NewEventPublisher(cfg config.Kafka, log *zap.Logger) EventPublisher {
	if len(cfg.Brokers) == 0 {
		log.Info("kafka brokers not configured, order events disabled")
		return NopEventPublisher{}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}
	log.Info("kafka producer initialized",
		zap.String("topic", cfg.Topic),
		zap.Strings("brokers", cfg.Brokers),
	)
	return &kafkaEventPublisher{writer: w, log: log}
}

func (p *kafkaEventPublisher) Publish(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderNumber, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write order event: %w", err)
	}

	p.log.Debug("order event published",
		zap.String("type", event.Type),
		zap.Int64("order_number", event.OrderNumber),
	)
	return nil
}

func (p *kafkaEventPublisher) Close() error {
	return p.writer.Close()
}

type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NopEventPublisher) Close() error                              { return nil }
