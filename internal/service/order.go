package service

import (
	"context"
	"fmt"
	"jewelry-checkout/internal/client"
	"jewelry-checkout/internal/model"
	"jewelry-checkout/internal/repository"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CartItem struct {
	ProductID string
	Quantity  int
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

type Address struct {
	Line1   string
	Line2   string
	City    string
	State   string
	Pincode string
}

type PlaceOrderInput struct {
	Items         []CartItem
	Customer      Customer
	Address       Address
	UserID        string // empty for guest checkout
	PaymentMethod model.PaymentMethod
	PaymentStatus model.PaymentStatus // defaults to pending

	MerchantOrderID  string
	PaymentID        string
	PaymentSignature string
}

type OrderService interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (*model.Order, error)
	ListOrdersForUser(ctx context.Context, userID string) ([]*model.Order, error)
	GetOrder(ctx context.Context, orderID uint) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uint, status model.OrderStatus) (*model.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID uint, status model.PaymentStatus) (*model.Order, error)
	// CancelUnpaid cancels and restocks an online order whose payment is
	// still pending. It reports false when the order no longer qualifies.
	CancelUnpaid(ctx context.Context, orderID uint) (bool, error)
}

type orderServiceImpl struct {
	db            *gorm.DB
	productRepo   repository.ProductRepository
	inventoryRepo repository.InventoryRepository
	orderRepo     repository.OrderRepository
	sequenceRepo  repository.OrderSequenceRepository
	events        client.EventPublisher
	log           *zap.Logger
}

func NewOrderService(
	db *gorm.DB,
	productRepo repository.ProductRepository,
	inventoryRepo repository.InventoryRepository,
	orderRepo repository.OrderRepository,
	sequenceRepo repository.OrderSequenceRepository,
	events client.EventPublisher,
	log *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		db:            db,
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		orderRepo:     orderRepo,
		sequenceRepo:  sequenceRepo,
		events:        events,
		log:           log,
	}
}

var hundred = decimal.NewFromInt(100)

// UnitPrice is price less discount percent, rounded half away from zero to
// paise.
func UnitPrice(price, discount decimal.Decimal) decimal.Decimal {
	return price.Sub(price.Mul(discount).Div(hundred)).Round(2)
}

func (s *orderServiceImpl) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*model.Order, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	var order *model.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := s.productRepo.LockMany(ctx, tx, distinctSorted(in.Items))
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}

		total := decimal.Zero
		items := make([]*model.OrderItem, 0, len(in.Items))
		for _, line := range in.Items {
			product, ok := products[line.ProductID]
			if !ok {
				return &ProductNotFoundError{ProductID: line.ProductID}
			}

			// product.Stock is decremented below, so repeated lines see
			// what earlier lines left over
			if product.Stock < line.Quantity {
				return &StockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Available:   product.Stock,
					Requested:   line.Quantity,
				}
			}

			unit := UnitPrice(product.Price, product.Discount)
			total = total.Add(unit.Mul(decimal.NewFromInt(int64(line.Quantity))))

			updated, err := s.inventoryRepo.Decrement(ctx, tx, product.ID, line.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock of %s: %w", product.ID, err)
			}
			if !updated {
				return &StockConflictError{ProductID: product.ID, ProductName: product.Name}
			}
			product.Stock -= line.Quantity

			items = append(items, &model.OrderItem{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				Price:     unit,
			})
		}

		number, err := s.sequenceRepo.Next(ctx, tx, repository.OrderNumberSequence)
		if err != nil {
			return fmt.Errorf("allocate order number: %w", err)
		}

		order = &model.Order{
			OrderNumber:      number,
			TotalPrice:       total.Round(2),
			CustomerName:     in.Customer.Name,
			CustomerEmail:    in.Customer.Email,
			CustomerPhone:    in.Customer.Phone,
			AddressLine1:     in.Address.Line1,
			AddressLine2:     in.Address.Line2,
			City:             in.Address.City,
			State:            in.Address.State,
			Pincode:          in.Address.Pincode,
			Status:           model.OrderStatusPlaced,
			PaymentMethod:    in.PaymentMethod,
			PaymentStatus:    in.PaymentStatus,
			PaymentID:        in.PaymentID,
			PaymentSignature: in.PaymentSignature,
		}
		if in.UserID != "" {
			order.UserID = &in.UserID
		}
		if in.MerchantOrderID != "" {
			order.MerchantOrderID = &in.MerchantOrderID
		}

		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order in db: %w", err)
		}

		for _, item := range items {
			item.OrderID = order.ID
		}
		if err := s.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
			return fmt.Errorf("store order items in db: %w", err)
		}

		order.Items = make([]model.OrderItem, len(items))
		for i, item := range items {
			snapshot := *products[item.ProductID]
			item.Product = &snapshot
			order.Items[i] = *item
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order placed",
		zap.Uint("order_id", order.ID),
		zap.Int64("order_number", order.OrderNumber),
		zap.String("total", order.TotalPrice.StringFixed(2)),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Int("items", len(order.Items)),
	)
	s.publish(ctx, client.EventOrderPlaced, order)

	return order, nil
}

func distinctSorted(items []CartItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Strings(ids)
	return ids
}

func (s *orderServiceImpl) ListOrdersForUser(ctx context.Context, userID string) ([]*model.Order, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders of user: %w", err)
	}
	return orders, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

var nextStatus = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPlaced:  {model.OrderStatusPacked, model.OrderStatusCancelled},
	model.OrderStatusPacked:  {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusShipped: {model.OrderStatusDelivered},
}

func canTransition(from, to model.OrderStatus) bool {
	for _, s := range nextStatus[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *orderServiceImpl) UpdateOrderStatus(ctx context.Context, orderID uint, status model.OrderStatus) (*model.Order, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.LockByID(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if !canTransition(order.Status, status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, order.Status, status)
		}

		if status == model.OrderStatusCancelled {
			if err := s.restock(ctx, tx, order); err != nil {
				return err
			}
		}
		return s.orderRepo.UpdateStatus(ctx, tx, orderID, status)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if status == model.OrderStatusCancelled {
		s.publish(ctx, client.EventOrderCancelled, order)
	}
	return order, nil
}

func (s *orderServiceImpl) UpdatePaymentStatus(ctx context.Context, orderID uint, status model.PaymentStatus) (*model.Order, error) {
	switch status {
	case model.PaymentStatusPending, model.PaymentStatusCompleted, model.PaymentStatusFailed:
	default:
		return nil, ErrInvalidPaymentStatus
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.LockByID(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order == nil {
			return ErrOrderNotFound
		}
		return s.orderRepo.UpdatePaymentStatus(ctx, tx, orderID, status)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, client.EventPaymentUpdated, order)
	return order, nil
}

func (s *orderServiceImpl) CancelUnpaid(ctx context.Context, orderID uint) (bool, error) {
	cancelled := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.LockByID(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.PaymentMethod != model.PaymentMethodOnline ||
			order.PaymentStatus != model.PaymentStatusPending ||
			order.Status != model.OrderStatusPlaced {
			return nil
		}

		if err := s.restock(ctx, tx, order); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, model.OrderStatusCancelled); err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if err := s.orderRepo.UpdatePaymentStatus(ctx, tx, orderID, model.PaymentStatusFailed); err != nil {
			return fmt.Errorf("fail payment: %w", err)
		}
		cancelled = true
		return nil
	})
	if err != nil || !cancelled {
		return false, err
	}

	if order, err := s.GetOrder(ctx, orderID); err == nil {
		s.publish(ctx, client.EventOrderCancelled, order)
	}
	return true, nil
}

func (s *orderServiceImpl) restock(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	for _, item := range order.Items {
		if err := s.inventoryRepo.Restock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("restock %s: %w", item.ProductID, err)
		}
	}
	return nil
}

// publish never fails the caller; the order is already committed.
func (s *orderServiceImpl) publish(ctx context.Context, eventType string, order *model.Order) {
	if err := s.events.Publish(ctx, newOrderEvent(eventType, order)); err != nil {
		s.log.Warn("publish order event failed",
			zap.String("type", eventType),
			zap.Uint("order_id", order.ID),
			zap.Error(err),
		)
	}
}

func newOrderEvent(eventType string, order *model.Order) client.OrderEvent {
	event := client.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalPrice:    order.TotalPrice.StringFixed(2),
		Timestamp:     time.Now().UTC(),
	}
	if order.UserID != nil {
		event.UserID = *order.UserID
	}
	return event
}
