package repository

import (
	"context"
	"errors"
	"jewelry-checkout/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error
	FindByID(ctx context.Context, orderID uint) (*model.Order, error)
	FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*model.Order, error)
	// LockByID loads the order with its items under a row lock.
	LockByID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Order, error)
	// ClaimMerchantOrderID stores candidate unless the order already carries
	// a merchant order id, and returns the id the order ends up with.
	ClaimMerchantOrderID(ctx context.Context, orderID uint, candidate string) (string, error)
	// ResolvePayment moves a pending payment to status and reports whether
	// the order was still pending.
	ResolvePayment(ctx context.Context, tx *gorm.DB, merchantOrderID string, status model.PaymentStatus, paymentID string) (bool, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, orderID uint, status model.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, orderID uint, status model.PaymentStatus) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *orderRepoImpl) CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error {
	return tx.WithContext(ctx).Omit(clause.Associations).Create(&items).Error
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped()
		})
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID uint) (*model.Order, error) {
	var order model.Order
	err := withItems(r.db.WithContext(ctx)).
		Where("id = ?", orderID).
		First(&order).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*model.Order, error) {
	var order model.Order
	err := withItems(r.db.WithContext(ctx)).
		Where("merchant_order_id = ?", merchantOrderID).
		First(&order).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := withItems(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND payment_status = ? AND status = ? AND created_at < ?",
			model.PaymentMethodOnline,
			model.PaymentStatusPending,
			model.OrderStatusPlaced,
			before,
		).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) LockByID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Order, error) {
	var order model.Order
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	err = tx.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&order.Items).Error
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) ClaimMerchantOrderID(ctx context.Context, orderID uint, candidate string) (string, error) {
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND (merchant_order_id IS NULL OR merchant_order_id = '')", orderID).
		Updates(map[string]interface{}{
			"merchant_order_id": candidate,
			"updated_at":        time.Now(),
		}).Error
	if err != nil {
		return "", err
	}

	var order model.Order
	err = r.db.WithContext(ctx).
		Select("id", "merchant_order_id").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return "", err
	}
	if order.MerchantOrderID == nil {
		return "", gorm.ErrRecordNotFound
	}

	return *order.MerchantOrderID, nil
}

func (r *orderRepoImpl) ResolvePayment(ctx context.Context, tx *gorm.DB, merchantOrderID string, status model.PaymentStatus, paymentID string) (bool, error) {
	fields := map[string]interface{}{
		"payment_status": status,
		"updated_at":     time.Now(),
	}
	if paymentID != "" {
		fields["payment_id"] = paymentID
	}

	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("merchant_order_id = ? AND payment_status = ?", merchantOrderID, model.PaymentStatusPending).
		Updates(fields)

	return result.RowsAffected > 0, result.Error
}

func (r *orderRepoImpl) UpdateStatus(ctx context.Context, tx *gorm.DB, orderID uint, status model.OrderStatus) error {
	return tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *orderRepoImpl) UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, orderID uint, status model.PaymentStatus) error {
	return tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"payment_status": status,
			"updated_at":     time.Now(),
		}).Error
}
