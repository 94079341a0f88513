package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusPacked    OrderStatus = "packed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type Product struct {
	ID        string          `gorm:"primaryKey;size:64;not null" json:"id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Discount  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount"` // percent
	Stock     int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Category  string          `gorm:"size:64;index" json:"category"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt gorm.DeletedAt  `gorm:"index" json:"-"`
}

type Order struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderNumber int64           `gorm:"uniqueIndex;not null" json:"orderNumber"`
	UserID      *string         `gorm:"size:64;index" json:"userId,omitempty"` // nil for guest checkout
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"totalPrice"`

	CustomerName  string `gorm:"size:255;not null" json:"customerName"`
	CustomerEmail string `gorm:"size:255;not null" json:"customerEmail"`
	CustomerPhone string `gorm:"size:16;not null" json:"customerPhone"`
	AddressLine1  string `gorm:"size:255;not null" json:"addressLine1"`
	AddressLine2  string `gorm:"size:255" json:"addressLine2,omitempty"`
	City          string `gorm:"size:128;not null" json:"city"`
	State         string `gorm:"size:128;not null" json:"state"`
	Pincode       string `gorm:"size:6;not null" json:"pincode"`

	Status        OrderStatus   `gorm:"size:16;index;not null" json:"status"`
	PaymentMethod PaymentMethod `gorm:"size:16;not null" json:"paymentMethod"`
	PaymentStatus PaymentStatus `gorm:"size:16;index;not null" json:"paymentStatus"`

	MerchantOrderID  *string `gorm:"size:64;uniqueIndex" json:"merchantOrderId,omitempty"`
	PaymentID        string  `gorm:"size:128" json:"paymentId,omitempty"`
	PaymentSignature string  `gorm:"size:255" json:"-"`

	Items     []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type OrderItem struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	OrderID   uint   `gorm:"index;not null" json:"orderId"`
	ProductID string `gorm:"size:64;index;not null" json:"productId"`
	Quantity  int    `gorm:"not null;check:quantity > 0" json:"quantity"`
	// unit price after discount at purchase time, never recomputed
	Price decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`

	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderSequence is the single-row counter behind order numbers.
type OrderSequence struct {
	Name  string `gorm:"primaryKey;size:32"`
	Value int64  `gorm:"not null"`
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:191;not null"` // provider transaction id + state
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

type Review struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID string `gorm:"size:64;not null;uniqueIndex:idx_review_product_user"`
	UserID    string `gorm:"size:64;not null;uniqueIndex:idx_review_product_user"`
	Rating    int    `gorm:"not null;check:rating BETWEEN 1 AND 5"`
	Comment   string `gorm:"type:text"`
	Approved  bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
