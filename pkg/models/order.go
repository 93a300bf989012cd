package models

import (
	"time"
)

// Order status values.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
	OrderStatusCancelled = "cancelled"
)

// PaymentMethodCOD is cash on delivery, the only payment method the storefront offers.
const PaymentMethodCOD = "cod"

// GuestUserID is used for orders placed without an established profile.
const GuestUserID = "guest"

// MaxUserIDLength matches the width of orders.user_id.
const MaxUserIDLength = 36

type Order struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID         string     `gorm:"type:varchar(36);not null;index" json:"user_id"`
	IdempotencyKey string     `gorm:"type:varchar(36);uniqueIndex" json:"idempotency_key"`
	Items          string     `gorm:"type:text" json:"items"` // JSON string
	TotalAmount    float64    `gorm:"type:decimal(12,2)" json:"total_amount"`
	PaymentMethod  string     `gorm:"type:varchar(16);default:'cod'" json:"payment_method"`
	Status         string     `gorm:"type:varchar(20);default:'pending'" json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `gorm:"index" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// OrderRequest is what a client submits at checkout.
type OrderRequest struct {
	UserID         string      `json:"user_id"`
	Items          []OrderItem `json:"items"`
	TotalAmount    float64     `json:"total_amount"`
	PaymentMethod  string      `json:"payment_method"`
	IdempotencyKey string      `json:"idempotency_key"`
}

// OrderAck is the order service's answer to a submission.
type OrderAck struct {
	Success     bool    `json:"success"`
	OrderID     string  `json:"order_id"`
	TotalAmount float64 `json:"total_amount"`
	Error       string  `json:"error,omitempty"`
}

// Receipt is kept by the client after a successful checkout.
type Receipt struct {
	OrderID       string  `json:"order_id"`
	TotalAmount   float64 `json:"total_amount"`
	PaymentStatus string  `json:"payment_status"`
}
