package grpc

import "github.com/example/citizenportal/pkg/models"

type SubmitOrderReply struct {
	OrderID     string  `json:"order_id"`
	TotalAmount float64 `json:"total_amount"`
	Status      string  `json:"status"`
}

type GetOrderRequest struct {
	ID string `json:"id"`
}

type ListOrdersRequest struct {
	UserID   string `json:"user_id"`
	Page     int32  `json:"page"`
	PageSize int32  `json:"page_size"`
}

type ListOrdersReply struct {
	Orders []*OrderView `json:"orders"`
	Total  int64        `json:"total"`
}

type UpdateOrderStatusRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// OrderView is an order as returned to callers, with its items decoded.
type OrderView struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Items         []models.OrderItem `json:"items"`
	TotalAmount   float64            `json:"total_amount"`
	PaymentMethod string             `json:"payment_method"`
	Status        string             `json:"status"`
	CreatedAt     int64              `json:"created_at"`
	UpdatedAt     int64              `json:"updated_at"`
}
