package grpc

import (
	"strings"
	"testing"
	"time"

	"github.com/example/citizenportal/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOrder(t *testing.T) {
	valid := func() *models.OrderRequest { return order("k1") }

	require.NoError(t, validateOrder(valid()))

	tests := []struct {
		name   string
		mutate func(*models.OrderRequest)
		want   string
	}{
		{"missing key", func(r *models.OrderRequest) { r.IdempotencyKey = "" }, "idempotency key is required"},
		{"missing user", func(r *models.OrderRequest) { r.UserID = "" }, "user id is required"},
		{"card payment", func(r *models.OrderRequest) { r.PaymentMethod = "card" }, `unsupported payment method "card"`},
		{"no items", func(r *models.OrderRequest) { r.Items = nil }, "order must contain at least one item"},
		{"no product", func(r *models.OrderRequest) { r.Items[0].ProductID = "" }, "item 0: product id is required"},
		{"long user", func(r *models.OrderRequest) { r.UserID = strings.Repeat("u", 37) }, "user id must be at most 36 characters"},
		{"zero quantity", func(r *models.OrderRequest) { r.Items[0].Quantity = 0 }, "item 0: quantity must be between 1 and 999"},
		{"huge quantity", func(r *models.OrderRequest) { r.Items[0].Quantity = 4294967297 }, "item 0: quantity must be between 1 and 999"},
		{"negative price", func(r *models.OrderRequest) { r.Items[0].UnitPrice = -1 }, "item 0: price must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			err := validateOrder(req)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestOrderTotal(t *testing.T) {
	items := []models.OrderItem{
		{ProductID: "a", UnitPrice: 0.1, Quantity: 3},
		{ProductID: "b", UnitPrice: 19.99, Quantity: 2},
	}
	assert.Equal(t, 40.28, orderTotal(items))
}

func TestPageBounds(t *testing.T) {
	offset, limit := pageBounds(0, 0)
	assert.Equal(t, 0, offset)
	assert.Equal(t, defaultPageSize, limit)

	offset, limit = pageBounds(3, 10)
	assert.Equal(t, 20, offset)
	assert.Equal(t, 10, limit)

	_, limit = pageBounds(1, 1000)
	assert.Equal(t, maxPageSize, limit)
}

func TestToView(t *testing.T) {
	created := time.Unix(1700000000, 0)
	view, err := toView(&models.Order{
		ID:            "ord-1",
		UserID:        "u1",
		Items:         `[{"product_id":"p1","name":"Form","price":250,"quantity":2}]`,
		TotalAmount:   500,
		PaymentMethod: models.PaymentMethodCOD,
		Status:        models.OrderStatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	})
	require.NoError(t, err)
	assert.Equal(t, []models.OrderItem{{ProductID: "p1", Name: "Form", UnitPrice: 250, Quantity: 2}}, view.Items)
	assert.Equal(t, int64(1700000000), view.CreatedAt)

	_, err = toView(&models.Order{Items: "not json"})
	assert.Error(t, err)
}
