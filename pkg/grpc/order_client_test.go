package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeOrderService struct {
	mu     sync.Mutex
	byKey  map[string]*SubmitOrderReply
	failed error
	calls  int
}

func (f *fakeOrderService) SubmitOrder(_ context.Context, req *models.OrderRequest) (*SubmitOrderReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.failed != nil {
		return nil, f.failed
	}
	if err := validateOrder(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if reply, ok := f.byKey[req.IdempotencyKey]; ok {
		return reply, nil
	}
	reply := &SubmitOrderReply{
		OrderID:     "ord-" + req.IdempotencyKey,
		TotalAmount: orderTotal(req.Items),
		Status:      models.OrderStatusPending,
	}
	f.byKey[req.IdempotencyKey] = reply
	return reply, nil
}

func (f *fakeOrderService) GetOrder(_ context.Context, req *GetOrderRequest) (*OrderView, error) {
	return &OrderView{ID: req.ID, Status: models.OrderStatusPending, Items: []models.OrderItem{}}, nil
}

func (f *fakeOrderService) ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersReply, error) {
	return &ListOrdersReply{}, nil
}

func (f *fakeOrderService) UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*OrderView, error) {
	return nil, status.Error(codes.Unimplemented, "not supported")
}

func newTestClient(t *testing.T, svc OrderServiceServer) *OrderClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterOrderServiceServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	client := NewOrderClient(conn, &config.BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  100,
		FailureRatio: 1,
	}, zap.NewNop())
	t.Cleanup(func() { client.Close() })
	return client
}

func order(key string) *models.OrderRequest {
	return &models.OrderRequest{
		UserID:         "u1",
		Items:          []models.OrderItem{{ProductID: "p1", Name: "Form", UnitPrice: 250, Quantity: 2}},
		TotalAmount:    500,
		PaymentMethod:  models.PaymentMethodCOD,
		IdempotencyKey: key,
	}
}

func TestSubmitOrderRoundTrip(t *testing.T) {
	client := newTestClient(t, &fakeOrderService{byKey: map[string]*SubmitOrderReply{}})

	ack, err := client.SubmitOrder(context.Background(), order("k1"))
	require.NoError(t, err)
	assert.Equal(t, &models.OrderAck{Success: true, OrderID: "ord-k1", TotalAmount: 500}, ack)
}

func TestSubmitOrderSameKeyReturnsSameOrder(t *testing.T) {
	svc := &fakeOrderService{byKey: map[string]*SubmitOrderReply{}}
	client := newTestClient(t, svc)
	ctx := context.Background()

	first, err := client.SubmitOrder(ctx, order("k1"))
	require.NoError(t, err)
	second, err := client.SubmitOrder(ctx, order("k1"))
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, svc.byKey, 1)
}

func TestSubmitOrderRefusalBecomesAck(t *testing.T) {
	client := newTestClient(t, &fakeOrderService{byKey: map[string]*SubmitOrderReply{}})

	req := order("k1")
	req.Items = nil
	ack, err := client.SubmitOrder(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, ack.Success)
	assert.Equal(t, "order must contain at least one item", ack.Error)

	client = newTestClient(t, &fakeOrderService{failed: status.Error(codes.FailedPrecondition, "ordering is closed")})
	ack, err = client.SubmitOrder(context.Background(), order("k2"))
	require.NoError(t, err)
	assert.Equal(t, &models.OrderAck{Success: false, Error: "ordering is closed"}, ack)
}

func TestSubmitOrderServerFailureIsError(t *testing.T) {
	client := newTestClient(t, &fakeOrderService{failed: status.Error(codes.Unavailable, "database down")})

	ack, err := client.SubmitOrder(context.Background(), order("k1"))
	require.Error(t, err)
	assert.Nil(t, ack)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGetOrder(t *testing.T) {
	client := newTestClient(t, &fakeOrderService{byKey: map[string]*SubmitOrderReply{}})

	view, err := client.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", view.ID)
}
