package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/citizenportal/pkg/clients"
	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/discovery"
	"github.com/example/citizenportal/pkg/models"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// OrderClient submits orders to the order service. It implements
// checkout.Submitter: refusals come back as an unsuccessful ack, everything
// else the service or the network does wrong is returned as an error.
type OrderClient struct {
	conn    *grpc.ClientConn
	client  OrderServiceClient
	circuit *clients.CircuitBreaker
	logger  *zap.Logger
}

// DialOrderService resolves the order service through etcd, falling back to
// the configured address, and connects to it.
func DialOrderService(ctx context.Context, cfg *config.Config, disc *discovery.ServiceDiscovery, logger *zap.Logger) (*OrderClient, error) {
	resolveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	target := disc.Resolve(resolveCtx, cfg.Storefront.OrderService, cfg.Storefront.OrderAddr)

	logger.Info("Connecting to order service", zap.String("target", target))

	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to order service: %w", err)
	}

	return NewOrderClient(conn, &cfg.Breaker, logger), nil
}

func NewOrderClient(conn *grpc.ClientConn, breaker *config.BreakerConfig, logger *zap.Logger) *OrderClient {
	return &OrderClient{
		conn:    conn,
		client:  NewOrderServiceClient(conn),
		circuit: clients.NewCircuitBreaker("order-service", "storefront", breaker, logger),
		logger:  logger,
	}
}

func (c *OrderClient) SubmitOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderAck, error) {
	result, err := c.circuit.Execute(func() (interface{}, error) {
		reply, err := c.client.SubmitOrder(ctx, req)
		if err != nil {
			if reason, refused := refusal(err); refused {
				return &models.OrderAck{Success: false, Error: reason}, nil
			}
			return nil, err
		}
		return &models.OrderAck{
			Success:     true,
			OrderID:     reply.OrderID,
			TotalAmount: reply.TotalAmount,
		}, nil
	})
	if err != nil {
		c.logger.Warn("Order submission failed",
			zap.String("idempotency_key", req.IdempotencyKey), zap.Error(err))
		return nil, err
	}
	return result.(*models.OrderAck), nil
}

func (c *OrderClient) GetOrder(ctx context.Context, id string) (*OrderView, error) {
	return c.client.GetOrder(ctx, &GetOrderRequest{ID: id})
}

func (c *OrderClient) Close() error {
	return c.conn.Close()
}

// refusal reports whether err is the service turning the order down, as
// opposed to failing to process it.
func refusal(err error) (string, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return "", false
	}
	switch st.Code() {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists:
		return st.Message(), true
	}
	return "", false
}
