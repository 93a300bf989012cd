package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/metrics"
	"github.com/example/citizenportal/pkg/models"
	"github.com/example/citizenportal/pkg/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	idempotencyTTL  = 24 * time.Hour
	defaultPageSize = 20
	maxPageSize     = 100
)

var validStatuses = map[string]bool{
	models.OrderStatusPending:   true,
	models.OrderStatusCompleted: true,
	models.OrderStatusFailed:    true,
	models.OrderStatusCancelled: true,
}

type OrderServer struct {
	db     *gorm.DB
	redis  *repository.RedisRepository
	mongo  *repository.MongoRepository
	logger *zap.Logger
	config *config.Config
	server *grpc.Server
}

func NewOrderServer(cfg *config.Config, logger *zap.Logger) (*OrderServer, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	}

	if err := db.AutoMigrate(&models.Order{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	redisRepo := repository.NewRedisRepository(&cfg.Redis)

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	return &OrderServer{
		db:     db,
		redis:  redisRepo,
		mongo:  mongoRepo,
		logger: logger,
		config: cfg,
	}, nil
}

func (s *OrderServer) Start() error {
	addr := s.config.Server.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.server = grpc.NewServer()
	RegisterOrderServiceServer(s.server, s)
	reflection.Register(s.server)

	s.logger.Info("Order service started", zap.String("address", addr))

	return s.server.Serve(lis)
}

// SubmitOrder places a cash-on-delivery order. A repeated idempotency key
// returns the order created by the first submission instead of a new one.
func (s *OrderServer) SubmitOrder(ctx context.Context, req *models.OrderRequest) (*SubmitOrderReply, error) {
	if err := validateOrder(req); err != nil {
		metrics.OrdersTotal.WithLabelValues("invalid").Inc()
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	total := orderTotal(req.Items)
	if math.Abs(total-req.TotalAmount) > 0.005 {
		s.logger.Warn("Client total differs from recomputed total",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Float64("client_total", req.TotalAmount),
			zap.Float64("total", total))
	}

	orderID := uuid.NewString()
	owner, claimed, err := s.redis.ClaimIdempotencyKey(ctx, req.IdempotencyKey, orderID, idempotencyTTL)
	if err != nil {
		// the unique index on idempotency_key still guards duplicates
		s.logger.Warn("Idempotency claim failed", zap.Error(err))
		claimed = true
	}
	if !claimed {
		return s.replay(ctx, owner, req.IdempotencyKey)
	}

	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to serialize items")
	}

	now := time.Now()
	order := &models.Order{
		ID:             orderID,
		UserID:         req.UserID,
		IdempotencyKey: req.IdempotencyKey,
		Items:          string(itemsJSON),
		TotalAmount:    total,
		PaymentMethod:  req.PaymentMethod,
		Status:         models.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.replay(ctx, "", req.IdempotencyKey)
		}
		s.logger.Error("Failed to create order", zap.Error(err))
		if relErr := s.redis.ReleaseIdempotencyKey(ctx, req.IdempotencyKey); relErr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.Error(relErr))
		}
		metrics.OrdersTotal.WithLabelValues("error").Inc()
		return nil, status.Error(codes.Internal, "failed to create order")
	}

	if err := s.redis.CacheOrder(ctx, &repository.OrderCache{
		ID:          order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
	}); err != nil {
		s.logger.Warn("Failed to cache order", zap.String("order_id", order.ID), zap.Error(err))
	}

	go s.audit("create_order", order.ID, bson.M{
		"user_id":         order.UserID,
		"total_amount":    total,
		"idempotency_key": order.IdempotencyKey,
	})

	metrics.OrdersTotal.WithLabelValues("created").Inc()
	metrics.OrderAmount.Observe(total)

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Float64("total_amount", total))

	return &SubmitOrderReply{OrderID: order.ID, TotalAmount: total, Status: order.Status}, nil
}

// replay answers a duplicate submission with the order stored for its key.
func (s *OrderServer) replay(ctx context.Context, orderID, key string) (*SubmitOrderReply, error) {
	query := s.db.WithContext(ctx)
	if orderID != "" {
		query = query.Where("id = ?", orderID)
	} else {
		query = query.Where("idempotency_key = ?", key)
	}

	var order models.Order
	if err := query.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, status.Error(codes.AlreadyExists, "order with this idempotency key is still being processed")
		}
		return nil, status.Error(codes.Internal, "failed to look up order")
	}

	metrics.OrdersTotal.WithLabelValues("replayed").Inc()
	s.logger.Info("Replaying order for repeated submission",
		zap.String("order_id", order.ID), zap.String("idempotency_key", key))

	return &SubmitOrderReply{OrderID: order.ID, TotalAmount: order.TotalAmount, Status: order.Status}, nil
}

func (s *OrderServer) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderView, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Where("id = ?", req.ID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, status.Error(codes.NotFound, "order not found")
		}
		return nil, status.Error(codes.Internal, "failed to get order")
	}

	view, err := toView(&order)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to parse items")
	}
	return view, nil
}

func (s *OrderServer) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersReply, error) {
	var orders []models.Order
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Order{})
	if req.UserID != "" {
		query = query.Where("user_id = ?", req.UserID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, status.Error(codes.Internal, "failed to count orders")
	}

	offset, limit := pageBounds(req.Page, req.PageSize)
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, status.Error(codes.Internal, "failed to list orders")
	}

	views := make([]*OrderView, 0, len(orders))
	for i := range orders {
		view, err := toView(&orders[i])
		if err != nil {
			s.logger.Warn("Failed to parse items for order", zap.String("order_id", orders[i].ID), zap.Error(err))
			continue
		}
		views = append(views, view)
	}

	return &ListOrdersReply{Orders: views, Total: total}, nil
}

func (s *OrderServer) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderView, error) {
	if !validStatuses[req.Status] {
		return nil, status.Errorf(codes.InvalidArgument, "unknown status %q", req.Status)
	}

	var order models.Order
	if err := s.db.WithContext(ctx).Where("id = ?", req.OrderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, status.Error(codes.NotFound, "order not found")
		}
		return nil, status.Error(codes.Internal, "failed to update order")
	}

	updates := map[string]interface{}{
		"status":     req.Status,
		"updated_at": time.Now(),
	}
	if err := s.db.WithContext(ctx).Model(&order).Updates(updates).Error; err != nil {
		return nil, status.Error(codes.Internal, "failed to update order")
	}

	if err := s.redis.InvalidateOrder(ctx, req.OrderID); err != nil {
		s.logger.Warn("Failed to invalidate order cache", zap.String("order_id", req.OrderID), zap.Error(err))
	}

	go s.audit("update_order_status", order.ID, bson.M{"status": req.Status})

	order.Status = req.Status
	view, err := toView(&order)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to parse items")
	}
	return view, nil
}

func (s *OrderServer) audit(action, orderID string, data bson.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.mongo.CreateAuditLog(ctx, &repository.AuditLog{
		Service:  s.config.Server.Name,
		Action:   action,
		EntityID: orderID,
		Data:     data,
	}); err != nil {
		s.logger.Warn("Failed to write audit log", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *OrderServer) Stop() {
	if s.server != nil {
		s.server.GracefulStop()
	}
}

func (s *OrderServer) Close() error {
	s.redis.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.mongo.Close(ctx)
}

func (s *OrderServer) Redis() *repository.RedisRepository {
	return s.redis
}

// validateOrder performs fail-fast validation
func validateOrder(req *models.OrderRequest) error {
	if req.IdempotencyKey == "" {
		return fmt.Errorf("idempotency key is required")
	}
	if req.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if len(req.UserID) > models.MaxUserIDLength {
		return fmt.Errorf("user id must be at most %d characters", models.MaxUserIDLength)
	}
	if req.PaymentMethod != models.PaymentMethodCOD {
		return fmt.Errorf("unsupported payment method %q", req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("order must contain at least one item")
	}

	for i, item := range req.Items {
		if item.ProductID == "" {
			return fmt.Errorf("item %d: product id is required", i)
		}
		if item.Quantity <= 0 || item.Quantity > models.MaxQuantity {
			return fmt.Errorf("item %d: quantity must be between 1 and %d", i, models.MaxQuantity)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("item %d: price must not be negative", i)
		}
	}

	return nil
}

func orderTotal(items []models.OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += float64(item.Quantity) * item.UnitPrice
	}
	return math.Round(total*100) / 100
}

func pageBounds(page, size int32) (offset, limit int) {
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return int(page-1) * int(size), int(size)
}

func toView(order *models.Order) (*OrderView, error) {
	items := []models.OrderItem{}
	if order.Items != "" {
		if err := json.Unmarshal([]byte(order.Items), &items); err != nil {
			return nil, err
		}
	}

	return &OrderView{
		ID:            order.ID,
		UserID:        order.UserID,
		Items:         items,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		CreatedAt:     order.CreatedAt.Unix(),
		UpdatedAt:     order.UpdatedAt.Unix(),
	}, nil
}
