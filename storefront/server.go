package storefront

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/example/citizenportal/pkg/cart"
	"github.com/example/citizenportal/pkg/checkout"
	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/metrics"
	"github.com/example/citizenportal/pkg/models"
	"github.com/example/citizenportal/pkg/recommend"
	"github.com/example/citizenportal/pkg/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const clientIDHeader = "X-Client-ID"

type Server struct {
	config      *config.Config
	sessions    *session.Registry
	recommender *recommend.Recommender
	logger      *zap.Logger
	router      *gin.Engine
	http        *http.Server
}

func NewServer(cfg *config.Config, sessions *session.Registry, recommender *recommend.Recommender, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(metrics.PrometheusMiddleware("storefront"))

	s := &Server{
		config:      cfg,
		sessions:    sessions,
		recommender: recommender,
		logger:      logger,
		router:      router,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/recommendations", s.recommendations)

		client := api.Group("", requireClientID())
		{
			client.GET("/cart", s.getCart)
			client.POST("/cart/items", s.addItem)
			client.POST("/cart/commands", s.applyCommand)
			client.PATCH("/cart/items/:index", s.changeQuantity)
			client.DELETE("/cart/items/:index", s.removeItem)
			client.DELETE("/cart", s.clearCart)
			client.POST("/checkout", s.checkout)
			client.GET("/receipt", s.receipt)
		}
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.http = &http.Server{Addr: addr, Handler: s.router}
	s.logger.Info("Storefront starting", zap.String("address", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Binding limits mirror models.MaxQuantity and models.MaxUserIDLength.
type addItemRequest struct {
	ProductID string  `json:"product_id" binding:"required"`
	Name      string  `json:"name"`
	Price     float64 `json:"price" binding:"gt=0"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity" binding:"required,min=1,max=999"`
}

type changeQuantityRequest struct {
	Delta int `json:"delta" binding:"required"`
}

type checkoutRequest struct {
	UserID string `json:"user_id" binding:"max=36"`
}

type checkoutResponse struct {
	State   checkout.State      `json:"state"`
	Message string              `json:"message,omitempty"`
	Receipt *models.Receipt     `json:"receipt,omitempty"`
	Cart    models.CartSnapshot `json:"cart"`
}

func (s *Server) getCart(c *gin.Context) {
	snap, err := s.sessions.Cart(clientID(c))
	s.respondCart(c, snap, err)
}

func (s *Server) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := s.sessions.AddItem(clientID(c), models.LineItem{
		ProductID: req.ProductID,
		Name:      req.Name,
		UnitPrice: req.Price,
		ImageRef:  req.Image,
		Quantity:  req.Quantity,
	})
	s.respondCart(c, snap, err)
}

func (s *Server) applyCommand(c *gin.Context) {
	var cmd cart.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := s.sessions.Apply(clientID(c), cmd)
	s.respondCart(c, snap, err)
}

func (s *Server) changeQuantity(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req changeQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := s.sessions.ChangeQuantity(clientID(c), index, req.Delta)
	s.respondCart(c, snap, err)
}

func (s *Server) removeItem(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	snap, err := s.sessions.RemoveItem(clientID(c), index)
	s.respondCart(c, snap, err)
}

func (s *Server) clearCart(c *gin.Context) {
	snap, err := s.sessions.Clear(clientID(c))
	s.respondCart(c, snap, err)
}

func (s *Server) checkout(c *gin.Context) {
	var req checkoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	reply, err := s.sessions.Checkout(clientID(c), req.UserID)
	if err != nil {
		s.logger.Error("Checkout request failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": checkout.MessageTransport})
		return
	}

	res := reply.Result
	c.JSON(checkoutStatus(res), checkoutResponse{
		State:   res.State,
		Message: res.Message,
		Receipt: res.Receipt,
		Cart:    reply.Cart,
	})
}

func (s *Server) receipt(c *gin.Context) {
	r, err := s.sessions.Receipt(clientID(c))
	if err != nil {
		s.logger.Error("Failed to load receipt", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load receipt"})
		return
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no receipt"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) recommendations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.Storefront.RequestTimeout)
	defer cancel()

	entries := s.recommender.Recommend(ctx, c.Query("user_id"))
	c.JSON(http.StatusOK, gin.H{"recommendations": entries})
}

func (s *Server) respondCart(c *gin.Context, snap models.CartSnapshot, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, snap)
	case errors.Is(err, cart.ErrInvalidItem):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": checkout.MessageInProgress, "cart": snap})
	default:
		s.logger.Error("Cart request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update cart"})
	}
}

func checkoutStatus(res checkout.Result) int {
	var rejected *checkout.OrderRejectedError
	switch {
	case res.State == checkout.StateSucceeded:
		return http.StatusOK
	case errors.Is(res.Err, checkout.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(res.Err, checkout.ErrCheckoutInProgress):
		return http.StatusConflict
	case errors.As(res.Err, &rejected):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return 0, false
	}
	return index, true
}

func clientID(c *gin.Context) string {
	return c.GetString(clientIDHeader)
}

func requireClientID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(clientIDHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": clientIDHeader + " header is required"})
			return
		}
		c.Set(clientIDHeader, id)
		c.Next()
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_id", c.GetString(clientIDHeader)),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
