package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/metrics"
	"github.com/example/citizenportal/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const adminTokenHeader = "X-Admin-Token"

type CatalogStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
	ListServices(ctx context.Context, category string) ([]models.Service, error)
	GetService(ctx context.Context, id string) (*models.Service, error)
	ListAds(ctx context.Context) ([]models.Ad, error)
}

type EngagementStore interface {
	AppendEngagement(ctx context.Context, event *models.EngagementEvent) error
	ListEngagements(ctx context.Context, userID string) ([]models.EngagementEvent, error)
	EachEngagement(ctx context.Context, fn func(models.EngagementEvent) error) error
	DeleteUserEngagements(ctx context.Context, userID string) (int64, error)
	DeleteEngagementsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ProfileStore interface {
	CreateProfile(ctx context.Context, data map[string]interface{}) (string, error)
	UpdateProfile(ctx context.Context, id string, data map[string]interface{}) error
}

// Store is everything the gateway persists. repository.MongoRepository implements it.
type Store interface {
	CatalogStore
	EngagementStore
	ProfileStore
}

type Gateway struct {
	config *config.Config
	store  Store
	logger *zap.Logger
	router *gin.Engine
	http   *http.Server
	now    func() time.Time
}

func NewGateway(cfg *config.Config, store Store, logger *zap.Logger) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(metrics.PrometheusMiddleware("gateway"))

	return &Gateway{
		config: cfg,
		store:  store,
		logger: logger,
		router: router,
		now:    time.Now,
	}
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	g.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := g.router.Group("/api")
	{
		api.GET("/categories", g.listCategories)
		api.GET("/services", g.listServices)
		api.GET("/service/:id", g.getService)
		api.GET("/ads", g.listAds)

		api.POST("/engagement", g.appendEngagement)
		api.GET("/engagement", g.listEngagements)
		api.POST("/engagement/consent", g.appendEngagementWithConsent)
		api.POST("/user/delete", g.deleteUserData)

		api.POST("/profile/step", g.profileStep)
		api.POST("/ai/search", g.search)

		admin := api.Group("/admin", adminOnly(g.config.Gateway.AdminToken))
		{
			admin.POST("/categories", g.createCategory)
			admin.GET("/export_engagement_csv", g.exportEngagementCSV)
		}
	}

	// Swagger
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.config.Gateway.Addr()
	g.http = &http.Server{Addr: addr, Handler: g.router}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.http == nil {
		return nil
	}
	return g.http.Shutdown(ctx)
}

func (g *Gateway) internalError(c *gin.Context, msg string, err error) {
	g.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// adminOnly rejects requests without the configured admin token. An empty
// token disables the admin routes.
func adminOnly(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.GetHeader(adminTokenHeader) != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
