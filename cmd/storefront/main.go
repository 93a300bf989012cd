package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/citizenportal/pkg/clients"
	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/discovery"
	"github.com/example/citizenportal/pkg/grpc"
	"github.com/example/citizenportal/pkg/logging"
	"github.com/example/citizenportal/pkg/recommend"
	"github.com/example/citizenportal/pkg/repository"
	"github.com/example/citizenportal/pkg/session"
	"github.com/example/citizenportal/storefront"
	"go.uber.org/zap"
)

func main() {
	// Load config
	cfg, err := config.Load("config/storefront.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(&cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting storefront",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	ctx := context.Background()

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()
	if err := redisRepo.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed", zap.Error(err))
	}
	store := repository.NewClientStateStore(redisRepo, cfg.Storefront.ReceiptTTL)

	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger)
	if err != nil {
		logger.Warn("Failed to connect to etcd, using configured addresses", zap.Error(err))
	}
	if sd != nil {
		defer sd.Close()
	}

	orders, err := grpc.DialOrderService(ctx, cfg, sd, logger.Named("order-client"))
	if err != nil {
		logger.Fatal("Failed to create order client", zap.Error(err))
	}
	defer orders.Close()

	portal := clients.NewPortalClient(cfg.Storefront.PortalURL, cfg.Storefront.RequestTimeout, &cfg.Breaker, logger.Named("portal-client"))
	recommender := recommend.NewRecommender(portal, portal, cfg.Recommend.Limit, logger.Named("recommend"))

	system := actor.NewActorSystem()
	sessions := session.NewRegistry(system, store, orders, session.Options{
		RequestTimeout: cfg.Storefront.RequestTimeout,
		SubmitTimeout:  cfg.Checkout.SubmitTimeout,
		IdleTimeout:    cfg.Storefront.SessionIdle,
	}, logger)

	srv := storefront.NewServer(cfg, sessions, recommender, logger)

	srvErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			srvErr <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-srvErr:
		logger.Fatal("Storefront error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Storefront shutdown failed", zap.Error(err))
	}
	sessions.Shutdown()

	logger.Info("Storefront stopped")
}
