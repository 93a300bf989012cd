package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/discovery"
	"github.com/example/citizenportal/pkg/grpc"
	"github.com/example/citizenportal/pkg/logging"
	"go.uber.org/zap"
)

const deregisterTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config/order-config.yaml", "path to the order service config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := logging.New(&cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Order service failed", zap.Error(err))
	}
}

// run serves orders until a shutdown signal arrives or the gRPC server fails.
// The instance stays registered in etcd only while it is serving.
func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting order service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	server, err := grpc.NewOrderServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("create order server: %w", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Redis().Ping(ctx); err != nil {
		logger.Warn("Redis unreachable, idempotency falls back to the database index", zap.Error(err))
	}

	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger)
	if err != nil {
		return fmt.Errorf("connect to etcd: %w", err)
	}
	defer sd.Close()

	self := &discovery.ServiceInstance{Name: cfg.Server.Name, Host: cfg.Server.Host, Port: cfg.Server.Port}
	if err := sd.Register(ctx, self); err != nil {
		return fmt.Errorf("register %s: %w", self.Name, err)
	}
	logger.Info("Registered order service", zap.String("address", self.Addr()))

	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), deregisterTimeout)
		defer cancel()
		if err := sd.Deregister(dctx, self); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
	}()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down order service")
		server.Stop()
		return nil
	case err := <-serveErr:
		return err
	}
}
