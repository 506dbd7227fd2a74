package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/THuebbe/yardsign/internal/app"
	"github.com/THuebbe/yardsign/internal/clock"
	"github.com/THuebbe/yardsign/internal/config"
	"github.com/THuebbe/yardsign/internal/docs"
	"github.com/THuebbe/yardsign/internal/events"
	"github.com/THuebbe/yardsign/internal/storage/postgres"
	"github.com/THuebbe/yardsign/internal/tenant"
	transporthttp "github.com/THuebbe/yardsign/internal/transport/http"
	"github.com/THuebbe/yardsign/migrations"
)

const (
	shutdownTimeout = 10 * time.Second
	eventTopic      = "yardsign.orders"
	eventBuffer     = 256
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Environment)
	defer func() { _ = logger.Sync() }()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(startupCtx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.NewSystem()

	tenantRepo := postgres.NewTenantRepository(pool)
	inventoryRepo := postgres.NewInventoryRepository(pool)
	holdRepo := postgres.NewHoldRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	var directory tenant.Directory = tenantRepo
	var tenantOpts []app.TenantServiceOption
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cached := tenant.NewCachedDirectory(tenantRepo, rdb)
		directory = cached
		tenantOpts = append(tenantOpts, app.WithRoutingInvalidator(cached))
		defer func() { _ = rdb.Close() }()
		logger.Info("tenant routing cache enabled", zap.String("addr", cfg.RedisAddr))
	}
	resolver := tenant.NewResolver(directory, cfg.BaseHost)

	orderOpts := []app.OrderServiceOption{app.WithLogger(logger)}
	if cfg.DocServiceURL != "" {
		orderOpts = append(orderOpts, app.WithDocumentGenerator(docs.NewClient(cfg.DocServiceURL)))
		logger.Info("document service enabled", zap.String("url", cfg.DocServiceURL))
	}

	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(cfg.KafkaBrokers, eventTopic, eventBuffer, logger)
		publisher.Start(runCtx)
		orderOpts = append(orderOpts, app.WithEventPublisher(publisher))
		logger.Info("event stream enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	tenantSvc := app.NewTenantService(tenantRepo, clk, tenantOpts...)
	inventorySvc := app.NewInventoryService(inventoryRepo, clk)
	holdSvc := app.NewHoldService(holdRepo, clk, app.WithHoldTTL(cfg.HoldTTL))
	orderSvc := app.NewOrderService(orderRepo, clk, orderOpts...)

	go sweepHolds(runCtx, holdSvc, cfg.SweepInterval, logger)

	router := transporthttp.NewRouter(transporthttp.Config{
		Logger:         logger,
		Resolver:       resolver,
		JWTSecret:      []byte(cfg.JWTSecret),
		AllowedOrigins: cfg.CORSOrigins,
		Services: transporthttp.Services{
			Tenants:   tenantSvc,
			Catalog:   tenantSvc,
			Inventory: inventorySvc,
			Holds:     holdSvc,
			Orders:    orderSvc,
		},
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()
	logger.Info("api listening", zap.String("addr", cfg.HTTPAddr))

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-runCtx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown", zap.Error(err))
	}

	stop()
	if publisher != nil {
		publisher.WaitClosed()
	}
	logger.Info("server stopped")
}

// sweepHolds deactivates expired holds on a fixed interval. Expiry is
// enforced at read time regardless; the sweep keeps the holds table tidy.
func sweepHolds(ctx context.Context, svc *app.HoldService, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.SweepExpired(ctx)
			if err != nil {
				logger.Warn("sweep expired holds", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("swept expired holds", zap.Int64("count", n))
			}
		}
	}
}

func newLogger(environment string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
