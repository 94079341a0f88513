package main

import (
	"context"
	"fmt"
	"jewelry-checkout/internal/client"
	"jewelry-checkout/internal/config"
	"jewelry-checkout/internal/logger"
	"jewelry-checkout/internal/repository"
	"jewelry-checkout/internal/server"
	"jewelry-checkout/internal/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := client.OpenDatabase(cfg.Database)
	if err != nil {
		return err
	}

	productRepo := repository.NewProductRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	sequenceRepo := repository.NewOrderSequenceRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	ctx := context.Background()
	if err := sequenceRepo.Ensure(ctx, repository.OrderNumberSequence); err != nil {
		return fmt.Errorf("ensure order sequence: %w", err)
	}
	if cfg.Environment.Name == "development" {
		if err := productRepo.Seed(ctx); err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
	}

	tokenCache := client.NewMemoryTokenCache()
	if cfg.Redis.Addr != "" {
		rdb, err := client.InitRedisClient(cfg.Redis, log)
		if err != nil {
			return err
		}
		defer rdb.Close()
		tokenCache = client.NewRedisTokenCache(rdb)
	}

	phonePeClient, err := client.NewPhonePeClient(&cfg.PhonePe, cfg.AppBaseURL, tokenCache, log)
	if err != nil {
		return err
	}

	publisher := client.NewEventPublisher(cfg.Kafka, log)
	defer publisher.Close()

	orderService := service.NewOrderService(db, productRepo, inventoryRepo, orderRepo, sequenceRepo, publisher, log)
	paymentService := service.NewPaymentService(
		db,
		phonePeClient,
		orderService,
		orderRepo,
		webhookEventRepo,
		publisher,
		service.PaymentConfig{
			BrandPrefix: cfg.PhonePe.BrandPrefix,
			RetryMax:    cfg.RetryMax,
		},
		log,
	)
	productService := service.NewProductService(productRepo, inventoryRepo)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.PendingTTL > 0 {
		go sweepStalePayments(sweepCtx, paymentService, cfg.PendingTTL, log)
	}

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(cfg, log, orderService, paymentService, productService)

	log.Info("starting HTTP server", zap.String("addr", serverAddr))
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-sigChan:
		log.Info("signal received, starting graceful shutdown")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// sweepStalePayments runs at a fraction of ttl so an order never waits much
// longer than ttl to be released.
func sweepStalePayments(ctx context.Context, payments service.PaymentService, ttl time.Duration, log *zap.Logger) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := payments.ExpireStalePayments(ctx, ttl); err != nil {
				log.Error("sweep stale payments", zap.Error(err))
			}
		}
	}
}
