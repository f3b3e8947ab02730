package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/application/services"
	"github.com/amankrmj01/bakery-payment-service/internal/config"
	"github.com/amankrmj01/bakery-payment-service/internal/infrastructure/gateway"
	"github.com/amankrmj01/bakery-payment-service/internal/infrastructure/orderservice"
	"github.com/amankrmj01/bakery-payment-service/internal/infrastructure/persistence/postgres"
	"github.com/amankrmj01/bakery-payment-service/internal/interfaces/rest/handlers"
	"github.com/amankrmj01/bakery-payment-service/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payment service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	paymentRepo := postgres.NewPaymentRepository(db)
	refundRepo := postgres.NewRefundRepository(db)
	txnRepo := postgres.NewTransactionRepository(db)

	gatewayClient := gateway.NewSimulator(gateway.SimulatorConfig{
		PaymentSuccessRate: cfg.Gateway.PaymentSuccessRate,
		RefundSuccessRate:  cfg.Gateway.RefundSuccessRate,
		CardFeeRate:        decimal.RequireFromString(cfg.Gateway.CardFeeRate),
		CardFeeFixed:       decimal.RequireFromString(cfg.Gateway.CardFeeFixed),
		Seed:               time.Now().UnixNano(),
	}, logger)

	orderClient := orderservice.NewClient(cfg.OrderService.BaseURL, cfg.OrderService.ConnTimeout)

	dispatcher := worker.NewSettlementDispatcher(cfg.Settlement.Workers, cfg.Settlement.QueueSize, logger)

	limits := services.PaymentLimits{
		MinAmount:  decimal.RequireFromString(cfg.Limits.MinAmount),
		MaxAmount:  decimal.RequireFromString(cfg.Limits.MaxAmount),
		DailyLimit: decimal.RequireFromString(cfg.Limits.DailyLimit),
	}

	paymentService := services.NewPaymentService(paymentRepo, txnRepo, gatewayClient, orderClient, dispatcher, limits, logger)
	refundService := services.NewRefundService(refundRepo, paymentRepo, txnRepo, gatewayClient, orderClient, dispatcher, logger)
	txnService := services.NewTransactionService(txnRepo, logger)

	dispatcher.Bind(paymentService, refundService)

	expirationWorker := worker.NewExpirationWorker(
		paymentService,
		cfg.Expiration.Interval,
		cfg.Expiration.BatchSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	dispatcher.Start(workerCtx)
	go expirationWorker.Start(workerCtx)

	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)
	refundHandler := handlers.NewRefundHandler(refundService, paymentService, logger)
	txnHandler := handlers.NewTransactionHandler(txnService, paymentService, logger)
	healthHandler := handlers.NewHealthHandler(db.Pool)

	router := handlers.NewRouter(paymentHandler, refundHandler, txnHandler, healthHandler, logger)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()
	dispatcher.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
