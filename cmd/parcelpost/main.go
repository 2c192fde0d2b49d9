package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/parcelpost/parcelpost/internal/app"
	"github.com/parcelpost/parcelpost/internal/export"
	"github.com/parcelpost/parcelpost/internal/invoicing"
	"github.com/parcelpost/parcelpost/internal/masterdata"
	"github.com/parcelpost/parcelpost/internal/notify"
	"github.com/parcelpost/parcelpost/internal/observability"
	"github.com/parcelpost/parcelpost/internal/platform/cache"
	"github.com/parcelpost/parcelpost/internal/platform/db"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	notifier := notify.NewProducer(asynqClient, logger)
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	invoiceRepo := invoicing.NewRepository(pool)
	invoiceService := invoicing.NewService(invoiceRepo, logger, notifier, metrics)
	invoiceHandler := invoicing.NewHandler(logger, invoiceService)

	masterRepo := masterdata.NewRepository(pool)
	masterService := masterdata.NewService(masterRepo, logger)
	masterHandler := masterdata.NewHandler(logger, masterService)

	exportService := export.NewService(invoiceRepo)
	exportHandler := export.NewHandler(logger, exportService)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		InvoicingHandler:  invoiceHandler,
		MasterDataHandler: masterHandler,
		ExportHandler:     exportHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
}
