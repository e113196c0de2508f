package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ricevute/internal/amqp"
	"ricevute/internal/cli"
	"ricevute/internal/core"
	"ricevute/internal/drive"
	apphttp "ricevute/internal/http"
	applog "ricevute/internal/log"
	"ricevute/internal/ocr"
	"ricevute/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger("ricevute", cfg.LogFormat)

	logger.Info("Starting ricevute server", "port", cfg.Port)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// AMQP is optional: without it saved receipts stay pending until the
	// worker's periodic sweep finds them.
	var publisher services.ExportPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, receipts will be exported by the worker sweep", "error", err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	var scanner apphttp.ReceiptScanner
	if cfg.OCRURL != "" {
		scanner = ocr.NewClient(cfg.OCRURL, cfg.OCRAPIKey)
		logger.Info("OCR client initialized", "url", cfg.OCRURL)
	} else {
		logger.Info("OCR disabled - no OCR_URL provided")
	}

	var uploader drive.Uploader
	if cfg.GoogleDriveFolderID != "" {
		driveClient, err := drive.New(context.Background(), cfg.GoogleDriveFolderID)
		if err != nil {
			logger.Error("Failed to initialize Drive client", "error", err)
			os.Exit(1)
		}
		uploader = driveClient
		logger.Info("Drive client initialized", "folder_id", cfg.GoogleDriveFolderID)
	} else {
		logger.Info("Drive backup disabled - no GOOGLE_DRIVE_FOLDER_ID provided")
	}

	receiptService := services.NewReceiptService(sqliteRepo, publisher, cfg.Participants)

	sanitizeCfg := core.SanitizeConfig{
		DefaultTaxRate: cfg.DefaultTaxRate,
		Participants:   cfg.Participants,
	}

	srv := apphttp.NewServer(":"+cfg.Port, receiptService, scanner, uploader, sanitizeCfg)
	srv.Handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(srv.Handler)

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
