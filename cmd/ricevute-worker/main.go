package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"ricevute/internal/amqp"
	"ricevute/internal/cli"
	"ricevute/internal/services"
	"ricevute/internal/sheets"
	gsheet "ricevute/internal/sheets/google"
	mem "ricevute/internal/sheets/memory"
	"ricevute/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger("ricevute-worker", cfg.LogFormat)

	logger.Info("Starting ricevute-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// Export destination: Google Sheets when configured, otherwise an
	// in-memory sheet so local runs still exercise the full pipeline.
	var appender sheets.RowAppender
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		appender = sheetsClient
		logger.Info("Google Sheets client initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		appender = mem.New()
		logger.Warn("No GOOGLE_SPREADSHEET_ID provided, exporting to in-memory sheet")
	}

	processor := services.NewExportProcessor(sqliteRepo, appender, cfg.Participants)
	exportWorker := worker.NewExportWorker(processor, cfg.ExportBatchSize, cfg.ExportInterval)

	// On startup, export anything that was left pending while down
	if err := exportWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup export check failed", "error", err)
		// Don't exit - continue with normal operation
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeReceiptExport(gctx, func(msg *amqp.ReceiptExportMessage) error {
			return exportWorker.HandleExportMessage(gctx, msg)
		})
	})

	g.Go(func() error {
		return exportWorker.RunPendingSweep(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
