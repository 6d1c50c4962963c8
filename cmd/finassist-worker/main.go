package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"finassist/internal/aggregate"
	"finassist/internal/config"
	"finassist/internal/events"
	"finassist/internal/export"
	gsheet "finassist/internal/export/google"
	"finassist/internal/storage"
	"finassist/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting finassist-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if !cfg.SheetsExportEnabled() {
		logger.Error("Worker requires a spreadsheet target - set GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}
	if !cfg.EventsEnabled() {
		logger.Error("Worker requires a broker - set AMQP_URL")
		os.Exit(1)
	}

	store, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sheetsClient, err := gsheet.NewClient(ctx,
		cfg.GoogleSpreadsheetID, cfg.GoogleSheetName,
		cfg.GoogleServiceAccountFile, cfg.GoogleServiceAccountJSON)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	engine := aggregate.NewEngine(store)
	exporter := export.NewExporter(engine, sheetsClient)
	exportWorker := worker.NewExportWorker(store, exporter)

	// On startup, push the current year so a fresh sheet catches up.
	logger.Info("Performing startup export...")
	if err := exportWorker.StartupExport(ctx); err != nil {
		logger.Error("Startup export failed", "error", err)
		// Don't exit - continue with normal operation
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.Consume(gctx, func(event *events.ChangeEvent) error {
			return exportWorker.HandleChangeEvent(gctx, event)
		})
	})

	g.Go(func() error {
		exportWorker.RunPeriodicFlush(gctx, cfg.ExportInterval)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
