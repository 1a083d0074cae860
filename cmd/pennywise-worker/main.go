package main

import (
	"context"
	"os"
	"time"

	"pennywise/internal/amqp"
	"pennywise/internal/cli"
	"pennywise/internal/log"
	"pennywise/internal/sheets"
	gsheet "pennywise/internal/sheets/google"
	memsheet "pennywise/internal/sheets/memory"
	"pennywise/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting pennywise-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	result := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	var ledger sheets.LedgerWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Google Sheets ledger enabled", log.FieldSpreadsheet, cfg.GoogleSpreadsheetID)
	} else {
		ledger = memsheet.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, keeping ledgers in memory")
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer consumer.Close()

	dispatcher := worker.NewDispatcher(result.Client, ledger, nil, logger)
	runner := worker.NewRunner(consumer, dispatcher.Handle, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := runner.Stop(ctx); err != nil {
			logger.Error("Worker shutdown error", log.FieldError, err)
		}
	})

	if err := runner.Start(ctx); err != nil {
		logger.Error("Failed to start worker", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker started",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	select {
	case <-runner.Done():
		if ctx.Err() == nil {
			logger.Error("Worker stopped unexpectedly", log.FieldError, runner.Err())
			os.Exit(1)
		}
		cli.WaitForShutdown(ctx, done)
	case <-ctx.Done():
		cli.WaitForShutdown(ctx, done)
	}
	logger.Info("Worker stopped gracefully")
}
