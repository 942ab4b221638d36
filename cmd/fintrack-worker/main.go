package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/mailer"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logCfg := applog.DefaultConfig()
	logCfg.Component = applog.ComponentWorker
	if cfg.Production() {
		logCfg = applog.ProductionConfig()
		logCfg.Component = applog.ComponentWorker
	}
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err.Error())
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite repository", applog.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEmailQueue, cfg.AMQPLedgerQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mailWorker := worker.NewMailWorker(mailer.New(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.ClientBaseURL))

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("Consuming email queue", "queue", cfg.AMQPEmailQueue)
		return amqpClient.Consume(ctx, cfg.AMQPEmailQueue, mailWorker.Handle)
	})

	// The ledger archive is optional: without a spreadsheet id the
	// worker only delivers email.
	if cfg.LedgerSpreadsheetID != "" {
		sheetsClient, err := gsheet.New(ctx, cfg.LedgerSpreadsheetID, cfg.LedgerSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err.Error())
			os.Exit(1)
		}
		ledgerWorker := worker.NewLedgerWorker(repo, sheetsClient, amqpClient, cfg.AMQPLedgerQueue, cfg.SyncBatchSize)

		group.Go(func() error {
			logger.Info("Consuming ledger queue", "queue", cfg.AMQPLedgerQueue)
			return amqpClient.Consume(ctx, cfg.AMQPLedgerQueue, ledgerWorker.Handle)
		})
		group.Go(func() error {
			logger.Info("Starting ledger catch-up sweep", "interval", cfg.SyncInterval.String())
			return ledgerWorker.RunCatchUp(ctx, cfg.SyncInterval)
		})
	} else {
		logger.Info("Ledger archive disabled, no LEDGER_SPREADSHEET_ID provided")
	}

	logger.Info("Worker started")
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
