package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func main() {
	// .env is for local development; missing files are fine.
	_ = godotenv.Load()

	cfg := config.Load()

	logCfg := applog.DefaultConfig()
	if cfg.Production() {
		logCfg = applog.ProductionConfig()
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

	// AMQP is optional in development: without it, emails and ledger
	// sync are skipped with a warning per operation.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEmailQueue, cfg.AMQPLedgerQueue)
		if err != nil {
			if cfg.Production() {
				logger.Error("Failed to connect to AMQP", applog.FieldError, err.Error())
				os.Exit(1)
			}
			logger.Warn("AMQP unavailable, email and ledger sync disabled", applog.FieldError, err.Error())
		} else {
			defer amqpClient.Close()
		}
	}

	issuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.AccessTokenTTL)

	reports := services.NewReportService(repo)

	cacheManager := cache.NewManager()
	cacheManager.Register(reports.Cache())
	cacheManager.StartCleanup(10 * time.Minute)
	defer cacheManager.Stop()

	srv := apphttp.NewServer(apphttp.Deps{
		Addr:                  ":" + cfg.Port,
		Issuer:                issuer,
		Auth:                  services.NewAuthService(repo, amqpClient, issuer, cfg.AMQPEmailQueue, cfg.RefreshTokenTTL),
		Users:                 services.NewUserService(repo),
		Categories:            services.NewCategoryService(repo),
		Transactions:          services.NewTransactionService(repo, amqpClient, reports, cfg.AMQPLedgerQueue),
		Reports:               reports,
		Storage:               repo,
		Logger:                logger,
		AllowedOrigins:        cfg.CORSAllowedOrigins,
		AuthRequestsPerMinute: cfg.AuthRequestsPerMinute,
	})

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
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		cancel()
	}()

	logger.Info("Starting fintrack API",
		"port", cfg.Port,
		"env", cfg.Environment,
		slog.Bool("amqp", amqpClient != nil))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
