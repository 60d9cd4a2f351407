package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ledgersync/internal/amqp"
	"ledgersync/internal/billsplit/splitwise"
	"ledgersync/internal/config"
	"ledgersync/internal/log"
	"ledgersync/internal/services"
	gsheet "ledgersync/internal/sheets/google"
	"ledgersync/internal/storage"
	"ledgersync/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: "ledgersyncd"})
	log.SetDefault(logger)

	logger.Info("Starting ledgersyncd")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	loc := cfg.Location()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			"error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	credentials, err := sheetsCredentials(cfg)
	if err != nil {
		logger.Error("Failed to load spreadsheet credentials", "error", err)
		os.Exit(1)
	}
	sheetsClient, err := gsheet.NewClient(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		LedgerSheet:     cfg.GoogleLedgerSheet,
		DashboardSheet:  cfg.GoogleDashboardSheet,
		CredentialsJSON: credentials,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID)

	billsClient, err := splitwise.NewClient(splitwise.Config{
		APIURL:    cfg.SplitwiseAPIURL,
		APIKey:    cfg.SplitwiseAPIKey,
		UserID:    cfg.SplitwiseUserID,
		PartnerID: cfg.SplitwisePartnerID,
	})
	if err != nil {
		logger.Error("Failed to initialize bill service client", "error", err)
		os.Exit(1)
	}

	reconConfig := services.DefaultReconciliationConfig()
	reconConfig.Location = loc
	recon := services.NewReconciliationEngine(repo, sheetsClient, billsClient,
		logger.WithComponent("recon"), reconConfig)
	dashboard := services.NewDashboardService(repo, sheetsClient, billsClient,
		logger.WithComponent("dashboard"), services.DashboardConfig{Location: loc})

	if err := recon.VerifyAccounts(ctx); err != nil {
		logger.Error("Account verification failed", "error", err)
		os.Exit(1)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	syncWorker := worker.NewSyncWorker(recon, dashboard,
		logger.WithComponent("worker"), worker.Intervals{
			BillSync:   cfg.BillSyncInterval,
			LedgerSync: cfg.LedgerSyncInterval,
			Dashboard:  cfg.DashboardInterval,
		}, cfg.WorkerPoolSize)

	done := make(chan error, 1)
	go func() {
		done <- syncWorker.Start(ctx, amqpClient)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	case err := <-done:
		if err != nil {
			logger.Error("Worker stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := <-done; err != nil {
		logger.Error("Worker shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// sheetsCredentials resolves the spreadsheet credential bytes from either an
// inline JSON blob or a file path.
func sheetsCredentials(cfg *config.Config) ([]byte, error) {
	if cfg.GoogleOAuthClientJSON != "" {
		return []byte(cfg.GoogleOAuthClientJSON), nil
	}
	if cfg.GoogleOAuthClientFile != "" {
		return os.ReadFile(cfg.GoogleOAuthClientFile)
	}
	return nil, errors.New("missing spreadsheet credentials (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
}
