package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"ledgersync/internal/billsplit/splitwise"
	"ledgersync/internal/config"
	"ledgersync/internal/log"
	"ledgersync/internal/services"
	gsheet "ledgersync/internal/sheets/google"
	"ledgersync/internal/storage"
)

// ledgersync runs one full reconciliation pass and prints the dashboard
// manifest. Useful for cron setups and for checking the books by hand.
func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: "ledgersync"})
	log.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Sync failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate configuration: %w", err)
	}
	loc := cfg.Location()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open SQLite repository: %w", err)
	}
	defer repo.Close()

	ctx := context.Background()

	credentials, err := sheetsCredentials(cfg)
	if err != nil {
		return err
	}
	sheetsClient, err := gsheet.NewClient(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		LedgerSheet:     cfg.GoogleLedgerSheet,
		DashboardSheet:  cfg.GoogleDashboardSheet,
		CredentialsJSON: credentials,
	})
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}

	billsClient, err := splitwise.NewClient(splitwise.Config{
		APIURL:    cfg.SplitwiseAPIURL,
		APIKey:    cfg.SplitwiseAPIKey,
		UserID:    cfg.SplitwiseUserID,
		PartnerID: cfg.SplitwisePartnerID,
	})
	if err != nil {
		return fmt.Errorf("initialize bill service client: %w", err)
	}

	reconConfig := services.DefaultReconciliationConfig()
	reconConfig.Location = loc
	recon := services.NewReconciliationEngine(repo, sheetsClient, billsClient,
		logger.WithComponent("recon"), reconConfig)
	dashboard := services.NewDashboardService(repo, sheetsClient, billsClient,
		logger.WithComponent("dashboard"), services.DashboardConfig{Location: loc})

	if err := recon.VerifyAccounts(ctx); err != nil {
		return err
	}
	if err := recon.SyncBillRecords(ctx); err != nil {
		return fmt.Errorf("sync bill records: %w", err)
	}
	if err := recon.SyncLedgerDeltas(ctx); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	metrics, err := dashboard.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh dashboard: %w", err)
	}
	for _, m := range metrics {
		fmt.Printf("%-24s %s\n", m.Measure, m.Value)
	}
	return nil
}

func sheetsCredentials(cfg *config.Config) ([]byte, error) {
	if cfg.GoogleOAuthClientJSON != "" {
		return []byte(cfg.GoogleOAuthClientJSON), nil
	}
	if cfg.GoogleOAuthClientFile != "" {
		return os.ReadFile(cfg.GoogleOAuthClientFile)
	}
	return nil, errors.New("missing spreadsheet credentials (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
}
