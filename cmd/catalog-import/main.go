package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/rentals-backend/internal/catalog"
	"github.com/angelmondragon/rentals-backend/internal/catalogimport"
	"github.com/angelmondragon/rentals-backend/pkg/config"
	"github.com/angelmondragon/rentals-backend/pkg/db"
	"github.com/angelmondragon/rentals-backend/pkg/locks"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
	"github.com/angelmondragon/rentals-backend/pkg/migrate"
	"github.com/angelmondragon/rentals-backend/pkg/sheets"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "catalog-import"})
	_ = godotenv.Load()

	spreadsheet := flag.String("spreadsheet", "", "spreadsheet id; defaults to RENTALS_SHEETS_SPREADSHEET_ID")
	stock := flag.Int("stock", 0, "stock per imported size; defaults to RENTALS_SHEETS_STOCK_PER_SIZE")
	dryRun := flag.Bool("dry-run", false, "parse the sheet and log items without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	if id := strings.TrimSpace(*spreadsheet); id != "" {
		cfg.Sheets.SpreadsheetID = id
	}
	if *stock > 0 {
		cfg.Sheets.StockPerSize = *stock
	}
	logg = logger.New(logger.Options{
		ServiceName: "catalog-import",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dryRun": *dryRun})

	if err := run(ctx, cfg, logg, *dryRun); err != nil {
		logg.Error(ctx, "catalog import failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, dryRun bool) error {
	source, err := sheets.NewClient(ctx, cfg.GCP, cfg.Sheets, logg)
	if err != nil {
		return err
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	svc, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), dbClient, locks.NewLocal(cfg.Booking.LockWait))
	if err != nil {
		return err
	}

	report, err := catalogimport.NewImporter(source, svc, logg, catalogimport.Options{
		StockPerSize: cfg.Sheets.StockPerSize,
		DryRun:       dryRun,
	}).Run(ctx)
	fmt.Printf("items=%d variants=%d duplicates=%d skipped=%d\n", report.Items, report.Variants, report.Duplicates, report.Skipped)
	return err
}
