// Package dbtest opens throwaway sqlite databases and seeds fixtures for
// package tests. It must only be imported from _test.go files.
package dbtest

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
)

// Open returns an isolated in-memory database with every model migrated.
// It serves one connection, so transactions never interleave.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	return open(t, fmt.Sprintf("file:rentals_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString()), 1)
}

// OpenConcurrent returns a file-backed WAL database serving up to conns
// connections, so concurrent transactions really overlap. Use it for tests
// where serialization must come from application locks.
func OpenConcurrent(t testing.TB, conns int) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rentals.db")
	return open(t, fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), conns)
}

func open(t testing.TB, dsn string, conns int) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// VariantSpec customizes SeedVariant.
type VariantSpec struct {
	Stock  int
	Status enums.VariantStatus
	Price  string
}

// SeedVariant creates an item with a single variant carrying one price tier.
func SeedVariant(t testing.TB, conn *gorm.DB, spec VariantSpec) (*models.Item, *models.Variant) {
	t.Helper()

	if spec.Status == "" {
		spec.Status = enums.VariantStatusAvailable
	}
	if spec.Price == "" {
		spec.Price = "100"
	}

	item := &models.Item{
		Title:    "Item " + uuid.NewString()[:8],
		Category: "dresses",
		Status:   enums.ItemStatusInStock,
	}
	if err := conn.Create(item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	variant := &models.Variant{
		ItemID:        item.ID,
		Size:          "M",
		Color:         "black",
		StockQuantity: spec.Stock,
		Status:        spec.Status,
		Prices: []models.VariantPrice{{
			Amount:    decimal.RequireFromString(spec.Price),
			Deposit:   decimal.NewFromInt(50),
			PriceType: "daily",
		}},
	}
	if err := conn.Create(variant).Error; err != nil {
		t.Fatalf("create variant: %v", err)
	}
	item.Variants = []models.Variant{*variant}
	return item, variant
}

// SeedClient creates a client with a unique phone number.
func SeedClient(t testing.TB, conn *gorm.DB, discount int) *models.Client {
	t.Helper()

	client := &models.Client{
		GivenName: "Anna",
		Phone:     "+7" + fmt.Sprint(uuid.New().ID()),
		Discount:  discount,
	}
	if err := conn.Create(client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}
