package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/rentals-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no migration matching %s", pattern)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestReservationMigrationGuardsWindows(t *testing.T) {
	content := readMigration(t, "*_create_reservation_tables.sql")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS order_lines",
		"CREATE TABLE IF NOT EXISTS maintenance_holds",
		"CHECK (start_date < end_date)",
		"CHECK (quantity >= 1)",
		"WHERE status IN ('booked', 'issued')",
		"DROP TABLE IF EXISTS orders",
	}
	for _, sub := range checks {
		assert.Contains(t, content, sub)
	}
}

func TestCatalogMigrationKeepsStockNonNegative(t *testing.T) {
	content := readMigration(t, "*_create_catalog_tables.sql")
	assert.Contains(t, content, "CHECK (stock_quantity >= 0)")
	assert.Contains(t, content, "CONSTRAINT items_title_key UNIQUE (title)")
	assert.Contains(t, content, "CREATE TABLE IF NOT EXISTS variant_prices")
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("bad-name.sql", "-- +goose Up\n-- +goose Down\n")
	write("20250101000000_missing_down.sql", "-- +goose Up\n")
	write("20250101000000_duplicate.sql", "-- +goose Up\n-- +goose Down\n")

	err := migrate.ValidateDir(dir)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
	assert.True(t, strings.Contains(err.Error(), "bad-name.sql"))
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Variant Notes")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_variant_notes.sql"))
	require.NoError(t, migrate.ValidateDir(dir))
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, "sqlite3", migrate.DialectFor("SQLite"))
	assert.Equal(t, "postgres", migrate.DialectFor("postgres"))
	assert.Equal(t, "postgres", migrate.DialectFor(""))
}
