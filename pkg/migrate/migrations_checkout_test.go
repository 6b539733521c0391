package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Kowshalya-Eswar/agrofarm/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestOrdersMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_create_orders_tables.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"reference        TEXT PRIMARY KEY",
		"CREATE TABLE IF NOT EXISTS order_line_items",
		"CREATE INDEX IF NOT EXISTS idx_orders_status",
		"ON DELETE CASCADE",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProductsMigrationGuardsStock(t *testing.T) {
	content := readMigration(t, "*_create_products_table.sql")

	// Negative stock must be impossible at the schema level; the conditional
	// decrement depends on it.
	if !strings.Contains(content, "CHECK (stock >= 0)") {
		t.Fatalf("products migration missing stock check constraint")
	}
}

func TestPaymentsMigrationDeduplicatesProviderRef(t *testing.T) {
	content := readMigration(t, "*_create_payments_table.sql")

	if !strings.Contains(content, "CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_provider_ref") {
		t.Fatalf("payments migration missing unique provider_ref index")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matches %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
