// Package testutil builds the fixtures shared by package tests.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

// Postgres connects to TEST_DATABASE_URL, applies migrations and empties
// every table. Tests are skipped when the variable is unset.
func Postgres(t testing.TB) *database.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skipf("TEST_DATABASE_URL not set; skipping Postgres test")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, dsn, 10)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(ctx, db.DB); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	_, err = db.ExecContext(ctx, `
		TRUNCATE outbox_messages, reconciliation_entries, loyalty_entries, loyalty_accounts,
		         sale_payments, sale_items, sales, sessions, idempotency_records,
		         reservations, inventory_records, locations, products, users`)
	if err != nil {
		t.Fatalf("truncate test database: %v", err)
	}
	return db
}
