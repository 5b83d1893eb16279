// README: DB-backed test helper: connects to FULFIL_TEST_DSN, migrates, truncates.
package testdb

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"fulfil/internal/infra"
)

const truncateAll = `TRUNCATE TABLE deliveries, order_state_events, order_items, orders,
	vouchers, delivery_agents, fulfilment_staff, staff, warehouses,
	cart_items, products, addresses, customers RESTART IDENTITY CASCADE`

// Open skips the test unless FULFIL_TEST_DSN is set.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("FULFIL_TEST_DSN")
	if dsn == "" {
		t.Skip("FULFIL_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := infra.NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := infra.Migrate(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, truncateAll); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

// MustInsert runs an INSERT ... RETURNING id fixture.
func MustInsert(t *testing.T, db *pgxpool.Pool, sql string, args ...any) int64 {
	t.Helper()
	var id int64
	if err := db.QueryRow(context.Background(), sql, args...).Scan(&id); err != nil {
		t.Fatalf("fixture %q: %v", sql, err)
	}
	return id
}
