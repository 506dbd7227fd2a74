package migrations_test

import (
	"context"
	"testing"

	"github.com/THuebbe/yardsign/internal/testutil"
	"github.com/THuebbe/yardsign/migrations"
)

func TestApplyIsIdempotent(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()

	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	var n int
	err := pool.QueryRow(ctx, `
SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema = 'public' AND table_name IN
('tenants', 'catalog_items', 'inventory_ledger', 'holds', 'hold_items',
 'orders', 'order_items', 'order_documents', 'order_activities', 'sign_checkins')`).Scan(&n)
	if err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if n != 10 {
		t.Fatalf("expected 10 tables, found %d", n)
	}
}
