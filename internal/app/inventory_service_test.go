package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/THuebbe/yardsign/internal/clock"
	"github.com/THuebbe/yardsign/internal/domain"
)

func TestInventoryService_AddStock(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("creates a row for a new item", func(t *testing.T) {
		repo := newFakeInventoryRepo()
		repo.items["item-1"] = domain.CatalogItem{ID: "item-1"}
		svc := NewInventoryService(repo, clock.NewFixed(now))

		row, err := svc.AddStock(context.Background(), testScope, "item-1", 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if row.Quantity != 10 || row.Available != 10 || row.Allocated != 0 || row.Deployed != 0 {
			t.Fatalf("unexpected row counters: %+v", row)
		}
		if row.UpdatedAt != now {
			t.Fatalf("expected updated_at %v, got %v", now, row.UpdatedAt)
		}
	})

	t.Run("grows an existing row", func(t *testing.T) {
		repo := newFakeInventoryRepo()
		repo.items["item-1"] = domain.CatalogItem{ID: "item-1"}
		repo.rows["row-1"] = domain.LedgerRow{ID: "row-1", TenantID: "tenant-1", ItemID: "item-1", Quantity: 5, Available: 3, Allocated: 2}
		svc := NewInventoryService(repo, clock.NewFixed(now))

		row, err := svc.AddStock(context.Background(), testScope, "item-1", 4)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if row.Quantity != 9 || row.Available != 7 || row.Allocated != 2 {
			t.Fatalf("unexpected row counters: %+v", row)
		}
		if got := repo.rows["row-1"]; got.Quantity != 9 {
			t.Fatalf("row not persisted: %+v", got)
		}
	})

	t.Run("rejects unknown catalog items", func(t *testing.T) {
		repo := newFakeInventoryRepo()
		svc := NewInventoryService(repo, clock.NewFixed(now))

		if _, err := svc.AddStock(context.Background(), testScope, "nope", 1); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})

	t.Run("rejects non-positive quantities", func(t *testing.T) {
		svc := NewInventoryService(newFakeInventoryRepo(), clock.NewFixed(now))

		for _, qty := range []int{0, -3} {
			if _, err := svc.AddStock(context.Background(), testScope, "item-1", qty); err != domain.ErrInvalidQuantity {
				t.Fatalf("qty %d: expected ErrInvalidQuantity, got %v", qty, err)
			}
		}
	})

	t.Run("viewer cannot add stock", func(t *testing.T) {
		svc := NewInventoryService(newFakeInventoryRepo(), clock.NewFixed(now))
		viewer := Scope{TenantID: "tenant-1", ActorID: "v", Role: domain.RoleViewer}

		if _, err := svc.AddStock(context.Background(), viewer, "item-1", 1); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestInventoryService_SetTotalQuantity(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("rebases total and recomputes available", func(t *testing.T) {
		repo := newFakeInventoryRepo()
		repo.rows["row-1"] = domain.LedgerRow{ID: "row-1", TenantID: "tenant-1", ItemID: "item-1", Quantity: 10, Available: 6, Allocated: 3, Deployed: 1}
		svc := NewInventoryService(repo, clock.NewFixed(now))

		row, err := svc.SetTotalQuantity(context.Background(), testScope, "row-1", 7)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if row.Quantity != 7 || row.Available != 3 || row.Allocated != 3 || row.Deployed != 1 {
			t.Fatalf("unexpected row counters: %+v", row)
		}
	})

	t.Run("refuses to drop below committed stock", func(t *testing.T) {
		repo := newFakeInventoryRepo()
		repo.rows["row-1"] = domain.LedgerRow{ID: "row-1", TenantID: "tenant-1", ItemID: "item-1", Quantity: 10, Available: 6, Allocated: 3, Deployed: 1}
		svc := NewInventoryService(repo, clock.NewFixed(now))

		_, err := svc.SetTotalQuantity(context.Background(), testScope, "row-1", 3)
		if !errors.Is(err, domain.ErrStockCommitted) {
			t.Fatalf("expected ErrStockCommitted, got %v", err)
		}
		if got := repo.rows["row-1"]; got.Quantity != 10 {
			t.Fatalf("row mutated on failure: %+v", got)
		}
	})

	t.Run("unknown row", func(t *testing.T) {
		svc := NewInventoryService(newFakeInventoryRepo(), clock.NewFixed(now))

		if _, err := svc.SetTotalQuantity(context.Background(), testScope, "nope", 5); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})
}

func TestInventoryService_RemoveRow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("removes an uncommitted row", func(t *testing.T) {
		repo := newFakeInventoryRepo()
		repo.rows["row-1"] = domain.LedgerRow{ID: "row-1", TenantID: "tenant-1", ItemID: "item-1", Quantity: 4, Available: 4}
		svc := NewInventoryService(repo, clock.NewFixed(now))

		if err := svc.RemoveRow(context.Background(), testScope, "row-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := repo.rows["row-1"]; ok {
			t.Fatalf("row should be gone")
		}
	})

	t.Run("refuses rows with committed stock", func(t *testing.T) {
		repo := newFakeInventoryRepo()
		repo.rows["row-1"] = domain.LedgerRow{ID: "row-1", TenantID: "tenant-1", ItemID: "item-1", Quantity: 4, Available: 2, Allocated: 2}
		svc := NewInventoryService(repo, clock.NewFixed(now))

		if err := svc.RemoveRow(context.Background(), testScope, "row-1"); !errors.Is(err, domain.ErrRowInUse) {
			t.Fatalf("expected ErrRowInUse, got %v", err)
		}
	})
}

func TestInventoryService_CheckBulkAvailability(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	from := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)

	t.Run("window math uses totals minus committed", func(t *testing.T) {
		repo := newFakeInventoryRepo()
		repo.totals["item-1"] = 10
		repo.totals["item-2"] = 5
		repo.committed["item-1"] = 4
		repo.committed["item-2"] = 5
		svc := NewInventoryService(repo, clock.NewFixed(now))

		report, err := svc.CheckBulkAvailability(context.Background(), testScope, []AvailabilityRequest{
			{ItemID: "item-1", Quantity: 6},
			{ItemID: "item-2", Quantity: 1},
		}, from, from)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.AllAvailable {
			t.Fatalf("expected AllAvailable false")
		}
		if !report.Items[0].OK || report.Items[0].Available != 6 {
			t.Fatalf("item-1 verdict wrong: %+v", report.Items[0])
		}
		if report.Items[1].OK || report.Items[1].Available != 0 {
			t.Fatalf("item-2 verdict wrong: %+v", report.Items[1])
		}
	})

	t.Run("oversold windows clamp to zero", func(t *testing.T) {
		repo := newFakeInventoryRepo()
		repo.totals["item-1"] = 3
		repo.committed["item-1"] = 5
		svc := NewInventoryService(repo, clock.NewFixed(now))

		report, err := svc.CheckBulkAvailability(context.Background(), testScope, []AvailabilityRequest{{ItemID: "item-1", Quantity: 1}}, from, from)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.Items[0].Available != 0 {
			t.Fatalf("expected available clamped to 0, got %d", report.Items[0].Available)
		}
	})

	t.Run("validates the request", func(t *testing.T) {
		svc := NewInventoryService(newFakeInventoryRepo(), clock.NewFixed(now))

		if _, err := svc.CheckBulkAvailability(context.Background(), testScope, nil, from, from); err != domain.ErrNoItems {
			t.Fatalf("expected ErrNoItems, got %v", err)
		}
		_, err := svc.CheckBulkAvailability(context.Background(), testScope, []AvailabilityRequest{{ItemID: "item-1", Quantity: 0}}, from, from)
		if err != domain.ErrInvalidQuantity {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})
}

type fakeInventoryRepo struct {
	items     map[string]domain.CatalogItem
	rows      map[string]domain.LedgerRow
	totals    map[string]int
	committed map[string]int
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{
		items:     make(map[string]domain.CatalogItem),
		rows:      make(map[string]domain.LedgerRow),
		totals:    make(map[string]int),
		committed: make(map[string]int),
	}
}

func (f *fakeInventoryRepo) WithTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeInventoryRepo) WithReadTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeInventoryRepo) GetItem(_ context.Context, _, itemID string) (domain.CatalogItem, error) {
	item, ok := f.items[itemID]
	if !ok {
		return domain.CatalogItem{}, domain.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeInventoryRepo) GetRowForUpdate(_ context.Context, tenantID, rowID string) (domain.LedgerRow, error) {
	row, ok := f.rows[rowID]
	if !ok || row.TenantID != tenantID {
		return domain.LedgerRow{}, domain.ErrRowNotFound
	}
	return row, nil
}

func (f *fakeInventoryRepo) GetRowByItemForUpdate(_ context.Context, tenantID, itemID string) (domain.LedgerRow, error) {
	for _, row := range f.rows {
		if row.TenantID == tenantID && row.ItemID == itemID {
			return row, nil
		}
	}
	// Wrapped so callers comparing with == instead of errors.Is fail here.
	return domain.LedgerRow{}, fmt.Errorf("ledger row for item %s: %w", itemID, domain.ErrRowNotFound)
}

func (f *fakeInventoryRepo) CreateRow(_ context.Context, row domain.LedgerRow) error {
	f.rows[row.ID] = row
	return nil
}

func (f *fakeInventoryRepo) SaveRow(_ context.Context, row domain.LedgerRow) error {
	if _, ok := f.rows[row.ID]; !ok {
		return domain.ErrRowNotFound
	}
	f.rows[row.ID] = row
	return nil
}

func (f *fakeInventoryRepo) DeleteRow(_ context.Context, _, rowID string) error {
	delete(f.rows, rowID)
	return nil
}

func (f *fakeInventoryRepo) ListRows(_ context.Context, tenantID string) ([]domain.LedgerRow, error) {
	var out []domain.LedgerRow
	for _, row := range f.rows {
		if row.TenantID == tenantID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeInventoryRepo) LedgerTotals(_ context.Context, _ string, itemIDs []string) (map[string]int, error) {
	out := make(map[string]int)
	for _, id := range itemIDs {
		out[id] = f.totals[id]
	}
	return out, nil
}

func (f *fakeInventoryRepo) CommittedInWindow(_ context.Context, _ string, itemIDs []string, _, _ time.Time) (map[string]int, error) {
	out := make(map[string]int)
	for _, id := range itemIDs {
		out[id] = f.committed[id]
	}
	return out, nil
}
