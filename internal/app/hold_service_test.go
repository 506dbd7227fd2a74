package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/THuebbe/yardsign/internal/clock"
	"github.com/THuebbe/yardsign/internal/domain"
)

var testScope = Scope{TenantID: "tenant-1", ActorID: "actor-1", Role: domain.RoleManager}

func TestHoldService_CreateHold(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eventDate := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	ttl := 15 * time.Minute

	makeSvc := func(repo *fakeHoldRepo) *HoldService {
		return NewHoldService(repo, clock.NewFixed(now), WithHoldTTL(ttl))
	}

	t.Run("creates hold with locked prices and ttl", func(t *testing.T) {
		repo := newFakeHoldRepo()
		repo.items["item-1"] = domain.CatalogItem{ID: "item-1", UnitPriceCents: 1500}
		repo.items["item-2"] = domain.CatalogItem{ID: "item-2", UnitPriceCents: 900}
		repo.totals["item-1"] = 10
		repo.totals["item-2"] = 5
		svc := makeSvc(repo)

		hold, items, err := svc.CreateHold(context.Background(), testScope, CreateHoldInput{
			Lines:     []HoldLine{{ItemID: "item-1", Quantity: 3}, {ItemID: "item-2", Quantity: 2}},
			EventDate: eventDate,
			SessionID: "sess-1",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if hold.ID == "" || !hold.Active {
			t.Fatalf("expected an active hold with an id, got %+v", hold)
		}
		if hold.ExpiresAt != now.Add(ttl) {
			t.Fatalf("expected expires_at %v, got %v", now.Add(ttl), hold.ExpiresAt)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 hold items, got %d", len(items))
		}
		if items[0].UnitPriceCents != 1500 || items[1].UnitPriceCents != 900 {
			t.Fatalf("expected locked unit prices, got %+v", items)
		}
		if len(repo.holds) != 1 {
			t.Fatalf("expected 1 hold persisted, got %d", len(repo.holds))
		}
	})

	t.Run("holds do not touch ledger counters", func(t *testing.T) {
		repo := newFakeHoldRepo()
		repo.items["item-1"] = domain.CatalogItem{ID: "item-1", UnitPriceCents: 1500}
		repo.totals["item-1"] = 10
		svc := makeSvc(repo)

		_, _, err := svc.CreateHold(context.Background(), testScope, CreateHoldInput{
			Lines:     []HoldLine{{ItemID: "item-1", Quantity: 3}},
			EventDate: eventDate,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if repo.totals["item-1"] != 10 {
			t.Fatalf("ledger total changed by hold creation")
		}
	})

	t.Run("rejects unknown items", func(t *testing.T) {
		repo := newFakeHoldRepo()
		svc := makeSvc(repo)

		_, _, err := svc.CreateHold(context.Background(), testScope, CreateHoldInput{
			Lines:     []HoldLine{{ItemID: "nope", Quantity: 1}},
			EventDate: eventDate,
		})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})

	t.Run("rejects when committed orders eat the window", func(t *testing.T) {
		repo := newFakeHoldRepo()
		repo.items["item-1"] = domain.CatalogItem{ID: "item-1", UnitPriceCents: 1500}
		repo.totals["item-1"] = 10
		repo.committed["item-1"] = 8
		svc := makeSvc(repo)

		_, _, err := svc.CreateHold(context.Background(), testScope, CreateHoldInput{
			Lines:     []HoldLine{{ItemID: "item-1", Quantity: 3}},
			EventDate: eventDate,
		})
		if !errors.Is(err, domain.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		if len(repo.holds) != 0 {
			t.Fatalf("no hold should persist on failure")
		}
	})

	t.Run("live holds count against the window", func(t *testing.T) {
		repo := newFakeHoldRepo()
		repo.items["item-1"] = domain.CatalogItem{ID: "item-1", UnitPriceCents: 1500}
		repo.totals["item-1"] = 10
		repo.held["item-1"] = 9
		svc := makeSvc(repo)

		_, _, err := svc.CreateHold(context.Background(), testScope, CreateHoldInput{
			Lines:     []HoldLine{{ItemID: "item-1", Quantity: 2}},
			EventDate: eventDate,
		})
		if !errors.Is(err, domain.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("rejects empty and invalid lines", func(t *testing.T) {
		svc := makeSvc(newFakeHoldRepo())

		if _, _, err := svc.CreateHold(context.Background(), testScope, CreateHoldInput{EventDate: eventDate}); err != domain.ErrNoItems {
			t.Fatalf("expected ErrNoItems, got %v", err)
		}
		_, _, err := svc.CreateHold(context.Background(), testScope, CreateHoldInput{
			Lines:     []HoldLine{{ItemID: "item-1", Quantity: 0}},
			EventDate: eventDate,
		})
		if err != domain.ErrInvalidQuantity {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})

	t.Run("viewer cannot create holds", func(t *testing.T) {
		svc := makeSvc(newFakeHoldRepo())
		viewer := Scope{TenantID: "tenant-1", ActorID: "v", Role: domain.RoleViewer}

		_, _, err := svc.CreateHold(context.Background(), viewer, CreateHoldInput{
			Lines:     []HoldLine{{ItemID: "item-1", Quantity: 1}},
			EventDate: eventDate,
		})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestHoldService_ReleaseHold(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeHoldRepo()
	repo.holds["hold-1"] = domain.Hold{ID: "hold-1", TenantID: "tenant-1", Active: true}
	svc := NewHoldService(repo, clock.NewFixed(now))

	if err := svc.ReleaseHold(context.Background(), testScope, "hold-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if repo.holds["hold-1"].Active {
		t.Fatalf("expected hold released")
	}
	if err := svc.ReleaseHold(context.Background(), testScope, "hold-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("releasing an inactive hold should be NotFound, got %v", err)
	}
}

func TestHoldService_SweepExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeHoldRepo()
	repo.holds["stale"] = domain.Hold{ID: "stale", Active: true, ExpiresAt: now.Add(-time.Minute)}
	repo.holds["fresh"] = domain.Hold{ID: "fresh", Active: true, ExpiresAt: now.Add(time.Minute)}
	repo.holds["linked"] = domain.Hold{ID: "linked", Active: true, OrderID: "order-1", ExpiresAt: now.Add(-time.Minute)}
	svc := NewHoldService(repo, clock.NewFixed(now))

	n, err := svc.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if repo.holds["stale"].Active {
		t.Fatalf("stale hold should be inactive")
	}
	if !repo.holds["fresh"].Active {
		t.Fatalf("fresh hold should stay active")
	}
	if !repo.holds["linked"].Active {
		t.Fatalf("fulfilled holds are not the sweeper's business")
	}
}

type fakeHoldRepo struct {
	items     map[string]domain.CatalogItem
	totals    map[string]int
	committed map[string]int
	held      map[string]int
	holds     map[string]domain.Hold
	holdItems map[string][]domain.HoldItem
}

func newFakeHoldRepo() *fakeHoldRepo {
	return &fakeHoldRepo{
		items:     make(map[string]domain.CatalogItem),
		totals:    make(map[string]int),
		committed: make(map[string]int),
		held:      make(map[string]int),
		holds:     make(map[string]domain.Hold),
		holdItems: make(map[string][]domain.HoldItem),
	}
}

func (f *fakeHoldRepo) WithTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeHoldRepo) ResolveItems(_ context.Context, _ string, itemIDs []string) (map[string]domain.CatalogItem, error) {
	out := make(map[string]domain.CatalogItem)
	for _, id := range itemIDs {
		if item, ok := f.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (f *fakeHoldRepo) LedgerTotals(_ context.Context, _ string, itemIDs []string) (map[string]int, error) {
	out := make(map[string]int)
	for _, id := range itemIDs {
		out[id] = f.totals[id]
	}
	return out, nil
}

func (f *fakeHoldRepo) CommittedInWindow(_ context.Context, _ string, itemIDs []string, _, _ time.Time) (map[string]int, error) {
	out := make(map[string]int)
	for _, id := range itemIDs {
		out[id] = f.committed[id]
	}
	return out, nil
}

func (f *fakeHoldRepo) HeldInWindow(_ context.Context, _ string, itemIDs []string, _, _, _ time.Time) (map[string]int, error) {
	out := make(map[string]int)
	for _, id := range itemIDs {
		out[id] = f.held[id]
	}
	return out, nil
}

func (f *fakeHoldRepo) CreateHold(_ context.Context, hold domain.Hold, items []domain.HoldItem) error {
	f.holds[hold.ID] = hold
	f.holdItems[hold.ID] = items
	return nil
}

func (f *fakeHoldRepo) ReleaseHold(_ context.Context, tenantID, holdID string) error {
	hold, ok := f.holds[holdID]
	if !ok || !hold.Active {
		return domain.ErrHoldNotFound
	}
	hold.Active = false
	f.holds[holdID] = hold
	return nil
}

func (f *fakeHoldRepo) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, hold := range f.holds {
		if hold.Active && hold.OrderID == "" && hold.Expired(now) {
			hold.Active = false
			f.holds[id] = hold
			n++
		}
	}
	return n, nil
}
