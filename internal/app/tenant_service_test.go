package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/THuebbe/yardsign/internal/clock"
	"github.com/THuebbe/yardsign/internal/domain"
)

func TestTenantService_CreateTenant(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("derives slug and abbreviation from the name", func(t *testing.T) {
		repo := newFakeTenantRepo()
		svc := NewTenantService(repo, clock.NewFixed(now))

		tenant, err := svc.CreateTenant(context.Background(), CreateTenantInput{Name: "Sunny Signs Co"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tenant.Slug != "sunny-signs-co" {
			t.Fatalf("unexpected slug %q", tenant.Slug)
		}
		if tenant.Abbreviation != "SUN" {
			t.Fatalf("unexpected abbreviation %q", tenant.Abbreviation)
		}
		if !tenant.Active {
			t.Fatalf("new tenants start active")
		}
		if _, ok := repo.tenants[tenant.ID]; !ok {
			t.Fatalf("tenant not persisted")
		}
	})

	t.Run("requires a name", func(t *testing.T) {
		svc := NewTenantService(newFakeTenantRepo(), clock.NewFixed(now))

		if _, err := svc.CreateTenant(context.Background(), CreateTenantInput{}); !errors.Is(err, domain.ErrNameRequired) {
			t.Fatalf("expected ErrNameRequired, got %v", err)
		}
	})

	t.Run("surfaces slug collisions", func(t *testing.T) {
		repo := newFakeTenantRepo()
		repo.createErr = domain.ErrSlugTaken
		svc := NewTenantService(repo, clock.NewFixed(now))

		if _, err := svc.CreateTenant(context.Background(), CreateTenantInput{Name: "Sunny Signs"}); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})
}

func TestTenantService_DeactivateTenant(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeTenantRepo()
	repo.tenants["tenant-1"] = domain.Tenant{ID: "tenant-1", Name: "Sunny Signs", Active: true}
	svc := NewTenantService(repo, clock.NewFixed(now))

	tenant, err := svc.DeactivateTenant(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tenant.Active {
		t.Fatalf("tenant should be inactive")
	}
	if repo.tenants["tenant-1"].Active {
		t.Fatalf("deactivation not persisted")
	}

	if _, err := svc.DeactivateTenant(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestTenantService_RoutingInvalidation(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("deactivation evicts the routing keys", func(t *testing.T) {
		repo := newFakeTenantRepo()
		repo.tenants["tenant-1"] = domain.Tenant{ID: "tenant-1", Slug: "sunny-signs", CustomDomain: "signs.example.com", Active: true}
		inv := &fakeRoutingInvalidator{}
		svc := NewTenantService(repo, clock.NewFixed(now), WithRoutingInvalidator(inv))

		if _, err := svc.DeactivateTenant(context.Background(), "tenant-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(inv.evicted) != 1 || inv.evicted[0].Slug != "sunny-signs" || inv.evicted[0].CustomDomain != "signs.example.com" {
			t.Fatalf("unexpected evictions: %+v", inv.evicted)
		}
	})

	t.Run("domain change evicts old and new keys", func(t *testing.T) {
		repo := newFakeTenantRepo()
		repo.tenants["tenant-1"] = domain.Tenant{ID: "tenant-1", Slug: "sunny-signs", CustomDomain: "old.example.com", Active: true}
		inv := &fakeRoutingInvalidator{}
		svc := NewTenantService(repo, clock.NewFixed(now), WithRoutingInvalidator(inv))

		if _, err := svc.SetCustomDomain(context.Background(), "tenant-1", "new.example.com"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		// The old domain must stop resolving before its TTL runs out.
		if len(inv.evicted) != 2 || inv.evicted[0].CustomDomain != "old.example.com" || inv.evicted[1].CustomDomain != "new.example.com" {
			t.Fatalf("unexpected evictions: %+v", inv.evicted)
		}
	})

	t.Run("no invalidator configured is fine", func(t *testing.T) {
		repo := newFakeTenantRepo()
		repo.tenants["tenant-1"] = domain.Tenant{ID: "tenant-1", Slug: "sunny-signs", Active: true}
		svc := NewTenantService(repo, clock.NewFixed(now))

		if _, err := svc.DeactivateTenant(context.Background(), "tenant-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestTenantService_SetCustomDomain(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeTenantRepo()
	repo.tenants["tenant-1"] = domain.Tenant{ID: "tenant-1", Name: "Sunny Signs", Active: true}
	svc := NewTenantService(repo, clock.NewFixed(now))

	tenant, err := svc.SetCustomDomain(context.Background(), "tenant-1", "signs.example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tenant.CustomDomain != "signs.example.com" {
		t.Fatalf("domain not set: %q", tenant.CustomDomain)
	}

	tenant, err = svc.SetCustomDomain(context.Background(), "tenant-1", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tenant.CustomDomain != "" {
		t.Fatalf("domain not cleared: %q", tenant.CustomDomain)
	}
}

func TestTenantService_Catalog(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("creates tenant-custom items", func(t *testing.T) {
		repo := newFakeTenantRepo()
		svc := NewTenantService(repo, clock.NewFixed(now))

		item, err := svc.CreateItem(context.Background(), testScope, CreateItemInput{Name: "Flamingo", UnitPriceCents: 1200})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !item.Custom || item.TenantID != "tenant-1" {
			t.Fatalf("unexpected item: %+v", item)
		}
	})

	t.Run("rejects negative prices and missing names", func(t *testing.T) {
		svc := NewTenantService(newFakeTenantRepo(), clock.NewFixed(now))

		if _, err := svc.CreateItem(context.Background(), testScope, CreateItemInput{UnitPriceCents: 100}); !errors.Is(err, domain.ErrNameRequired) {
			t.Fatalf("expected ErrNameRequired, got %v", err)
		}
		if _, err := svc.CreateItem(context.Background(), testScope, CreateItemInput{Name: "X", UnitPriceCents: -1}); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})

	t.Run("staff cannot manage the catalog", func(t *testing.T) {
		svc := NewTenantService(newFakeTenantRepo(), clock.NewFixed(now))
		staff := Scope{TenantID: "tenant-1", ActorID: "s", Role: domain.RoleStaff}

		if _, err := svc.CreateItem(context.Background(), staff, CreateItemInput{Name: "X"}); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("platform items cannot be deleted by tenants", func(t *testing.T) {
		repo := newFakeTenantRepo()
		repo.items["item-1"] = domain.CatalogItem{ID: "item-1", Name: "Star", Custom: false}
		svc := NewTenantService(repo, clock.NewFixed(now))

		if err := svc.DeleteItem(context.Background(), testScope, "item-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})

	t.Run("items backing stock cannot be deleted", func(t *testing.T) {
		repo := newFakeTenantRepo()
		repo.items["item-1"] = domain.CatalogItem{ID: "item-1", TenantID: "tenant-1", Name: "Star", Custom: true}
		repo.stocked["item-1"] = true
		svc := NewTenantService(repo, clock.NewFixed(now))

		if err := svc.DeleteItem(context.Background(), testScope, "item-1"); !errors.Is(err, domain.ErrItemReferenced) {
			t.Fatalf("expected ErrItemReferenced, got %v", err)
		}
	})

	t.Run("deletes unreferenced custom items", func(t *testing.T) {
		repo := newFakeTenantRepo()
		repo.items["item-1"] = domain.CatalogItem{ID: "item-1", TenantID: "tenant-1", Name: "Star", Custom: true}
		svc := NewTenantService(repo, clock.NewFixed(now))

		if err := svc.DeleteItem(context.Background(), testScope, "item-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := repo.items["item-1"]; ok {
			t.Fatalf("item should be gone")
		}
	})
}

type fakeRoutingInvalidator struct {
	evicted []domain.Tenant
}

func (f *fakeRoutingInvalidator) Invalidate(_ context.Context, tenant domain.Tenant) {
	f.evicted = append(f.evicted, tenant)
}

type fakeTenantRepo struct {
	tenants   map[string]domain.Tenant
	items     map[string]domain.CatalogItem
	stocked   map[string]bool
	createErr error
}

func newFakeTenantRepo() *fakeTenantRepo {
	return &fakeTenantRepo{
		tenants: make(map[string]domain.Tenant),
		items:   make(map[string]domain.CatalogItem),
		stocked: make(map[string]bool),
	}
}

func (f *fakeTenantRepo) CreateTenant(_ context.Context, tenant domain.Tenant) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.tenants[tenant.ID] = tenant
	return nil
}

func (f *fakeTenantRepo) GetTenant(_ context.Context, tenantID string) (domain.Tenant, error) {
	tenant, ok := f.tenants[tenantID]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return tenant, nil
}

func (f *fakeTenantRepo) SaveTenant(_ context.Context, tenant domain.Tenant) error {
	if _, ok := f.tenants[tenant.ID]; !ok {
		return domain.ErrTenantNotFound
	}
	f.tenants[tenant.ID] = tenant
	return nil
}

func (f *fakeTenantRepo) ListTenants(_ context.Context) ([]domain.Tenant, error) {
	var out []domain.Tenant
	for _, tenant := range f.tenants {
		out = append(out, tenant)
	}
	return out, nil
}

func (f *fakeTenantRepo) CreateItem(_ context.Context, item domain.CatalogItem) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeTenantRepo) GetItem(_ context.Context, _, itemID string) (domain.CatalogItem, error) {
	item, ok := f.items[itemID]
	if !ok {
		return domain.CatalogItem{}, domain.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeTenantRepo) ListItems(_ context.Context, tenantID string) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	for _, item := range f.items {
		if item.TenantID == "" || item.TenantID == tenantID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeTenantRepo) DeleteItem(_ context.Context, _, itemID string) error {
	delete(f.items, itemID)
	return nil
}

func (f *fakeTenantRepo) ItemHasStock(_ context.Context, itemID string) (bool, error) {
	return f.stocked[itemID], nil
}
