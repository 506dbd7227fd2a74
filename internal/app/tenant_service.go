package app

import (
	"context"

	"github.com/gosimple/slug"

	"github.com/THuebbe/yardsign/internal/clock"
	"github.com/THuebbe/yardsign/internal/domain"
)

type TenantRepository interface {
	CreateTenant(ctx context.Context, tenant domain.Tenant) error
	GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error)
	SaveTenant(ctx context.Context, tenant domain.Tenant) error
	ListTenants(ctx context.Context) ([]domain.Tenant, error)
	CreateItem(ctx context.Context, item domain.CatalogItem) error
	GetItem(ctx context.Context, tenantID, itemID string) (domain.CatalogItem, error)
	ListItems(ctx context.Context, tenantID string) ([]domain.CatalogItem, error)
	DeleteItem(ctx context.Context, tenantID, itemID string) error
	ItemHasStock(ctx context.Context, itemID string) (bool, error)
}

// RoutingInvalidator evicts a tenant's routing keys from the lookaside
// cache after an update. Best effort; staleness beyond it is bounded by
// the cache TTL.
type RoutingInvalidator interface {
	Invalidate(ctx context.Context, tenant domain.Tenant)
}

// TenantService covers tenant signup and catalog administration. Tenants
// are only ever deactivated, never deleted.
type TenantService struct {
	repo    TenantRepository
	clock   clock.Clock
	routing RoutingInvalidator
}

func NewTenantService(repo TenantRepository, clk clock.Clock, opts ...TenantServiceOption) *TenantService {
	svc := &TenantService{repo: repo, clock: clk}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type TenantServiceOption func(*TenantService)

// WithRoutingInvalidator wires the routing cache eviction hook.
func WithRoutingInvalidator(inv RoutingInvalidator) TenantServiceOption {
	return func(s *TenantService) { s.routing = inv }
}

type CreateTenantInput struct {
	Name         string
	CustomDomain string
}

func (s *TenantService) CreateTenant(ctx context.Context, in CreateTenantInput) (domain.Tenant, error) {
	if in.Name == "" {
		return domain.Tenant{}, domain.ErrNameRequired
	}

	tenant := domain.Tenant{
		ID:           newID(),
		Name:         in.Name,
		Slug:         slug.Make(in.Name),
		Abbreviation: domain.Abbreviate(in.Name),
		CustomDomain: in.CustomDomain,
		Active:       true,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.CreateTenant(ctx, tenant); err != nil {
		return domain.Tenant{}, err
	}
	return tenant, nil
}

func (s *TenantService) GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	return s.repo.GetTenant(ctx, tenantID)
}

func (s *TenantService) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	return s.repo.ListTenants(ctx)
}

// DeactivateTenant flips the active flag; the resolver stops routing to the
// tenant from the next request on.
func (s *TenantService) DeactivateTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	tenant, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return domain.Tenant{}, err
	}
	tenant.Active = false
	if err := s.repo.SaveTenant(ctx, tenant); err != nil {
		return domain.Tenant{}, err
	}
	s.invalidateRouting(ctx, tenant)
	return tenant, nil
}

// SetCustomDomain assigns or clears the tenant's custom routing domain.
func (s *TenantService) SetCustomDomain(ctx context.Context, tenantID, customDomain string) (domain.Tenant, error) {
	tenant, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return domain.Tenant{}, err
	}
	prev := tenant
	tenant.CustomDomain = customDomain
	if err := s.repo.SaveTenant(ctx, tenant); err != nil {
		return domain.Tenant{}, err
	}
	// Evict under the old domain too, or a reassigned domain keeps
	// resolving to this tenant until the TTL runs out.
	s.invalidateRouting(ctx, prev)
	s.invalidateRouting(ctx, tenant)
	return tenant, nil
}

func (s *TenantService) invalidateRouting(ctx context.Context, tenant domain.Tenant) {
	if s.routing == nil {
		return
	}
	s.routing.Invalidate(ctx, tenant)
}

type CreateItemInput struct {
	Name           string
	Description    string
	ImageURL       string
	UnitPriceCents int
}

// CreateItem adds a tenant-custom catalog item.
func (s *TenantService) CreateItem(ctx context.Context, scope Scope, in CreateItemInput) (domain.CatalogItem, error) {
	if err := scope.authorize(domain.PermManageCatalog); err != nil {
		return domain.CatalogItem{}, err
	}
	if in.Name == "" {
		return domain.CatalogItem{}, domain.ErrNameRequired
	}
	if in.UnitPriceCents < 0 {
		return domain.CatalogItem{}, domain.ErrInvalidQuantity
	}

	item := domain.CatalogItem{
		ID:             newID(),
		TenantID:       scope.TenantID,
		Name:           in.Name,
		Description:    in.Description,
		ImageURL:       in.ImageURL,
		UnitPriceCents: in.UnitPriceCents,
		Custom:         true,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return domain.CatalogItem{}, err
	}
	return item, nil
}

// ListItems returns platform items plus the tenant's custom items.
func (s *TenantService) ListItems(ctx context.Context, scope Scope) ([]domain.CatalogItem, error) {
	if err := scope.authorize(domain.PermViewOrders); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, scope.TenantID)
}

// DeleteItem removes a tenant-custom item. Items still referenced by a
// ledger row with stock cannot be deleted.
func (s *TenantService) DeleteItem(ctx context.Context, scope Scope, itemID string) error {
	if err := scope.authorize(domain.PermManageCatalog); err != nil {
		return err
	}

	item, err := s.repo.GetItem(ctx, scope.TenantID, itemID)
	if err != nil {
		return err
	}
	if !item.Custom || item.TenantID != scope.TenantID {
		return domain.ErrItemNotFound
	}

	inUse, err := s.repo.ItemHasStock(ctx, itemID)
	if err != nil {
		return err
	}
	if inUse {
		return domain.ErrItemReferenced
	}
	return s.repo.DeleteItem(ctx, scope.TenantID, itemID)
}
