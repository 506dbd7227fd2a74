package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/THuebbe/yardsign/internal/domain"
)

// TenantRepository is the tenant registry and catalog store. It also
// implements tenant.Directory for the resolver.
type TenantRepository struct {
	pool *pgxpool.Pool
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

const tenantColumns = `id, name, slug, abbreviation, COALESCE(custom_domain, ''), active, created_at`

func (r *TenantRepository) CreateTenant(ctx context.Context, tenant domain.Tenant) error {
	const stmt = `
INSERT INTO tenants (id, name, slug, abbreviation, custom_domain, active, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`

	_, err := querier(ctx, r.pool).Exec(ctx, stmt,
		tenant.ID, tenant.Name, tenant.Slug, tenant.Abbreviation, tenant.CustomDomain, tenant.Active, tenant.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(constraintName(err), "domain") {
				return domain.ErrDomainTaken
			}
			return domain.ErrSlugTaken
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(querier(ctx, r.pool).QueryRow(ctx, query, tenantID))
}

func (r *TenantRepository) SaveTenant(ctx context.Context, tenant domain.Tenant) error {
	const stmt = `
UPDATE tenants SET name = $2, custom_domain = NULLIF($3, ''), active = $4 WHERE id = $1`

	tag, err := querier(ctx, r.pool).Exec(ctx, stmt, tenant.ID, tenant.Name, tenant.CustomDomain, tenant.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDomainTaken
		}
		return fmt.Errorf("save tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (r *TenantRepository) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at ASC`
	rows, err := querier(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate tenants: %w", rows.Err())
	}
	return tenants, nil
}

// ByRoutingKey implements tenant.Directory.
func (r *TenantRepository) ByRoutingKey(ctx context.Context, key string) (domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1`
	return scanTenant(querier(ctx, r.pool).QueryRow(ctx, query, key))
}

// ByDomain implements tenant.Directory.
func (r *TenantRepository) ByDomain(ctx context.Context, host string) (domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE custom_domain = $1`
	return scanTenant(querier(ctx, r.pool).QueryRow(ctx, query, host))
}

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Abbreviation, &t.CustomDomain, &t.Active, &t.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) || err == pgx.ErrNoRows {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("scan tenant: %w", err)
	}
	return t, nil
}

const itemColumns = `id, COALESCE(tenant_id::text, ''), name, description, image_url, unit_price_cents, custom, created_at`

func (r *TenantRepository) CreateItem(ctx context.Context, item domain.CatalogItem) error {
	const stmt = `
INSERT INTO catalog_items (id, tenant_id, name, description, image_url, unit_price_cents, custom, created_at)
VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8)`

	_, err := querier(ctx, r.pool).Exec(ctx, stmt,
		item.ID, item.TenantID, item.Name, item.Description, item.ImageURL, item.UnitPriceCents, item.Custom, item.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrTenantNotFound
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// GetItem returns a platform item or one of the tenant's own; an item owned
// by another tenant is indistinguishable from a missing one.
func (r *TenantRepository) GetItem(ctx context.Context, tenantID, itemID string) (domain.CatalogItem, error) {
	query := `SELECT ` + itemColumns + `
FROM catalog_items
WHERE id = $1 AND (tenant_id IS NULL OR tenant_id = $2)`

	return scanItem(querier(ctx, r.pool).QueryRow(ctx, query, itemID, tenantID))
}

func (r *TenantRepository) ListItems(ctx context.Context, tenantID string) ([]domain.CatalogItem, error) {
	query := `SELECT ` + itemColumns + `
FROM catalog_items
WHERE tenant_id IS NULL OR tenant_id = $1
ORDER BY created_at ASC`

	rows, err := querier(ctx, r.pool).Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate items: %w", rows.Err())
	}
	return items, nil
}

func (r *TenantRepository) DeleteItem(ctx context.Context, tenantID, itemID string) error {
	const stmt = `DELETE FROM catalog_items WHERE id = $1 AND tenant_id = $2`
	tag, err := querier(ctx, r.pool).Exec(ctx, stmt, itemID, tenantID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrItemReferenced
		}
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *TenantRepository) ItemHasStock(ctx context.Context, itemID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM inventory_ledger WHERE item_id = $1 AND quantity > 0)`
	var exists bool
	if err := querier(ctx, r.pool).QueryRow(ctx, query, itemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check item stock: %w", err)
	}
	return exists, nil
}

func scanItem(row pgx.Row) (domain.CatalogItem, error) {
	var item domain.CatalogItem
	err := row.Scan(&item.ID, &item.TenantID, &item.Name, &item.Description, &item.ImageURL,
		&item.UnitPriceCents, &item.Custom, &item.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CatalogItem{}, domain.ErrItemNotFound
		}
		if err == pgx.ErrNoRows {
			return domain.CatalogItem{}, domain.ErrItemNotFound
		}
		return domain.CatalogItem{}, fmt.Errorf("scan item: %w", err)
	}
	return item, nil
}
