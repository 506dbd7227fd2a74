package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/THuebbe/yardsign/internal/domain"
)

type HoldRepository struct {
	pool *pgxpool.Pool
	inv  *InventoryRepository
}

func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{pool: pool, inv: NewInventoryRepository(pool)}
}

func (r *HoldRepository) WithTx(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, tenantID, fn)
}

func (r *HoldRepository) ResolveItems(ctx context.Context, tenantID string, itemIDs []string) (map[string]domain.CatalogItem, error) {
	query := `SELECT ` + itemColumns + `
FROM catalog_items
WHERE id = ANY($2) AND (tenant_id IS NULL OR tenant_id = $1)`

	rows, err := querier(ctx, r.pool).Query(ctx, query, tenantID, itemIDs)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("resolve items: %w", err)
	}
	defer rows.Close()

	items := make(map[string]domain.CatalogItem, len(itemIDs))
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items[item.ID] = item
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate items: %w", rows.Err())
	}
	return items, nil
}

func (r *HoldRepository) LedgerTotals(ctx context.Context, tenantID string, itemIDs []string) (map[string]int, error) {
	return r.inv.LedgerTotals(ctx, tenantID, itemIDs)
}

func (r *HoldRepository) CommittedInWindow(ctx context.Context, tenantID string, itemIDs []string, from, to time.Time) (map[string]int, error) {
	return r.inv.CommittedInWindow(ctx, tenantID, itemIDs, from, to)
}

// HeldInWindow sums quantities on live holds for events inside the window,
// so overlapping checkouts cannot both pass the availability check.
func (r *HoldRepository) HeldInWindow(ctx context.Context, tenantID string, itemIDs []string, from, to, now time.Time) (map[string]int, error) {
	const query = `
SELECT hi.item_id, COALESCE(SUM(hi.quantity), 0)
FROM hold_items hi
JOIN holds h ON h.id = hi.hold_id
WHERE h.tenant_id = $1
  AND hi.item_id = ANY($2)
  AND h.active
  AND h.expires_at >= $3
  AND h.event_date BETWEEN $4 AND $5
GROUP BY hi.item_id`

	rows, err := querier(ctx, r.pool).Query(ctx, query, tenantID, itemIDs, now, from, to)
	if err != nil {
		return nil, fmt.Errorf("held in window: %w", err)
	}
	defer rows.Close()

	held := make(map[string]int, len(itemIDs))
	for rows.Next() {
		var itemID string
		var qty int
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, fmt.Errorf("scan held: %w", err)
		}
		held[itemID] = qty
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate held: %w", rows.Err())
	}
	return held, nil
}

func (r *HoldRepository) CreateHold(ctx context.Context, hold domain.Hold, items []domain.HoldItem) error {
	const holdStmt = `
INSERT INTO holds (id, tenant_id, session_id, event_date, expires_at, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	q := querier(ctx, r.pool)
	if _, err := q.Exec(ctx, holdStmt,
		hold.ID, hold.TenantID, hold.SessionID, hold.EventDate, hold.ExpiresAt, hold.Active, hold.CreatedAt); err != nil {
		return fmt.Errorf("create hold: %w", err)
	}

	const itemStmt = `
INSERT INTO hold_items (id, hold_id, item_id, quantity, unit_price_cents)
VALUES ($1, $2, $3, $4, $5)`

	for _, item := range items {
		if _, err := q.Exec(ctx, itemStmt,
			item.ID, item.HoldID, item.ItemID, item.Quantity, item.UnitPriceCents); err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrItemNotFound
			}
			return fmt.Errorf("create hold item: %w", err)
		}
	}
	return nil
}

func (r *HoldRepository) ReleaseHold(ctx context.Context, tenantID, holdID string) error {
	const stmt = `UPDATE holds SET active = false WHERE id = $1 AND tenant_id = $2 AND active`

	tag, err := querier(ctx, r.pool).Exec(ctx, stmt, holdID, tenantID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrHoldNotFound
		}
		return fmt.Errorf("release hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHoldNotFound
	}
	return nil
}

// DeactivateExpired is the sweep: it flips lapsed, unfulfilled holds to
// inactive across all tenants. Read paths already reject expired holds, so
// this is bookkeeping, not a correctness gate.
func (r *HoldRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	const stmt = `UPDATE holds SET active = false WHERE active AND order_id IS NULL AND expires_at < $1`

	tag, err := querier(ctx, r.pool).Exec(ctx, stmt, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired holds: %w", err)
	}
	return tag.RowsAffected(), nil
}
