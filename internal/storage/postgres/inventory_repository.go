package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/THuebbe/yardsign/internal/domain"
)

type InventoryRepository struct {
	pool *pgxpool.Pool
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

func (r *InventoryRepository) WithTx(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, tenantID, fn)
}

func (r *InventoryRepository) WithReadTx(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	return withReadTx(ctx, r.pool, tenantID, fn)
}

func (r *InventoryRepository) GetItem(ctx context.Context, tenantID, itemID string) (domain.CatalogItem, error) {
	query := `SELECT ` + itemColumns + `
FROM catalog_items
WHERE id = $1 AND (tenant_id IS NULL OR tenant_id = $2)`

	return scanItem(querier(ctx, r.pool).QueryRow(ctx, query, itemID, tenantID))
}

const rowColumns = `id, tenant_id, item_id, quantity, available, allocated, deployed, updated_at`

func (r *InventoryRepository) GetRowForUpdate(ctx context.Context, tenantID, rowID string) (domain.LedgerRow, error) {
	query := `SELECT ` + rowColumns + ` FROM inventory_ledger WHERE id = $1 AND tenant_id = $2 FOR UPDATE`
	return scanRow(querier(ctx, r.pool).QueryRow(ctx, query, rowID, tenantID))
}

func (r *InventoryRepository) GetRowByItemForUpdate(ctx context.Context, tenantID, itemID string) (domain.LedgerRow, error) {
	query := `SELECT ` + rowColumns + ` FROM inventory_ledger WHERE tenant_id = $1 AND item_id = $2 FOR UPDATE`
	return scanRow(querier(ctx, r.pool).QueryRow(ctx, query, tenantID, itemID))
}

func (r *InventoryRepository) CreateRow(ctx context.Context, row domain.LedgerRow) error {
	const stmt = `
INSERT INTO inventory_ledger (id, tenant_id, item_id, quantity, available, allocated, deployed, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier(ctx, r.pool).Exec(ctx, stmt,
		row.ID, row.TenantID, row.ItemID, row.Quantity, row.Available, row.Allocated, row.Deployed, row.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return domain.ErrItemNotFound
		}
		return fmt.Errorf("create ledger row: %w", err)
	}
	return nil
}

func (r *InventoryRepository) SaveRow(ctx context.Context, row domain.LedgerRow) error {
	const stmt = `
UPDATE inventory_ledger
SET quantity = $3, available = $4, allocated = $5, deployed = $6, updated_at = $7
WHERE id = $1 AND tenant_id = $2`

	tag, err := querier(ctx, r.pool).Exec(ctx, stmt,
		row.ID, row.TenantID, row.Quantity, row.Available, row.Allocated, row.Deployed, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save ledger row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRowNotFound
	}
	return nil
}

func (r *InventoryRepository) DeleteRow(ctx context.Context, tenantID, rowID string) error {
	const stmt = `DELETE FROM inventory_ledger WHERE id = $1 AND tenant_id = $2`
	tag, err := querier(ctx, r.pool).Exec(ctx, stmt, rowID, tenantID)
	if err != nil {
		return fmt.Errorf("delete ledger row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRowNotFound
	}
	return nil
}

func (r *InventoryRepository) ListRows(ctx context.Context, tenantID string) ([]domain.LedgerRow, error) {
	query := `SELECT ` + rowColumns + ` FROM inventory_ledger WHERE tenant_id = $1 ORDER BY updated_at DESC`
	rows, err := querier(ctx, r.pool).Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list ledger rows: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", rows.Err())
	}
	return out, nil
}

func (r *InventoryRepository) LedgerTotals(ctx context.Context, tenantID string, itemIDs []string) (map[string]int, error) {
	const query = `
SELECT item_id, quantity
FROM inventory_ledger
WHERE tenant_id = $1 AND item_id = ANY($2)`

	rows, err := querier(ctx, r.pool).Query(ctx, query, tenantID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int, len(itemIDs))
	for rows.Next() {
		var itemID string
		var qty int
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, fmt.Errorf("scan ledger total: %w", err)
		}
		totals[itemID] = qty
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate ledger totals: %w", rows.Err())
	}
	return totals, nil
}

// CommittedInWindow sums quantities held by non-terminal orders whose event
// date falls inside the window. This drives the date-windowed availability
// check; the same signs serve non-overlapping events.
func (r *InventoryRepository) CommittedInWindow(ctx context.Context, tenantID string, itemIDs []string, from, to time.Time) (map[string]int, error) {
	const query = `
SELECT oi.item_id, COALESCE(SUM(oi.quantity), 0)
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.tenant_id = $1
  AND oi.item_id = ANY($2)
  AND o.status NOT IN ('completed', 'cancelled')
  AND o.event_date BETWEEN $3 AND $4
GROUP BY oi.item_id`

	rows, err := querier(ctx, r.pool).Query(ctx, query, tenantID, itemIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("committed in window: %w", err)
	}
	defer rows.Close()

	committed := make(map[string]int, len(itemIDs))
	for rows.Next() {
		var itemID string
		var qty int
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, fmt.Errorf("scan committed: %w", err)
		}
		committed[itemID] = qty
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate committed: %w", rows.Err())
	}
	return committed, nil
}

func scanRow(row pgx.Row) (domain.LedgerRow, error) {
	var lr domain.LedgerRow
	err := row.Scan(&lr.ID, &lr.TenantID, &lr.ItemID, &lr.Quantity, &lr.Available, &lr.Allocated, &lr.Deployed, &lr.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.LedgerRow{}, domain.ErrRowNotFound
		}
		if err == pgx.ErrNoRows {
			return domain.LedgerRow{}, domain.ErrRowNotFound
		}
		return domain.LedgerRow{}, fmt.Errorf("scan ledger row: %w", err)
	}
	return lr, nil
}
