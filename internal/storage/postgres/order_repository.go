package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/THuebbe/yardsign/internal/domain"
)

type OrderRepository struct {
	pool *pgxpool.Pool
	inv  *InventoryRepository
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool, inv: NewInventoryRepository(pool)}
}

func (r *OrderRepository) WithTx(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, tenantID, fn)
}

func (r *OrderRepository) GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(querier(ctx, r.pool).QueryRow(ctx, query, tenantID))
}

// LockTenant takes the tenant row lock that serializes order numbering.
func (r *OrderRepository) LockTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1 FOR UPDATE`
	return scanTenant(querier(ctx, r.pool).QueryRow(ctx, query, tenantID))
}

func (r *OrderRepository) MaxSequence(ctx context.Context, tenantID string) (int, error) {
	const query = `SELECT COALESCE(MAX(sequence), 0) FROM orders WHERE tenant_id = $1`
	var max int
	if err := querier(ctx, r.pool).QueryRow(ctx, query, tenantID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max sequence: %w", err)
	}
	return max, nil
}

// ClaimHold is the conditional update that makes fulfillment mutually
// exclusive: only one caller flips active to false, every other caller
// sees no row.
func (r *OrderRepository) ClaimHold(ctx context.Context, tenantID, holdID string) (domain.Hold, []domain.HoldItem, error) {
	const stmt = `
UPDATE holds SET active = false
WHERE id = $1 AND tenant_id = $2 AND active
RETURNING id, tenant_id, COALESCE(order_id::text, ''), session_id, event_date, expires_at, created_at`

	var h domain.Hold
	err := querier(ctx, r.pool).QueryRow(ctx, stmt, holdID, tenantID).
		Scan(&h.ID, &h.TenantID, &h.OrderID, &h.SessionID, &h.EventDate, &h.ExpiresAt, &h.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) || err == pgx.ErrNoRows {
			return domain.Hold{}, nil, domain.ErrHoldNotFound
		}
		return domain.Hold{}, nil, fmt.Errorf("claim hold: %w", err)
	}

	const itemQuery = `
SELECT id, hold_id, item_id, quantity, unit_price_cents
FROM hold_items
WHERE hold_id = $1
ORDER BY id`

	rows, err := querier(ctx, r.pool).Query(ctx, itemQuery, holdID)
	if err != nil {
		return domain.Hold{}, nil, fmt.Errorf("load hold items: %w", err)
	}
	defer rows.Close()

	var items []domain.HoldItem
	for rows.Next() {
		var hi domain.HoldItem
		if err := rows.Scan(&hi.ID, &hi.HoldID, &hi.ItemID, &hi.Quantity, &hi.UnitPriceCents); err != nil {
			return domain.Hold{}, nil, fmt.Errorf("scan hold item: %w", err)
		}
		items = append(items, hi)
	}
	if rows.Err() != nil {
		return domain.Hold{}, nil, fmt.Errorf("iterate hold items: %w", rows.Err())
	}
	return h, items, nil
}

func (r *OrderRepository) AttachOrder(ctx context.Context, tenantID, holdID, orderID string) error {
	const stmt = `UPDATE holds SET order_id = $3 WHERE id = $1 AND tenant_id = $2`
	tag, err := querier(ctx, r.pool).Exec(ctx, stmt, holdID, tenantID, orderID)
	if err != nil {
		return fmt.Errorf("attach order to hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHoldNotFound
	}
	return nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order, items []domain.OrderItem) error {
	const stmt = `
INSERT INTO orders (
	id, tenant_id, hold_id, sequence, order_number, internal_number,
	customer_name, customer_email, customer_phone, event_date, event_address,
	subtotal_cents, total_cents, status, payment_ref, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	q := querier(ctx, r.pool)
	_, err := q.Exec(ctx, stmt,
		order.ID, order.TenantID, order.HoldID, order.Sequence, order.OrderNumber, order.InternalNumber,
		order.Customer.Name, order.Customer.Email, order.Customer.Phone, order.Customer.EventDate, order.Customer.EventAddress,
		order.SubtotalCents, order.TotalCents, order.Status, order.PaymentRef, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("create order: %w", err)
	}

	const itemStmt = `
INSERT INTO order_items (id, order_id, item_id, quantity, unit_price_cents, line_total_cents)
VALUES ($1, $2, $3, $4, $5, $6)`

	for _, item := range items {
		if _, err := q.Exec(ctx, itemStmt,
			item.ID, item.OrderID, item.ItemID, item.Quantity, item.UnitPriceCents, item.LineTotalCents); err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}
	return nil
}

const orderColumns = `
id, tenant_id, hold_id, sequence, order_number, internal_number,
customer_name, customer_email, customer_phone, event_date, event_address,
subtotal_cents, total_cents, status, payment_ref,
cancellation_reason, refund_amount_cents, cancelled_at, deployed_at, completed_at,
created_at, updated_at`

func (r *OrderRepository) GetOrder(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND tenant_id = $2`
	order, err := scanOrder(querier(ctx, r.pool).QueryRow(ctx, query, orderID, tenantID))
	if err != nil {
		return domain.Order{}, err
	}

	docs, err := r.listDocuments(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Documents = docs
	return order, nil
}

func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND tenant_id = $2 FOR UPDATE`
	return scanOrder(querier(ctx, r.pool).QueryRow(ctx, query, orderID, tenantID))
}

func (r *OrderRepository) ListOrderItems(ctx context.Context, tenantID, orderID string) ([]domain.OrderItem, error) {
	const query = `
SELECT oi.id, oi.order_id, oi.item_id, oi.quantity, oi.unit_price_cents, oi.line_total_cents
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE oi.order_id = $1 AND o.tenant_id = $2
ORDER BY oi.id`

	rows, err := querier(ctx, r.pool).Query(ctx, query, orderID, tenantID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Quantity, &it.UnitPriceCents, &it.LineTotalCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate order items: %w", rows.Err())
	}
	return items, nil
}

func (r *OrderRepository) SaveOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
UPDATE orders SET
	status = $3, subtotal_cents = $4, total_cents = $5,
	cancellation_reason = $6, refund_amount_cents = $7,
	cancelled_at = $8, deployed_at = $9, completed_at = $10, updated_at = $11
WHERE id = $1 AND tenant_id = $2`

	tag, err := querier(ctx, r.pool).Exec(ctx, stmt,
		order.ID, order.TenantID, order.Status, order.SubtotalCents, order.TotalCents,
		order.CancellationReason, order.RefundAmountCents,
		order.CancelledAt, order.DeployedAt, order.CompletedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) UpsertOrderItem(ctx context.Context, tenantID string, item domain.OrderItem) error {
	const stmt = `
INSERT INTO order_items (id, order_id, item_id, quantity, unit_price_cents, line_total_cents)
SELECT $1, $2, $3, $4, $5, $6
WHERE EXISTS (SELECT 1 FROM orders WHERE id = $2 AND tenant_id = $7)
ON CONFLICT (order_id, item_id)
DO UPDATE SET quantity = EXCLUDED.quantity, line_total_cents = EXCLUDED.line_total_cents`

	_, err := querier(ctx, r.pool).Exec(ctx, stmt,
		item.ID, item.OrderID, item.ItemID, item.Quantity, item.UnitPriceCents, item.LineTotalCents, tenantID)
	if err != nil {
		return fmt.Errorf("upsert order item: %w", err)
	}
	return nil
}

// DeleteOrderItem tolerates a missing row: an item added and zeroed inside
// one edit never reached the database.
func (r *OrderRepository) DeleteOrderItem(ctx context.Context, tenantID, orderItemID string) error {
	const stmt = `
DELETE FROM order_items oi
USING orders o
WHERE oi.id = $1 AND o.id = oi.order_id AND o.tenant_id = $2`

	if _, err := querier(ctx, r.pool).Exec(ctx, stmt, orderItemID, tenantID); err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetItem(ctx context.Context, tenantID, itemID string) (domain.CatalogItem, error) {
	return r.inv.GetItem(ctx, tenantID, itemID)
}

func (r *OrderRepository) GetRowByItemForUpdate(ctx context.Context, tenantID, itemID string) (domain.LedgerRow, error) {
	return r.inv.GetRowByItemForUpdate(ctx, tenantID, itemID)
}

func (r *OrderRepository) SaveRow(ctx context.Context, row domain.LedgerRow) error {
	return r.inv.SaveRow(ctx, row)
}

func (r *OrderRepository) AddDocument(ctx context.Context, tenantID, orderID string, doc domain.Document) error {
	const stmt = `
INSERT INTO order_documents (order_id, kind, url, filename, generated_at)
SELECT $1, $2, $3, $4, $5
WHERE EXISTS (SELECT 1 FROM orders WHERE id = $1 AND tenant_id = $6)`

	tag, err := querier(ctx, r.pool).Exec(ctx, stmt, orderID, doc.Kind, doc.URL, doc.Filename, doc.GeneratedAt, tenantID)
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) listDocuments(ctx context.Context, orderID string) ([]domain.Document, error) {
	const query = `
SELECT kind, url, filename, generated_at
FROM order_documents
WHERE order_id = $1
ORDER BY generated_at ASC`

	rows, err := querier(ctx, r.pool).Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.Kind, &d.URL, &d.Filename, &d.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate documents: %w", rows.Err())
	}
	return docs, nil
}

func (r *OrderRepository) AppendActivity(ctx context.Context, act domain.OrderActivity) error {
	const stmt = `
INSERT INTO order_activities (id, order_id, tenant_id, actor_id, action, resulting_status, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier(ctx, r.pool).Exec(ctx, stmt,
		act.ID, act.OrderID, act.TenantID, act.ActorID, act.Action, string(act.ResultingStatus), act.Note, act.CreatedAt)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (r *OrderRepository) ListActivity(ctx context.Context, tenantID, orderID string) ([]domain.OrderActivity, error) {
	const query = `
SELECT id, order_id, tenant_id, actor_id, action, resulting_status, note, created_at
FROM order_activities
WHERE order_id = $1 AND tenant_id = $2
ORDER BY created_at ASC, id ASC`

	rows, err := querier(ctx, r.pool).Query(ctx, query, orderID, tenantID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var acts []domain.OrderActivity
	for rows.Next() {
		var a domain.OrderActivity
		var status string
		if err := rows.Scan(&a.ID, &a.OrderID, &a.TenantID, &a.ActorID, &a.Action, &status, &a.Note, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.ResultingStatus = domain.OrderStatus(status)
		acts = append(acts, a)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate activity: %w", rows.Err())
	}
	return acts, nil
}

func (r *OrderRepository) CreateCheckIns(ctx context.Context, records []domain.CheckInRecord) error {
	const stmt = `
INSERT INTO sign_checkins (id, order_id, tenant_id, item_id, condition, notes, photos, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	q := querier(ctx, r.pool)
	for _, rec := range records {
		if _, err := q.Exec(ctx, stmt,
			rec.ID, rec.OrderID, rec.TenantID, rec.ItemID, string(rec.Condition), rec.Notes, rec.Photos, rec.CreatedAt); err != nil {
			return fmt.Errorf("create check-in: %w", err)
		}
	}
	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(
		&o.ID, &o.TenantID, &o.HoldID, &o.Sequence, &o.OrderNumber, &o.InternalNumber,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &o.Customer.EventDate, &o.Customer.EventAddress,
		&o.SubtotalCents, &o.TotalCents, &status, &o.PaymentRef,
		&o.CancellationReason, &o.RefundAmountCents, &o.CancelledAt, &o.DeployedAt, &o.CompletedAt,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}

