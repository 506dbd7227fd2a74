package app

import (
	"context"
	"errors"
	"time"

	"github.com/THuebbe/yardsign/internal/clock"
	"github.com/THuebbe/yardsign/internal/domain"
)

type InventoryRepository interface {
	WithTx(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error
	WithReadTx(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error
	GetItem(ctx context.Context, tenantID, itemID string) (domain.CatalogItem, error)
	GetRowForUpdate(ctx context.Context, tenantID, rowID string) (domain.LedgerRow, error)
	GetRowByItemForUpdate(ctx context.Context, tenantID, itemID string) (domain.LedgerRow, error)
	CreateRow(ctx context.Context, row domain.LedgerRow) error
	SaveRow(ctx context.Context, row domain.LedgerRow) error
	DeleteRow(ctx context.Context, tenantID, rowID string) error
	ListRows(ctx context.Context, tenantID string) ([]domain.LedgerRow, error)
	LedgerTotals(ctx context.Context, tenantID string, itemIDs []string) (map[string]int, error)
	CommittedInWindow(ctx context.Context, tenantID string, itemIDs []string, from, to time.Time) (map[string]int, error)
}

type InventoryService struct {
	repo  InventoryRepository
	clock clock.Clock
}

func NewInventoryService(repo InventoryRepository, clk clock.Clock) *InventoryService {
	return &InventoryService{repo: repo, clock: clk}
}

// AddStock upserts a ledger row for the item and grows both total and
// available by qty.
func (s *InventoryService) AddStock(ctx context.Context, scope Scope, itemID string, qty int) (domain.LedgerRow, error) {
	if err := scope.authorize(domain.PermManageInventory); err != nil {
		return domain.LedgerRow{}, err
	}
	if qty <= 0 {
		return domain.LedgerRow{}, domain.ErrInvalidQuantity
	}

	now := s.clock.Now()
	var result domain.LedgerRow

	err := s.repo.WithTx(ctx, scope.TenantID, func(txCtx context.Context) error {
		if _, err := s.repo.GetItem(txCtx, scope.TenantID, itemID); err != nil {
			return err
		}

		row, err := s.repo.GetRowByItemForUpdate(txCtx, scope.TenantID, itemID)
		switch {
		case err == nil:
			if err := row.AddStock(qty); err != nil {
				return err
			}
			row.UpdatedAt = now
			if err := s.repo.SaveRow(txCtx, row); err != nil {
				return err
			}
		case errors.Is(err, domain.ErrRowNotFound):
			row = domain.LedgerRow{
				ID:        newID(),
				TenantID:  scope.TenantID,
				ItemID:    itemID,
				Quantity:  qty,
				Available: qty,
				UpdatedAt: now,
			}
			if err := s.repo.CreateRow(txCtx, row); err != nil {
				return err
			}
		default:
			return err
		}

		result = row
		return nil
	})
	if err != nil {
		return domain.LedgerRow{}, err
	}
	return result, nil
}

// SetTotalQuantity rebases a row's total. Fails when the new total is below
// what orders already hold.
func (s *InventoryService) SetTotalQuantity(ctx context.Context, scope Scope, rowID string, newQty int) (domain.LedgerRow, error) {
	if err := scope.authorize(domain.PermManageInventory); err != nil {
		return domain.LedgerRow{}, err
	}

	var result domain.LedgerRow
	err := s.repo.WithTx(ctx, scope.TenantID, func(txCtx context.Context) error {
		row, err := s.repo.GetRowForUpdate(txCtx, scope.TenantID, rowID)
		if err != nil {
			return err
		}
		if err := row.SetTotal(newQty); err != nil {
			return err
		}
		row.UpdatedAt = s.clock.Now()
		if err := s.repo.SaveRow(txCtx, row); err != nil {
			return err
		}
		result = row
		return nil
	})
	if err != nil {
		return domain.LedgerRow{}, err
	}
	return result, nil
}

// RemoveRow deletes a ledger row. Rows with stock committed to orders
// cannot be removed.
func (s *InventoryService) RemoveRow(ctx context.Context, scope Scope, rowID string) error {
	if err := scope.authorize(domain.PermManageInventory); err != nil {
		return err
	}

	return s.repo.WithTx(ctx, scope.TenantID, func(txCtx context.Context) error {
		row, err := s.repo.GetRowForUpdate(txCtx, scope.TenantID, rowID)
		if err != nil {
			return err
		}
		if row.Committed() {
			return domain.ErrRowInUse
		}
		return s.repo.DeleteRow(txCtx, scope.TenantID, rowID)
	})
}

// ListRows returns the tenant's ledger.
func (s *InventoryService) ListRows(ctx context.Context, scope Scope) ([]domain.LedgerRow, error) {
	if err := scope.authorize(domain.PermViewOrders); err != nil {
		return nil, err
	}
	return s.repo.ListRows(ctx, scope.TenantID)
}

// AvailabilityRequest asks whether qty of one item is free in a window.
type AvailabilityRequest struct {
	ItemID   string
	Quantity int
}

// ItemAvailability is the per-item verdict of a bulk check.
type ItemAvailability struct {
	ItemID    string
	Requested int
	Total     int
	Committed int
	Available int
	OK        bool
}

// AvailabilityReport aggregates a bulk check; AllAvailable is the
// all-or-nothing verdict.
type AvailabilityReport struct {
	Items        []ItemAvailability
	AllAvailable bool
}

// CheckBulkAvailability runs the date-windowed availability check: ledger
// total minus stock committed by non-terminal orders whose event date falls
// in [from, to]. This is deliberately distinct from the row's own
// allocated/deployed counters because signs are reusable across
// non-overlapping events. The whole check runs in one repeatable-read
// transaction so both sums come off the same snapshot.
func (s *InventoryService) CheckBulkAvailability(ctx context.Context, scope Scope, reqs []AvailabilityRequest, from, to time.Time) (AvailabilityReport, error) {
	if err := scope.authorize(domain.PermViewOrders); err != nil {
		return AvailabilityReport{}, err
	}
	if len(reqs) == 0 {
		return AvailabilityReport{}, domain.ErrNoItems
	}
	for _, req := range reqs {
		if req.Quantity <= 0 {
			return AvailabilityReport{}, domain.ErrInvalidQuantity
		}
	}

	itemIDs := make([]string, 0, len(reqs))
	for _, req := range reqs {
		itemIDs = append(itemIDs, req.ItemID)
	}

	var report AvailabilityReport
	err := s.repo.WithReadTx(ctx, scope.TenantID, func(txCtx context.Context) error {
		totals, err := s.repo.LedgerTotals(txCtx, scope.TenantID, itemIDs)
		if err != nil {
			return err
		}
		committed, err := s.repo.CommittedInWindow(txCtx, scope.TenantID, itemIDs, from, to)
		if err != nil {
			return err
		}

		report.AllAvailable = true
		for _, req := range reqs {
			available := totals[req.ItemID] - committed[req.ItemID]
			if available < 0 {
				available = 0
			}
			ok := available >= req.Quantity
			if !ok {
				report.AllAvailable = false
			}
			report.Items = append(report.Items, ItemAvailability{
				ItemID:    req.ItemID,
				Requested: req.Quantity,
				Total:     totals[req.ItemID],
				Committed: committed[req.ItemID],
				Available: available,
				OK:        ok,
			})
		}
		return nil
	})
	if err != nil {
		return AvailabilityReport{}, err
	}
	return report, nil
}
