package app

import (
	"context"
	"time"

	"github.com/THuebbe/yardsign/internal/clock"
	"github.com/THuebbe/yardsign/internal/domain"
)

type HoldRepository interface {
	WithTx(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error
	ResolveItems(ctx context.Context, tenantID string, itemIDs []string) (map[string]domain.CatalogItem, error)
	LedgerTotals(ctx context.Context, tenantID string, itemIDs []string) (map[string]int, error)
	CommittedInWindow(ctx context.Context, tenantID string, itemIDs []string, from, to time.Time) (map[string]int, error)
	HeldInWindow(ctx context.Context, tenantID string, itemIDs []string, from, to, now time.Time) (map[string]int, error)
	CreateHold(ctx context.Context, hold domain.Hold, items []domain.HoldItem) error
	ReleaseHold(ctx context.Context, tenantID, holdID string) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type HoldService struct {
	repo    HoldRepository
	clock   clock.Clock
	holdTTL time.Duration
}

const defaultHoldTTL = 15 * time.Minute

func NewHoldService(repo HoldRepository, clk clock.Clock, opts ...HoldServiceOption) *HoldService {
	svc := &HoldService{
		repo:    repo,
		clock:   clk,
		holdTTL: defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type HoldServiceOption func(*HoldService)

// WithHoldTTL overrides the default TTL for new holds.
func WithHoldTTL(d time.Duration) HoldServiceOption {
	return func(s *HoldService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// HoldLine is one requested item at checkout.
type HoldLine struct {
	ItemID   string
	Quantity int
}

type CreateHoldInput struct {
	Lines     []HoldLine
	EventDate time.Time
	SessionID string
}

// CreateHold persists a hold and its lines with prices locked at the
// catalog's current values. The hold reserves nothing against the ledger
// counters; bookability is enforced here by the date-windowed check over
// committed orders plus live holds for the same event date, and enforced
// again at fulfillment.
func (s *HoldService) CreateHold(ctx context.Context, scope Scope, in CreateHoldInput) (domain.Hold, []domain.HoldItem, error) {
	if err := scope.authorize(domain.PermManageOrders); err != nil {
		return domain.Hold{}, nil, err
	}
	if len(in.Lines) == 0 {
		return domain.Hold{}, nil, domain.ErrNoItems
	}
	itemIDs := make([]string, 0, len(in.Lines))
	for _, line := range in.Lines {
		if line.Quantity <= 0 {
			return domain.Hold{}, nil, domain.ErrInvalidQuantity
		}
		itemIDs = append(itemIDs, line.ItemID)
	}

	now := s.clock.Now()
	var (
		hold  domain.Hold
		items []domain.HoldItem
	)

	err := s.repo.WithTx(ctx, scope.TenantID, func(txCtx context.Context) error {
		catalog, err := s.repo.ResolveItems(txCtx, scope.TenantID, itemIDs)
		if err != nil {
			return err
		}
		for _, id := range itemIDs {
			if _, ok := catalog[id]; !ok {
				return domain.ErrItemNotFound
			}
		}

		totals, err := s.repo.LedgerTotals(txCtx, scope.TenantID, itemIDs)
		if err != nil {
			return err
		}
		committed, err := s.repo.CommittedInWindow(txCtx, scope.TenantID, itemIDs, in.EventDate, in.EventDate)
		if err != nil {
			return err
		}
		held, err := s.repo.HeldInWindow(txCtx, scope.TenantID, itemIDs, in.EventDate, in.EventDate, now)
		if err != nil {
			return err
		}
		for _, line := range in.Lines {
			available := totals[line.ItemID] - committed[line.ItemID] - held[line.ItemID]
			if line.Quantity > available {
				return domain.ErrUnavailable
			}
		}

		hold = domain.Hold{
			ID:        newID(),
			TenantID:  scope.TenantID,
			SessionID: in.SessionID,
			EventDate: in.EventDate,
			ExpiresAt: now.Add(s.holdTTL),
			Active:    true,
			CreatedAt: now,
		}
		items = make([]domain.HoldItem, 0, len(in.Lines))
		for _, line := range in.Lines {
			items = append(items, domain.HoldItem{
				ID:             newID(),
				HoldID:         hold.ID,
				ItemID:         line.ItemID,
				Quantity:       line.Quantity,
				UnitPriceCents: catalog[line.ItemID].UnitPriceCents,
			})
		}
		return s.repo.CreateHold(txCtx, hold, items)
	})
	if err != nil {
		return domain.Hold{}, nil, err
	}
	return hold, items, nil
}

// ReleaseHold explicitly frees an active hold before it expires.
func (s *HoldService) ReleaseHold(ctx context.Context, scope Scope, holdID string) error {
	if err := scope.authorize(domain.PermManageOrders); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, scope.TenantID, func(txCtx context.Context) error {
		return s.repo.ReleaseHold(txCtx, scope.TenantID, holdID)
	})
}

// SweepExpired flips lapsed holds to inactive across all tenants. Expiry is
// already enforced at read time; the sweep is bookkeeping so abandoned
// checkouts do not pile up as active rows.
func (s *HoldService) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeactivateExpired(ctx, s.clock.Now())
}
