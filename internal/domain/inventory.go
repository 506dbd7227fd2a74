package domain

import "time"

// LedgerRow is the per-tenant, per-item stock record. The ledger invariant
// Quantity == Available + Allocated + Deployed holds after every mutation;
// all four counters stay non-negative.
type LedgerRow struct {
	ID        string
	TenantID  string
	ItemID    string
	Quantity  int
	Available int
	Allocated int
	Deployed  int
	UpdatedAt time.Time
}

// Balanced reports whether the row satisfies the ledger invariant.
func (r LedgerRow) Balanced() bool {
	return r.Quantity >= 0 && r.Available >= 0 && r.Allocated >= 0 && r.Deployed >= 0 &&
		r.Quantity == r.Available+r.Allocated+r.Deployed
}

// AddStock grows both total and available by qty.
func (r *LedgerRow) AddStock(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	r.Quantity += qty
	r.Available += qty
	return nil
}

// SetTotal rebases the total quantity, recomputing available around the
// committed counters. Fails when the new total is below what is already
// allocated or deployed.
func (r *LedgerRow) SetTotal(newQty int) error {
	if newQty < 0 {
		return ErrInvalidQuantity
	}
	available := newQty - r.Allocated - r.Deployed
	if available < 0 {
		return ErrStockCommitted
	}
	r.Quantity = newQty
	r.Available = available
	return nil
}

// Committed reports stock tied up by orders in flight.
func (r LedgerRow) Committed() bool {
	return r.Allocated > 0 || r.Deployed > 0
}

// The pipeline moves below are clamped rather than strict: bookability is
// decided by the date-windowed availability check, so the same physical
// sign can back two non-overlapping events. The counters track the working
// pipeline and never go negative.

// AllocateUpTo moves at most qty from available to allocated (order
// committed) and returns the amount actually moved.
func (r *LedgerRow) AllocateUpTo(qty int) int {
	return r.move(&r.Available, &r.Allocated, qty)
}

// DeployUpTo moves at most qty from allocated to deployed (signs placed).
func (r *LedgerRow) DeployUpTo(qty int) int {
	return r.move(&r.Allocated, &r.Deployed, qty)
}

// ReturnUpTo moves at most qty from deployed back to available (signs
// checked in).
func (r *LedgerRow) ReturnUpTo(qty int) int {
	return r.move(&r.Deployed, &r.Available, qty)
}

// ReleaseUpTo frees at most qty back to available on cancellation, draining
// allocated first, then deployed.
func (r *LedgerRow) ReleaseUpTo(qty int) int {
	moved := r.move(&r.Allocated, &r.Available, qty)
	if moved < qty {
		moved += r.move(&r.Deployed, &r.Available, qty-moved)
	}
	return moved
}

func (r *LedgerRow) move(from, to *int, qty int) int {
	if qty <= 0 {
		return 0
	}
	if qty > *from {
		qty = *from
	}
	*from -= qty
	*to += qty
	return qty
}
