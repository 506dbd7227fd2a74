package domain

import "time"

// Hold is a time-boxed soft reservation made during checkout, before any
// order exists. It reserves nothing against the ledger counters; capacity
// is enforced by the date-windowed availability check at creation and again
// at fulfillment.
type Hold struct {
	ID        string
	TenantID  string
	OrderID   string
	SessionID string
	EventDate time.Time
	ExpiresAt time.Time
	Active    bool
	CreatedAt time.Time
}

// Expired reports whether the hold's TTL has lapsed, regardless of the
// Active flag. Consumers must reject expired holds even before the sweeper
// flips them inactive. A hold is still good at the expiry instant itself;
// only strictly later is it dead.
func (h Hold) Expired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

// HoldItem is one reserved line with its unit price locked at creation.
// HoldItems live and die with their parent hold.
type HoldItem struct {
	ID             string
	HoldID         string
	ItemID         string
	Quantity       int
	UnitPriceCents int
}
