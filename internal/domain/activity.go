package domain

import "time"

// OrderActivity is one append-only audit row. Activities are never updated
// or deleted.
type OrderActivity struct {
	ID              string
	OrderID         string
	TenantID        string
	ActorID         string
	Action          string
	ResultingStatus OrderStatus
	Note            string
	CreatedAt       time.Time
}

// SignCondition is the state a sign came back in. Advisory for downstream
// condition tracking; check-in does not write stock off by itself.
type SignCondition string

const (
	ConditionGood    SignCondition = "good"
	ConditionDamaged SignCondition = "damaged"
	ConditionMissing SignCondition = "missing"
)

// ValidCondition reports whether c is one of the closed condition set.
func ValidCondition(c SignCondition) bool {
	switch c {
	case ConditionGood, ConditionDamaged, ConditionMissing:
		return true
	}
	return false
}

// CheckInRecord captures the return of one item line at order completion.
type CheckInRecord struct {
	ID        string
	OrderID   string
	TenantID  string
	ItemID    string
	Condition SignCondition
	Notes     string
	Photos    []string
	CreatedAt time.Time
}
