package domain

import (
	"fmt"
	"sort"
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusDeployed   OrderStatus = "deployed"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// Action names a lifecycle operation on an order.
type Action string

const (
	ActionGeneratePickTicket Action = "generate_pick_ticket"
	ActionPrintOrderSummary  Action = "print_order_summary"
	ActionMarkDeployed       Action = "mark_deployed"
	ActionCheckInSigns       Action = "check_in_signs"
	ActionCancel             Action = "cancel"
)

// transitions is the authoritative state table. printOrderSummary is a
// document action that leaves the order in processing.
var transitions = map[OrderStatus]map[Action]OrderStatus{
	StatusPending: {
		ActionGeneratePickTicket: StatusProcessing,
		ActionCancel:             StatusCancelled,
	},
	StatusProcessing: {
		ActionPrintOrderSummary: StatusProcessing,
		ActionMarkDeployed:      StatusDeployed,
		ActionCancel:            StatusCancelled,
	},
	StatusDeployed: {
		ActionCheckInSigns: StatusCompleted,
		ActionCancel:       StatusCancelled,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

// Terminal reports whether a status admits no further actions.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AllowedActions lists the actions legal in the given status, sorted for
// stable output.
func AllowedActions(s OrderStatus) []Action {
	set := transitions[s]
	out := make([]Action, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NextStatus resolves the state table for one action.
func NextStatus(s OrderStatus, a Action) (OrderStatus, error) {
	next, ok := transitions[s][a]
	if !ok {
		return "", fmt.Errorf("%s not allowed in %s: %w", a, s, ErrInvalidTransition)
	}
	return next, nil
}

// Customer carries the contact and event details captured at checkout.
type Customer struct {
	Name         string
	Email        string
	Phone        string
	EventDate    time.Time
	EventAddress string
}

// Order is a committed, billable transaction derived from exactly one hold.
type Order struct {
	ID                 string
	TenantID           string
	HoldID             string
	Sequence           int
	OrderNumber        string
	InternalNumber     string
	Customer           Customer
	SubtotalCents      int
	TotalCents         int
	Status             OrderStatus
	PaymentRef         string
	CancellationReason string
	RefundAmountCents  int
	CancelledAt        *time.Time
	DeployedAt         *time.Time
	CompletedAt        *time.Time
	Documents          []Document
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OrderNumber formats the customer-facing number, e.g. ABC0042.
func FormatOrderNumber(abbrev string, seq int) string {
	return fmt.Sprintf("%s%04d", abbrev, seq)
}

// FormatInternalNumber formats the internal number, e.g. ABC-42.
func FormatInternalNumber(abbrev string, seq int) string {
	return fmt.Sprintf("%s-%d", abbrev, seq)
}

// OrderItem is one billable line. Mutable only while the order is not
// terminal; LineTotalCents is always Quantity * UnitPriceCents.
type OrderItem struct {
	ID             string
	OrderID        string
	ItemID         string
	Quantity       int
	UnitPriceCents int
	LineTotalCents int
}

// SumLineTotals recomputes an order total from scratch. Edits never do
// incremental arithmetic.
func SumLineTotals(items []OrderItem) int {
	total := 0
	for _, it := range items {
		total += it.LineTotalCents
	}
	return total
}

// RefundPolicy is advisory metadata for the payment collaborator; the
// engine records intent and never moves money.
type RefundPolicy string

const (
	RefundFull RefundPolicy = "full"
	RefundNone RefundPolicy = "none"
)

// autoRefundWindow bounds how long after creation a cancellation still
// qualifies for an automatic refund.
const autoRefundWindow = 24 * time.Hour

// ShouldAutoRefund reports whether a cancellation at now qualifies for an
// automatic refund.
func (o Order) ShouldAutoRefund(now time.Time) bool {
	return !o.Status.Terminal() && now.Sub(o.CreatedAt) <= autoRefundWindow
}

// RefundAmount resolves the advisory refund for a policy.
func (o Order) RefundAmount(policy RefundPolicy, now time.Time) (int, error) {
	switch policy {
	case RefundFull:
		if o.ShouldAutoRefund(now) {
			return o.TotalCents, nil
		}
		return 0, nil
	case RefundNone:
		return 0, nil
	default:
		return 0, ErrInvalidPolicy
	}
}

type DocumentKind string

const (
	DocPickTicket      DocumentKind = "pickTicket"
	DocOrderSummary    DocumentKind = "orderSummary"
	DocPickupChecklist DocumentKind = "pickupChecklist"
)

// Document is a generated artifact reference persisted on the order; the
// rendering itself is an external collaborator's concern.
type Document struct {
	Kind        DocumentKind
	URL         string
	Filename    string
	GeneratedAt time.Time
}

// DocumentFor maps document-producing actions to the kind they emit.
// Actions with no document return false.
func DocumentFor(a Action) (DocumentKind, bool) {
	switch a {
	case ActionGeneratePickTicket:
		return DocPickTicket, true
	case ActionPrintOrderSummary:
		return DocOrderSummary, true
	default:
		return "", false
	}
}
