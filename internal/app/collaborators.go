package app

import (
	"context"

	"github.com/THuebbe/yardsign/internal/domain"
)

// Event is one lifecycle fact published to the append-only stream after the
// owning transaction commits.
type Event struct {
	Type     string
	TenantID string
	OrderID  string
	Payload  any
}

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDocument      = "order.document"
)

// EventPublisher is fire-and-forget; implementations must never block a
// request on broker availability.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event)
}

// OrderSnapshot is what the document collaborator renders from.
type OrderSnapshot struct {
	Tenant domain.Tenant
	Order  domain.Order
	Items  []domain.OrderItem
}

// DocumentGenerator is the external rendering collaborator. Failures are
// recorded as activity notes and never abort the owning state transition.
type DocumentGenerator interface {
	Generate(ctx context.Context, kind domain.DocumentKind, snap OrderSnapshot) (domain.Document, error)
}
