package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/THuebbe/yardsign/internal/clock"
	"github.com/THuebbe/yardsign/internal/domain"
)

type OrderRepository interface {
	WithTx(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error
	GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error)
	LockTenant(ctx context.Context, tenantID string) (domain.Tenant, error)
	MaxSequence(ctx context.Context, tenantID string) (int, error)
	ClaimHold(ctx context.Context, tenantID, holdID string) (domain.Hold, []domain.HoldItem, error)
	AttachOrder(ctx context.Context, tenantID, holdID, orderID string) error
	CreateOrder(ctx context.Context, order domain.Order, items []domain.OrderItem) error
	GetOrder(ctx context.Context, tenantID, orderID string) (domain.Order, error)
	GetOrderForUpdate(ctx context.Context, tenantID, orderID string) (domain.Order, error)
	ListOrderItems(ctx context.Context, tenantID, orderID string) ([]domain.OrderItem, error)
	SaveOrder(ctx context.Context, order domain.Order) error
	UpsertOrderItem(ctx context.Context, tenantID string, item domain.OrderItem) error
	DeleteOrderItem(ctx context.Context, tenantID, orderItemID string) error
	GetItem(ctx context.Context, tenantID, itemID string) (domain.CatalogItem, error)
	GetRowByItemForUpdate(ctx context.Context, tenantID, itemID string) (domain.LedgerRow, error)
	SaveRow(ctx context.Context, row domain.LedgerRow) error
	AddDocument(ctx context.Context, tenantID, orderID string, doc domain.Document) error
	AppendActivity(ctx context.Context, act domain.OrderActivity) error
	ListActivity(ctx context.Context, tenantID, orderID string) ([]domain.OrderActivity, error)
	CreateCheckIns(ctx context.Context, records []domain.CheckInRecord) error
}

type OrderService struct {
	repo   OrderRepository
	clock  clock.Clock
	docs   DocumentGenerator
	events EventPublisher
	logger *zap.Logger
}

func NewOrderService(repo OrderRepository, clk clock.Clock, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		repo:   repo,
		clock:  clk,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type OrderServiceOption func(*OrderService)

// WithDocumentGenerator wires the external rendering collaborator.
func WithDocumentGenerator(g DocumentGenerator) OrderServiceOption {
	return func(s *OrderService) { s.docs = g }
}

// WithEventPublisher wires the lifecycle event stream.
func WithEventPublisher(p EventPublisher) OrderServiceOption {
	return func(s *OrderService) { s.events = p }
}

func WithLogger(l *zap.Logger) OrderServiceOption {
	return func(s *OrderService) {
		if l != nil {
			s.logger = l
		}
	}
}

type CreateOrderInput struct {
	HoldID     string
	Customer   domain.Customer
	PaymentRef string
}

// CreateOrder converts a live hold into a committed order. The hold claim
// is a conditional update only one caller can win; the loser, like any
// caller with an expired or missing hold, gets ErrHoldNotFound.
func (s *OrderService) CreateOrder(ctx context.Context, scope Scope, in CreateOrderInput) (domain.Order, []domain.OrderItem, error) {
	if err := scope.authorize(domain.PermManageOrders); err != nil {
		return domain.Order{}, nil, err
	}

	now := s.clock.Now()
	var (
		order domain.Order
		items []domain.OrderItem
	)

	err := s.repo.WithTx(ctx, scope.TenantID, func(txCtx context.Context) error {
		hold, holdItems, err := s.repo.ClaimHold(txCtx, scope.TenantID, in.HoldID)
		if err != nil {
			return err
		}
		if hold.Expired(now) {
			return domain.ErrHoldNotFound
		}
		if len(holdItems) == 0 {
			return domain.ErrNoItems
		}

		// The event date was capacity-checked when the hold was taken; the
		// order is pinned to it no matter what the caller submits, so a
		// checkout cannot rebook onto a fully committed date.
		customer := in.Customer
		customer.EventDate = hold.EventDate

		// Locking the tenant row serializes order numbering per tenant.
		tenant, err := s.repo.LockTenant(txCtx, scope.TenantID)
		if err != nil {
			return err
		}
		maxSeq, err := s.repo.MaxSequence(txCtx, scope.TenantID)
		if err != nil {
			return err
		}
		seq := maxSeq + 1

		subtotal := 0
		for _, hi := range holdItems {
			subtotal += hi.Quantity * hi.UnitPriceCents
		}

		order = domain.Order{
			ID:             newID(),
			TenantID:       scope.TenantID,
			HoldID:         hold.ID,
			Sequence:       seq,
			OrderNumber:    domain.FormatOrderNumber(tenant.Abbreviation, seq),
			InternalNumber: domain.FormatInternalNumber(tenant.Abbreviation, seq),
			Customer:       customer,
			SubtotalCents:  subtotal,
			TotalCents:     subtotal,
			Status:         domain.StatusPending,
			PaymentRef:     in.PaymentRef,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		items = make([]domain.OrderItem, 0, len(holdItems))
		for _, hi := range holdItems {
			items = append(items, domain.OrderItem{
				ID:             newID(),
				OrderID:        order.ID,
				ItemID:         hi.ItemID,
				Quantity:       hi.Quantity,
				UnitPriceCents: hi.UnitPriceCents,
				LineTotalCents: hi.Quantity * hi.UnitPriceCents,
			})
		}

		if err := s.repo.CreateOrder(txCtx, order, items); err != nil {
			return err
		}
		if err := s.repo.AttachOrder(txCtx, scope.TenantID, hold.ID, order.ID); err != nil {
			return err
		}
		for _, it := range items {
			if err := s.moveLedger(txCtx, scope.TenantID, it.ItemID, func(row *domain.LedgerRow) {
				row.AllocateUpTo(it.Quantity)
			}); err != nil {
				return err
			}
		}

		return s.repo.AppendActivity(txCtx, s.activity(scope, order.ID, "created", domain.StatusPending,
			fmt.Sprintf("order %s created from hold %s", order.OrderNumber, hold.ID)))
	})
	if err != nil {
		return domain.Order{}, nil, err
	}

	s.publish(ctx, Event{
		Type:     EventOrderCreated,
		TenantID: scope.TenantID,
		OrderID:  order.ID,
		Payload: map[string]any{
			"order_number": order.OrderNumber,
			"total_cents":  order.TotalCents,
		},
	})
	return order, items, nil
}

// Advance drives the state machine by one action. Document-producing
// actions call the rendering collaborator only after the transition is
// durable; a rendering failure is recorded as an activity note and never
// surfaces to the caller.
func (s *OrderService) Advance(ctx context.Context, scope Scope, orderID string, action domain.Action) (domain.Order, error) {
	switch action {
	case domain.ActionCancel:
		res, err := s.CancelOrder(ctx, scope, orderID, "", domain.RefundNone)
		return res.Order, err
	case domain.ActionCheckInSigns:
		return s.CheckInSigns(ctx, scope, orderID, nil)
	}

	if err := scope.authorize(domain.PermManageOrders); err != nil {
		return domain.Order{}, err
	}

	now := s.clock.Now()
	var order domain.Order

	err := s.repo.WithTx(ctx, scope.TenantID, func(txCtx context.Context) error {
		var err error
		order, err = s.repo.GetOrderForUpdate(txCtx, scope.TenantID, orderID)
		if err != nil {
			return err
		}
		next, err := domain.NextStatus(order.Status, action)
		if err != nil {
			return err
		}

		order.Status = next
		order.UpdatedAt = now
		if action == domain.ActionMarkDeployed {
			order.DeployedAt = &now
			items, err := s.repo.ListOrderItems(txCtx, scope.TenantID, orderID)
			if err != nil {
				return err
			}
			for _, it := range items {
				if err := s.moveLedger(txCtx, scope.TenantID, it.ItemID, func(row *domain.LedgerRow) {
					row.DeployUpTo(it.Quantity)
				}); err != nil {
					return err
				}
			}
		}

		if err := s.repo.SaveOrder(txCtx, order); err != nil {
			return err
		}
		return s.repo.AppendActivity(txCtx, s.activity(scope, orderID, string(action), next, ""))
	})
	if err != nil {
		return domain.Order{}, err
	}

	if kind, ok := domain.DocumentFor(action); ok {
		s.generateDocument(ctx, scope, order, kind)
	}
	s.publish(ctx, Event{
		Type:     EventOrderStatusChanged,
		TenantID: scope.TenantID,
		OrderID:  order.ID,
		Payload:  map[string]any{"action": string(action), "status": string(order.Status)},
	})
	return order, nil
}

type CancelResult struct {
	Order            domain.Order
	ShouldAutoRefund bool
	RefundCents      int
}

// CancelOrder cancels a non-terminal order and records the advisory refund
// intent; the payment collaborator, not this engine, moves money.
func (s *OrderService) CancelOrder(ctx context.Context, scope Scope, orderID, reason string, policy domain.RefundPolicy) (CancelResult, error) {
	if err := scope.authorize(domain.PermManageOrders); err != nil {
		return CancelResult{}, err
	}
	if policy != domain.RefundFull && policy != domain.RefundNone {
		return CancelResult{}, domain.ErrInvalidPolicy
	}

	now := s.clock.Now()
	var result CancelResult

	err := s.repo.WithTx(ctx, scope.TenantID, func(txCtx context.Context) error {
		order, err := s.repo.GetOrderForUpdate(txCtx, scope.TenantID, orderID)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return domain.ErrTerminalOrder
		}

		result.ShouldAutoRefund = order.ShouldAutoRefund(now)
		refund, err := order.RefundAmount(policy, now)
		if err != nil {
			return err
		}

		order.Status = domain.StatusCancelled
		order.CancelledAt = &now
		order.CancellationReason = reason
		order.RefundAmountCents = refund
		order.UpdatedAt = now

		items, err := s.repo.ListOrderItems(txCtx, scope.TenantID, orderID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := s.moveLedger(txCtx, scope.TenantID, it.ItemID, func(row *domain.LedgerRow) {
				row.ReleaseUpTo(it.Quantity)
			}); err != nil {
				return err
			}
		}

		if err := s.repo.SaveOrder(txCtx, order); err != nil {
			return err
		}

		note := "cancelled"
		if reason != "" {
			note = fmt.Sprintf("cancelled: %s", reason)
		}
		if refund > 0 {
			note = fmt.Sprintf("%s (refund %d cents)", note, refund)
		}
		if err := s.repo.AppendActivity(txCtx, s.activity(scope, orderID, string(domain.ActionCancel), domain.StatusCancelled, note)); err != nil {
			return err
		}

		result.Order = order
		result.RefundCents = refund
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}

	s.publish(ctx, Event{
		Type:     EventOrderStatusChanged,
		TenantID: scope.TenantID,
		OrderID:  result.Order.ID,
		Payload: map[string]any{
			"action":       string(domain.ActionCancel),
			"status":       string(domain.StatusCancelled),
			"refund_cents": result.RefundCents,
		},
	})
	return result, nil
}

// SignChange is one delta in an order edit.
type SignChange struct {
	ItemID   string
	Quantity int
}

type EditSignsInput struct {
	Add    []SignChange
	Remove []SignChange
	Update []SignChange
	Reason string
}

// EditOrderSigns applies line deltas to a non-terminal order, then
// recomputes the totals from the resulting item set rather than adjusting
// them incrementally. All deltas land in one consolidated activity entry.
func (s *OrderService) EditOrderSigns(ctx context.Context, scope Scope, orderID string, in EditSignsInput) (domain.Order, []domain.OrderItem, error) {
	if err := scope.authorize(domain.PermManageOrders); err != nil {
		return domain.Order{}, nil, err
	}

	now := s.clock.Now()
	var (
		order domain.Order
		items []domain.OrderItem
	)

	err := s.repo.WithTx(ctx, scope.TenantID, func(txCtx context.Context) error {
		var err error
		order, err = s.repo.GetOrderForUpdate(txCtx, scope.TenantID, orderID)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return domain.ErrTerminalOrder
		}

		current, err := s.repo.ListOrderItems(txCtx, scope.TenantID, orderID)
		if err != nil {
			return err
		}
		var ordered []*domain.OrderItem
		byItem := make(map[string]*domain.OrderItem, len(current))
		for i := range current {
			line := current[i]
			ordered = append(ordered, &line)
			byItem[line.ItemID] = &line
		}

		var notes []string

		for _, change := range in.Add {
			if change.Quantity <= 0 {
				return domain.ErrInvalidQuantity
			}
			if line, ok := byItem[change.ItemID]; ok {
				line.Quantity += change.Quantity
			} else {
				item, err := s.repo.GetItem(txCtx, scope.TenantID, change.ItemID)
				if err != nil {
					return err
				}
				line := &domain.OrderItem{
					ID:             newID(),
					OrderID:        orderID,
					ItemID:         change.ItemID,
					Quantity:       change.Quantity,
					UnitPriceCents: item.UnitPriceCents,
				}
				ordered = append(ordered, line)
				byItem[change.ItemID] = line
			}
			notes = append(notes, fmt.Sprintf("+%d of %s", change.Quantity, change.ItemID))
		}

		for _, change := range in.Remove {
			if change.Quantity <= 0 {
				return domain.ErrInvalidQuantity
			}
			line, ok := byItem[change.ItemID]
			if !ok {
				return domain.ErrItemNotFound
			}
			line.Quantity -= change.Quantity
			if line.Quantity < 0 {
				line.Quantity = 0
			}
			notes = append(notes, fmt.Sprintf("-%d of %s", change.Quantity, change.ItemID))
		}

		for _, change := range in.Update {
			if change.Quantity < 0 {
				return domain.ErrInvalidQuantity
			}
			line, ok := byItem[change.ItemID]
			if !ok {
				return domain.ErrItemNotFound
			}
			line.Quantity = change.Quantity
			notes = append(notes, fmt.Sprintf("%s set to %d", change.ItemID, change.Quantity))
		}

		items = items[:0]
		for _, line := range ordered {
			if line.Quantity == 0 {
				if err := s.repo.DeleteOrderItem(txCtx, scope.TenantID, line.ID); err != nil {
					return err
				}
				continue
			}
			line.LineTotalCents = line.Quantity * line.UnitPriceCents
			if err := s.repo.UpsertOrderItem(txCtx, scope.TenantID, *line); err != nil {
				return err
			}
			items = append(items, *line)
		}

		order.SubtotalCents = domain.SumLineTotals(items)
		order.TotalCents = order.SubtotalCents
		order.UpdatedAt = now
		if err := s.repo.SaveOrder(txCtx, order); err != nil {
			return err
		}

		note := strings.Join(notes, ", ")
		if in.Reason != "" {
			note = fmt.Sprintf("%s (%s)", note, in.Reason)
		}
		return s.repo.AppendActivity(txCtx, s.activity(scope, orderID, "edit_signs", order.Status, note))
	})
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, items, nil
}

// CheckInInput records the return of one item line.
type CheckInInput struct {
	ItemID    string
	Condition domain.SignCondition
	Notes     string
	Photos    []string
}

// CheckInSigns completes a deployed order, persisting one condition record
// per returned line. Condition values are advisory; damaged or missing
// stock is written off by an explicit SetTotalQuantity call, not here.
func (s *OrderService) CheckInSigns(ctx context.Context, scope Scope, orderID string, checkins []CheckInInput) (domain.Order, error) {
	if err := scope.authorize(domain.PermManageOrders); err != nil {
		return domain.Order{}, err
	}
	for _, ci := range checkins {
		if !domain.ValidCondition(ci.Condition) {
			return domain.Order{}, domain.ErrInvalidCondition
		}
	}

	now := s.clock.Now()
	var order domain.Order

	err := s.repo.WithTx(ctx, scope.TenantID, func(txCtx context.Context) error {
		var err error
		order, err = s.repo.GetOrderForUpdate(txCtx, scope.TenantID, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusDeployed {
			return fmt.Errorf("check-in requires a deployed order: %w", domain.ErrConflict)
		}

		order.Status = domain.StatusCompleted
		order.CompletedAt = &now
		order.UpdatedAt = now

		records := make([]domain.CheckInRecord, 0, len(checkins))
		for _, ci := range checkins {
			records = append(records, domain.CheckInRecord{
				ID:        newID(),
				OrderID:   orderID,
				TenantID:  scope.TenantID,
				ItemID:    ci.ItemID,
				Condition: ci.Condition,
				Notes:     ci.Notes,
				Photos:    ci.Photos,
				CreatedAt: now,
			})
		}
		if len(records) > 0 {
			if err := s.repo.CreateCheckIns(txCtx, records); err != nil {
				return err
			}
		}

		items, err := s.repo.ListOrderItems(txCtx, scope.TenantID, orderID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := s.moveLedger(txCtx, scope.TenantID, it.ItemID, func(row *domain.LedgerRow) {
				row.ReturnUpTo(it.Quantity)
			}); err != nil {
				return err
			}
		}

		if err := s.repo.SaveOrder(txCtx, order); err != nil {
			return err
		}
		return s.repo.AppendActivity(txCtx, s.activity(scope, orderID, string(domain.ActionCheckInSigns), domain.StatusCompleted,
			fmt.Sprintf("%d line(s) checked in", len(checkins))))
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publish(ctx, Event{
		Type:     EventOrderStatusChanged,
		TenantID: scope.TenantID,
		OrderID:  order.ID,
		Payload:  map[string]any{"action": string(domain.ActionCheckInSigns), "status": string(domain.StatusCompleted)},
	})
	return order, nil
}

// GetOrder returns one order with its lines, scoped to the caller's tenant.
func (s *OrderService) GetOrder(ctx context.Context, scope Scope, orderID string) (domain.Order, []domain.OrderItem, error) {
	if err := scope.authorize(domain.PermViewOrders); err != nil {
		return domain.Order{}, nil, err
	}
	order, err := s.repo.GetOrder(ctx, scope.TenantID, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	items, err := s.repo.ListOrderItems(ctx, scope.TenantID, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, items, nil
}

// ListActivity returns the order's append-only audit trail.
func (s *OrderService) ListActivity(ctx context.Context, scope Scope, orderID string) ([]domain.OrderActivity, error) {
	if err := scope.authorize(domain.PermViewOrders); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetOrder(ctx, scope.TenantID, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListActivity(ctx, scope.TenantID, orderID)
}

// moveLedger loads an item's row with a lock, applies a pipeline move, and
// saves. Items without a ledger row are skipped; the date-windowed check
// is the booking gate, the counters only track the physical pipeline.
func (s *OrderService) moveLedger(ctx context.Context, tenantID, itemID string, move func(*domain.LedgerRow)) error {
	row, err := s.repo.GetRowByItemForUpdate(ctx, tenantID, itemID)
	if errors.Is(err, domain.ErrRowNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	move(&row)
	row.UpdatedAt = s.clock.Now()
	return s.repo.SaveRow(ctx, row)
}

// generateDocument runs after the transition committed. Failure here must
// never leave the order stuck, so it is logged and noted, not returned.
func (s *OrderService) generateDocument(ctx context.Context, scope Scope, order domain.Order, kind domain.DocumentKind) {
	if s.docs == nil {
		return
	}

	tenant, err := s.repo.GetTenant(ctx, scope.TenantID)
	if err != nil {
		s.noteDocumentFailure(ctx, scope, order.ID, kind, err)
		return
	}
	items, err := s.repo.ListOrderItems(ctx, scope.TenantID, order.ID)
	if err != nil {
		s.noteDocumentFailure(ctx, scope, order.ID, kind, err)
		return
	}

	doc, err := s.docs.Generate(ctx, kind, OrderSnapshot{Tenant: tenant, Order: order, Items: items})
	if err != nil {
		s.noteDocumentFailure(ctx, scope, order.ID, kind, err)
		return
	}

	if err := s.repo.AddDocument(ctx, scope.TenantID, order.ID, doc); err != nil {
		s.logger.Warn("record generated document",
			zap.String("order_id", order.ID), zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	_ = s.repo.AppendActivity(ctx, s.activity(scope, order.ID, "document_generated", order.Status,
		fmt.Sprintf("%s generated: %s", kind, doc.Filename)))
	s.publish(ctx, Event{
		Type:     EventOrderDocument,
		TenantID: scope.TenantID,
		OrderID:  order.ID,
		Payload:  map[string]any{"kind": string(kind), "url": doc.URL},
	})
}

func (s *OrderService) noteDocumentFailure(ctx context.Context, scope Scope, orderID string, kind domain.DocumentKind, cause error) {
	s.logger.Warn("document generation failed",
		zap.String("order_id", orderID), zap.String("kind", string(kind)), zap.Error(cause))
	_ = s.repo.AppendActivity(ctx, s.activity(scope, orderID, "document_failed", "",
		fmt.Sprintf("%s generation failed: %v", kind, cause)))
}

func (s *OrderService) activity(scope Scope, orderID, action string, status domain.OrderStatus, note string) domain.OrderActivity {
	return domain.OrderActivity{
		ID:              newID(),
		OrderID:         orderID,
		TenantID:        scope.TenantID,
		ActorID:         scope.ActorID,
		Action:          action,
		ResultingStatus: status,
		Note:            note,
		CreatedAt:       s.clock.Now(),
	}
}

func (s *OrderService) publish(ctx context.Context, evt Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, evt)
}
