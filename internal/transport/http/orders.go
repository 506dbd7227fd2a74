package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/THuebbe/yardsign/internal/app"
	"github.com/THuebbe/yardsign/internal/domain"
)

// OrderManager is the minimal interface needed by the order endpoints.
type OrderManager interface {
	CreateOrder(ctx context.Context, scope app.Scope, in app.CreateOrderInput) (domain.Order, []domain.OrderItem, error)
	GetOrder(ctx context.Context, scope app.Scope, orderID string) (domain.Order, []domain.OrderItem, error)
	Advance(ctx context.Context, scope app.Scope, orderID string, action domain.Action) (domain.Order, error)
	CancelOrder(ctx context.Context, scope app.Scope, orderID, reason string, policy domain.RefundPolicy) (app.CancelResult, error)
	EditOrderSigns(ctx context.Context, scope app.Scope, orderID string, in app.EditSignsInput) (domain.Order, []domain.OrderItem, error)
	CheckInSigns(ctx context.Context, scope app.Scope, orderID string, checkins []app.CheckInInput) (domain.Order, error)
	ListActivity(ctx context.Context, scope app.Scope, orderID string) ([]domain.OrderActivity, error)
}

// HandleCreateOrder returns the handler converting a hold into an order at
// checkout.
func HandleCreateOrder(svc OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := storefrontScope(r)
		if err != nil {
			respondError(w, err)
			return
		}

		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.HoldID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "hold_id is required")
			return
		}
		eventDate, err := parseDate(req.Customer.EventDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid event_date format")
			return
		}

		order, items, err := svc.CreateOrder(r.Context(), scope, app.CreateOrderInput{
			HoldID: req.HoldID,
			Customer: domain.Customer{
				Name:         req.Customer.Name,
				Email:        req.Customer.Email,
				Phone:        req.Customer.Phone,
				EventDate:    eventDate,
				EventAddress: req.Customer.EventAddress,
			},
			PaymentRef: req.PaymentRef,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toOrderResponse(order, items))
	}
}

// HandleGetOrder returns the dashboard order detail handler.
func HandleGetOrder(svc OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}
		order, items, err := svc.GetOrder(r.Context(), scope, chi.URLParam(r, "orderID"))
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order, items))
	}
}

// HandleAdvanceOrder returns the handler driving the order state machine by
// one action.
func HandleAdvanceOrder(svc OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}

		var req advanceRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Action == "" {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "action is required")
			return
		}

		order, err := svc.Advance(r.Context(), scope, chi.URLParam(r, "orderID"), domain.Action(req.Action))
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
	}
}

// HandleCancelOrder returns the handler for cancellation with an explicit
// refund policy.
func HandleCancelOrder(svc OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}

		var req cancelRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		policy := domain.RefundPolicy(req.RefundPolicy)
		if req.RefundPolicy == "" {
			policy = domain.RefundNone
		}

		result, err := svc.CancelOrder(r.Context(), scope, chi.URLParam(r, "orderID"), req.Reason, policy)
		if err != nil {
			respondError(w, err)
			return
		}

		resp := cancelResponse{
			Order:            toOrderResponse(result.Order, nil),
			ShouldAutoRefund: result.ShouldAutoRefund,
			RefundCents:      result.RefundCents,
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleEditOrderSigns returns the handler applying line deltas to an order.
func HandleEditOrderSigns(svc OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}

		var req editSignsRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		order, items, err := svc.EditOrderSigns(r.Context(), scope, chi.URLParam(r, "orderID"), app.EditSignsInput{
			Add:    toSignChanges(req.Add),
			Remove: toSignChanges(req.Remove),
			Update: toSignChanges(req.Update),
			Reason: req.Reason,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order, items))
	}
}

// HandleCheckInSigns returns the handler completing a deployed order with
// per-item condition records.
func HandleCheckInSigns(svc OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}

		var req checkInRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		checkins := make([]app.CheckInInput, 0, len(req.Items))
		for _, item := range req.Items {
			checkins = append(checkins, app.CheckInInput{
				ItemID:    item.ItemID,
				Condition: domain.SignCondition(item.Condition),
				Notes:     item.Notes,
				Photos:    item.Photos,
			})
		}

		order, err := svc.CheckInSigns(r.Context(), scope, chi.URLParam(r, "orderID"), checkins)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
	}
}

// HandleListActivity returns the audit trail handler.
func HandleListActivity(svc OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}
		acts, err := svc.ListActivity(r.Context(), scope, chi.URLParam(r, "orderID"))
		if err != nil {
			respondError(w, err)
			return
		}
		resp := make([]activityResponse, 0, len(acts))
		for _, a := range acts {
			resp = append(resp, activityResponse{
				ActorID:         a.ActorID,
				Action:          a.Action,
				ResultingStatus: string(a.ResultingStatus),
				Note:            a.Note,
				CreatedAt:       a.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type createOrderRequest struct {
	HoldID     string          `json:"hold_id"`
	Customer   customerRequest `json:"customer"`
	PaymentRef string          `json:"payment_ref,omitempty"`
}

type customerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	EventDate    string `json:"event_date"`
	EventAddress string `json:"event_address,omitempty"`
}

type advanceRequest struct {
	Action string `json:"action"`
}

type cancelRequest struct {
	Reason       string `json:"reason,omitempty"`
	RefundPolicy string `json:"refund_policy,omitempty"`
}

type cancelResponse struct {
	Order            orderResponse `json:"order"`
	ShouldAutoRefund bool          `json:"should_auto_refund"`
	RefundCents      int           `json:"refund_cents"`
}

type editSignsRequest struct {
	Add    []signChangeRequest `json:"add,omitempty"`
	Remove []signChangeRequest `json:"remove,omitempty"`
	Update []signChangeRequest `json:"update,omitempty"`
	Reason string              `json:"reason,omitempty"`
}

type signChangeRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

func toSignChanges(reqs []signChangeRequest) []app.SignChange {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]app.SignChange, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, app.SignChange{ItemID: r.ItemID, Quantity: r.Quantity})
	}
	return out
}

type checkInRequest struct {
	Items []checkInItemRequest `json:"items"`
}

type checkInItemRequest struct {
	ItemID    string   `json:"item_id"`
	Condition string   `json:"condition"`
	Notes     string   `json:"notes,omitempty"`
	Photos    []string `json:"photos,omitempty"`
}

type orderResponse struct {
	ID             string              `json:"id"`
	OrderNumber    string              `json:"order_number"`
	InternalNumber string              `json:"internal_number"`
	Status         string              `json:"status"`
	AllowedActions []string            `json:"allowed_actions"`
	Customer       customerResponse    `json:"customer"`
	SubtotalCents  int                 `json:"subtotal_cents"`
	TotalCents     int                 `json:"total_cents"`
	Items          []orderItemResponse `json:"items,omitempty"`
	Documents      []documentResponse  `json:"documents,omitempty"`
	CancelledAt    *time.Time          `json:"cancelled_at,omitempty"`
	DeployedAt     *time.Time          `json:"deployed_at,omitempty"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

type customerResponse struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	EventDate    time.Time `json:"event_date"`
	EventAddress string    `json:"event_address,omitempty"`
}

type orderItemResponse struct {
	ItemID         string `json:"item_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
	LineTotalCents int    `json:"line_total_cents"`
}

type documentResponse struct {
	Kind        string    `json:"kind"`
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	GeneratedAt time.Time `json:"generated_at"`
}

type activityResponse struct {
	ActorID         string    `json:"actor_id"`
	Action          string    `json:"action"`
	ResultingStatus string    `json:"resulting_status,omitempty"`
	Note            string    `json:"note,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toOrderResponse(order domain.Order, items []domain.OrderItem) orderResponse {
	resp := orderResponse{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		InternalNumber: order.InternalNumber,
		Status:         string(order.Status),
		Customer: customerResponse{
			Name:         order.Customer.Name,
			Email:        order.Customer.Email,
			Phone:        order.Customer.Phone,
			EventDate:    order.Customer.EventDate,
			EventAddress: order.Customer.EventAddress,
		},
		SubtotalCents: order.SubtotalCents,
		TotalCents:    order.TotalCents,
		CancelledAt:   order.CancelledAt,
		DeployedAt:    order.DeployedAt,
		CompletedAt:   order.CompletedAt,
		CreatedAt:     order.CreatedAt,
	}
	for _, a := range domain.AllowedActions(order.Status) {
		resp.AllowedActions = append(resp.AllowedActions, string(a))
	}
	for _, it := range items {
		resp.Items = append(resp.Items, orderItemResponse{
			ItemID:         it.ItemID,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			LineTotalCents: it.LineTotalCents,
		})
	}
	for _, d := range order.Documents {
		resp.Documents = append(resp.Documents, documentResponse{
			Kind:        string(d.Kind),
			URL:         d.URL,
			Filename:    d.Filename,
			GeneratedAt: d.GeneratedAt,
		})
	}
	return resp
}
