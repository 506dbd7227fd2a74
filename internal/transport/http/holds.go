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

// HoldManager is the minimal interface needed by the checkout hold endpoints.
type HoldManager interface {
	CreateHold(ctx context.Context, scope app.Scope, in app.CreateHoldInput) (domain.Hold, []domain.HoldItem, error)
	ReleaseHold(ctx context.Context, scope app.Scope, holdID string) error
}

// HandleCreateHold returns the handler for the storefront hold endpoint.
func HandleCreateHold(svc HoldManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := storefrontScope(r)
		if err != nil {
			respondError(w, err)
			return
		}

		var req createHoldRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		eventDate, err := parseDate(req.EventDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid event_date format")
			return
		}

		lines := make([]app.HoldLine, 0, len(req.Items))
		for _, item := range req.Items {
			lines = append(lines, app.HoldLine{ItemID: item.ItemID, Quantity: item.Quantity})
		}

		hold, items, err := svc.CreateHold(r.Context(), scope, app.CreateHoldInput{
			Lines:     lines,
			EventDate: eventDate,
			SessionID: req.SessionID,
		})
		if err != nil {
			respondError(w, err)
			return
		}

		resp := holdResponse{
			ID:        hold.ID,
			EventDate: hold.EventDate,
			ExpiresAt: hold.ExpiresAt,
			Items:     make([]holdItemResponse, 0, len(items)),
		}
		for _, hi := range items {
			resp.Items = append(resp.Items, holdItemResponse{
				ItemID:         hi.ItemID,
				Quantity:       hi.Quantity,
				UnitPriceCents: hi.UnitPriceCents,
			})
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// HandleReleaseHold returns the handler for abandoning a hold before expiry.
func HandleReleaseHold(svc HoldManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := storefrontScope(r)
		if err != nil {
			respondError(w, err)
			return
		}
		if err := svc.ReleaseHold(r.Context(), scope, chi.URLParam(r, "holdID")); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type createHoldRequest struct {
	Items     []holdLineRequest `json:"items"`
	EventDate string            `json:"event_date"`
	SessionID string            `json:"session_id,omitempty"`
}

type holdLineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type holdResponse struct {
	ID        string             `json:"id"`
	EventDate time.Time          `json:"event_date"`
	ExpiresAt time.Time          `json:"expires_at"`
	Items     []holdItemResponse `json:"items"`
}

type holdItemResponse struct {
	ItemID         string `json:"item_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

// parseDate accepts a full timestamp or a bare calendar date.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
