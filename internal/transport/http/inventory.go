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

// InventoryManager is the minimal interface needed by the ledger endpoints.
type InventoryManager interface {
	AddStock(ctx context.Context, scope app.Scope, itemID string, qty int) (domain.LedgerRow, error)
	SetTotalQuantity(ctx context.Context, scope app.Scope, rowID string, newQty int) (domain.LedgerRow, error)
	RemoveRow(ctx context.Context, scope app.Scope, rowID string) error
	ListRows(ctx context.Context, scope app.Scope) ([]domain.LedgerRow, error)
	CheckBulkAvailability(ctx context.Context, scope app.Scope, reqs []app.AvailabilityRequest, from, to time.Time) (app.AvailabilityReport, error)
}

// HandleListRows returns the handler for the dashboard ledger view.
func HandleListRows(svc InventoryManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}
		rows, err := svc.ListRows(r.Context(), scope)
		if err != nil {
			respondError(w, err)
			return
		}
		resp := make([]ledgerRowResponse, 0, len(rows))
		for _, row := range rows {
			resp = append(resp, toLedgerRowResponse(row))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleAddStock returns the handler for growing an item's stock.
func HandleAddStock(svc InventoryManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}

		var req addStockRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		row, err := svc.AddStock(r.Context(), scope, req.ItemID, req.Quantity)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toLedgerRowResponse(row))
	}
}

// HandleSetTotal returns the handler for rebasing a row's total quantity.
func HandleSetTotal(svc InventoryManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}

		var req setTotalRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		row, err := svc.SetTotalQuantity(r.Context(), scope, chi.URLParam(r, "rowID"), req.Quantity)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLedgerRowResponse(row))
	}
}

// HandleRemoveRow returns the handler for deleting an uncommitted ledger row.
func HandleRemoveRow(svc InventoryManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}
		if err := svc.RemoveRow(r.Context(), scope, chi.URLParam(r, "rowID")); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleCheckAvailability returns the handler for the storefront bulk
// availability check.
func HandleCheckAvailability(svc InventoryManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := storefrontScope(r)
		if err != nil {
			respondError(w, err)
			return
		}

		var req availabilityRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		from, err := parseDate(req.From)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid from date")
			return
		}
		to := from
		if req.To != "" {
			to, err = parseDate(req.To)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid to date")
				return
			}
		}

		reqs := make([]app.AvailabilityRequest, 0, len(req.Items))
		for _, item := range req.Items {
			reqs = append(reqs, app.AvailabilityRequest{ItemID: item.ItemID, Quantity: item.Quantity})
		}

		report, err := svc.CheckBulkAvailability(r.Context(), scope, reqs, from, to)
		if err != nil {
			respondError(w, err)
			return
		}

		resp := availabilityResponse{AllAvailable: report.AllAvailable}
		for _, item := range report.Items {
			resp.Items = append(resp.Items, itemAvailabilityResponse{
				ItemID:    item.ItemID,
				Requested: item.Requested,
				Available: item.Available,
				OK:        item.OK,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type addStockRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type setTotalRequest struct {
	Quantity int `json:"quantity"`
}

type ledgerRowResponse struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	Quantity  int       `json:"quantity"`
	Available int       `json:"available"`
	Allocated int       `json:"allocated"`
	Deployed  int       `json:"deployed"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toLedgerRowResponse(row domain.LedgerRow) ledgerRowResponse {
	return ledgerRowResponse{
		ID:        row.ID,
		ItemID:    row.ItemID,
		Quantity:  row.Quantity,
		Available: row.Available,
		Allocated: row.Allocated,
		Deployed:  row.Deployed,
		UpdatedAt: row.UpdatedAt,
	}
}

type availabilityRequest struct {
	Items []holdLineRequest `json:"items"`
	From  string            `json:"from"`
	To    string            `json:"to,omitempty"`
}

type availabilityResponse struct {
	AllAvailable bool                       `json:"all_available"`
	Items        []itemAvailabilityResponse `json:"items"`
}

type itemAvailabilityResponse struct {
	ItemID    string `json:"item_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	OK        bool   `json:"ok"`
}
