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

// TenantAdmin is the minimal interface needed by the platform admin
// endpoints.
type TenantAdmin interface {
	CreateTenant(ctx context.Context, in app.CreateTenantInput) (domain.Tenant, error)
	ListTenants(ctx context.Context) ([]domain.Tenant, error)
	DeactivateTenant(ctx context.Context, tenantID string) (domain.Tenant, error)
	SetCustomDomain(ctx context.Context, tenantID, customDomain string) (domain.Tenant, error)
}

// CatalogManager is the minimal interface needed by the tenant catalog
// endpoints.
type CatalogManager interface {
	CreateItem(ctx context.Context, scope app.Scope, in app.CreateItemInput) (domain.CatalogItem, error)
	ListItems(ctx context.Context, scope app.Scope) ([]domain.CatalogItem, error)
	DeleteItem(ctx context.Context, scope app.Scope, itemID string) error
}

// HandleCreateTenant returns the handler for tenant signup.
func HandleCreateTenant(svc TenantAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTenantRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		tenant, err := svc.CreateTenant(r.Context(), app.CreateTenantInput{
			Name:         req.Name,
			CustomDomain: req.CustomDomain,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTenantResponse(tenant))
	}
}

// HandleListTenants returns the platform tenant listing handler.
func HandleListTenants(svc TenantAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenants, err := svc.ListTenants(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		resp := make([]tenantResponse, 0, len(tenants))
		for _, t := range tenants {
			resp = append(resp, toTenantResponse(t))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleDeactivateTenant returns the handler flipping a tenant inactive.
func HandleDeactivateTenant(svc TenantAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := svc.DeactivateTenant(r.Context(), chi.URLParam(r, "tenantID"))
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTenantResponse(tenant))
	}
}

// HandleSetCustomDomain returns the handler assigning or clearing a tenant's
// custom routing domain.
func HandleSetCustomDomain(svc TenantAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setDomainRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		tenant, err := svc.SetCustomDomain(r.Context(), chi.URLParam(r, "tenantID"), req.CustomDomain)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTenantResponse(tenant))
	}
}

// HandleListItems returns the catalog listing handler: platform items plus
// the tenant's custom ones.
func HandleListItems(svc CatalogManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}
		items, err := svc.ListItems(r.Context(), scope)
		if err != nil {
			respondError(w, err)
			return
		}
		resp := make([]catalogItemResponse, 0, len(items))
		for _, item := range items {
			resp = append(resp, toCatalogItemResponse(item))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleCreateItem returns the handler adding a tenant-custom catalog item.
func HandleCreateItem(svc CatalogManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}

		var req createItemRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		item, err := svc.CreateItem(r.Context(), scope, app.CreateItemInput{
			Name:           req.Name,
			Description:    req.Description,
			ImageURL:       req.ImageURL,
			UnitPriceCents: req.UnitPriceCents,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCatalogItemResponse(item))
	}
}

// HandleDeleteItem returns the handler removing a tenant-custom item.
func HandleDeleteItem(svc CatalogManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			respondError(w, err)
			return
		}
		if err := svc.DeleteItem(r.Context(), scope, chi.URLParam(r, "itemID")); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type createTenantRequest struct {
	Name         string `json:"name"`
	CustomDomain string `json:"custom_domain,omitempty"`
}

type setDomainRequest struct {
	CustomDomain string `json:"custom_domain"`
}

type tenantResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Abbreviation string    `json:"abbreviation"`
	CustomDomain string    `json:"custom_domain,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func toTenantResponse(t domain.Tenant) tenantResponse {
	return tenantResponse{
		ID:           t.ID,
		Name:         t.Name,
		Slug:         t.Slug,
		Abbreviation: t.Abbreviation,
		CustomDomain: t.CustomDomain,
		Active:       t.Active,
		CreatedAt:    t.CreatedAt,
	}
}

type createItemRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

type catalogItemResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	UnitPriceCents int    `json:"unit_price_cents"`
	Custom         bool   `json:"custom"`
}

func toCatalogItemResponse(item domain.CatalogItem) catalogItemResponse {
	return catalogItemResponse{
		ID:             item.ID,
		Name:           item.Name,
		Description:    item.Description,
		ImageURL:       item.ImageURL,
		UnitPriceCents: item.UnitPriceCents,
		Custom:         item.Custom,
	}
}
