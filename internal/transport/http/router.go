package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/THuebbe/yardsign/internal/domain"
	"github.com/THuebbe/yardsign/internal/tenant"
)

// Services bundles the application services the router exposes.
type Services struct {
	Tenants   TenantAdmin
	Catalog   CatalogManager
	Inventory InventoryManager
	Holds     HoldManager
	Orders    OrderManager
}

// Config carries everything the router needs.
type Config struct {
	Logger         *zap.Logger
	Resolver       *tenant.Resolver
	JWTSecret      []byte
	AllowedOrigins []string
	Services       Services
}

// NewRouter assembles the full route tree. The tenant API is mounted twice:
// under /t/{key} for path routing and at the root for subdomain, legacy
// query parameter, and custom-domain routing; the resolver handles all four.
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS(cfg.AllowedOrigins))

	r.Get("/health", HealthHandler)

	authenticate := Authenticate(cfg.JWTSecret)

	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(requireOwner)
		r.Post("/tenants", HandleCreateTenant(cfg.Services.Tenants))
		r.Get("/tenants", HandleListTenants(cfg.Services.Tenants))
		r.Post("/tenants/{tenantID}/deactivate", HandleDeactivateTenant(cfg.Services.Tenants))
		r.Put("/tenants/{tenantID}/domain", HandleSetCustomDomain(cfg.Services.Tenants))
	})

	mount := func(r chi.Router) {
		r.Use(WithTenant(cfg.Resolver))

		// Storefront: anonymous checkout sessions.
		r.Post("/availability", HandleCheckAvailability(cfg.Services.Inventory))
		r.Post("/holds", HandleCreateHold(cfg.Services.Holds))
		r.Delete("/holds/{holdID}", HandleReleaseHold(cfg.Services.Holds))
		r.Post("/orders", HandleCreateOrder(cfg.Services.Orders))

		// Dashboard: authenticated tenant members.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/orders/{orderID}", HandleGetOrder(cfg.Services.Orders))
			r.Post("/orders/{orderID}/advance", HandleAdvanceOrder(cfg.Services.Orders))
			r.Post("/orders/{orderID}/cancel", HandleCancelOrder(cfg.Services.Orders))
			r.Patch("/orders/{orderID}/signs", HandleEditOrderSigns(cfg.Services.Orders))
			r.Post("/orders/{orderID}/checkin", HandleCheckInSigns(cfg.Services.Orders))
			r.Get("/orders/{orderID}/activity", HandleListActivity(cfg.Services.Orders))

			r.Get("/inventory", HandleListRows(cfg.Services.Inventory))
			r.Post("/inventory", HandleAddStock(cfg.Services.Inventory))
			r.Put("/inventory/{rowID}", HandleSetTotal(cfg.Services.Inventory))
			r.Delete("/inventory/{rowID}", HandleRemoveRow(cfg.Services.Inventory))

			r.Get("/catalog", HandleListItems(cfg.Services.Catalog))
			r.Post("/catalog", HandleCreateItem(cfg.Services.Catalog))
			r.Delete("/catalog/{itemID}", HandleDeleteItem(cfg.Services.Catalog))
		})
	}

	r.Route("/t/{tenantKey}", mount)
	r.Group(mount)

	return r
}

// requireOwner gates the platform admin surface.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(r.Context())
		if !ok || id.Role != domain.RoleOwner {
			writeError(w, http.StatusForbidden, codeForbidden, "owner role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
