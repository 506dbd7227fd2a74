package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/THuebbe/yardsign/internal/app"
	"github.com/THuebbe/yardsign/internal/domain"
	"github.com/THuebbe/yardsign/internal/tenant"
)

// RequestLogger logs one line per request with latency and the request id
// assigned by chi's RequestID middleware.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rec, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// WithTenant resolves the request's tenant and memoizes it in the context.
// Unresolvable requests are rejected here so handlers below always have a
// tenant.
func WithTenant(resolver *tenant.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := resolver.Resolve(r)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					writeError(w, http.StatusNotFound, codeNotFound, "unknown tenant")
					return
				}
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			next.ServeHTTP(w, r.WithContext(tenant.NewContext(r.Context(), t)))
		})
	}
}

// scopeFrom builds the service scope for an authenticated dashboard request.
// The caller must be a member of the resolved tenant.
func scopeFrom(r *http.Request) (app.Scope, error) {
	t, ok := tenant.FromContext(r.Context())
	if !ok {
		return app.Scope{}, domain.ErrTenantNotFound
	}
	id, ok := identityFrom(r.Context())
	if !ok {
		return app.Scope{}, domain.ErrForbidden
	}
	if !id.Member(t.ID) {
		return app.Scope{}, domain.ErrForbidden
	}
	return app.Scope{TenantID: t.ID, ActorID: id.ActorID, Role: id.Role}, nil
}

// storefrontActor labels ledger and activity rows written by anonymous
// checkout sessions.
const storefrontActor = "storefront"

// storefrontScope builds the service scope for public checkout endpoints.
// The storefront itself holds the order-management capability; customers
// never authenticate against this service.
func storefrontScope(r *http.Request) (app.Scope, error) {
	t, ok := tenant.FromContext(r.Context())
	if !ok {
		return app.Scope{}, domain.ErrTenantNotFound
	}
	return app.Scope{TenantID: t.ID, ActorID: storefrontActor, Role: domain.RoleStaff}, nil
}
