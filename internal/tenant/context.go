package tenant

import (
	"context"

	"github.com/THuebbe/yardsign/internal/domain"
)

type ctxKey struct{}

// NewContext memoizes a resolved tenant for the rest of one request. The
// memo is never trusted beyond the request that produced it.
func NewContext(ctx context.Context, t domain.Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the tenant resolved earlier in this request, if any.
func FromContext(ctx context.Context) (domain.Tenant, bool) {
	t, ok := ctx.Value(ctxKey{}).(domain.Tenant)
	return t, ok
}
