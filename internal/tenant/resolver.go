package tenant

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/THuebbe/yardsign/internal/domain"
)

// Directory looks tenants up by their routing keys. The postgres tenant
// repository implements it; an optional redis decorator caches it.
type Directory interface {
	ByRoutingKey(ctx context.Context, key string) (domain.Tenant, error)
	ByDomain(ctx context.Context, host string) (domain.Tenant, error)
}

// legacyParam is the pre-path-routing query override, kept for old links.
const legacyParam = "agency"

// Resolver maps an inbound request to its tenant. Resolution order: path
// segment under /t/, legacy query parameter, subdomain of the base host,
// exact custom-domain match. The first rule producing an active tenant
// wins. Resolution is read-only and idempotent; failure to resolve is only
// an error for callers that require a tenant.
type Resolver struct {
	dir      Directory
	baseHost string
}

func NewResolver(dir Directory, baseHost string) *Resolver {
	return &Resolver{dir: dir, baseHost: stripPort(baseHost)}
}

// Resolve returns the request's tenant, reusing the per-request memo when
// the middleware already resolved one.
func (r *Resolver) Resolve(req *http.Request) (domain.Tenant, error) {
	if t, ok := FromContext(req.Context()); ok {
		return t, nil
	}

	ctx := req.Context()
	host := stripPort(req.Host)

	if key := pathKey(req.URL.Path); key != "" {
		if t, err := r.lookupKey(ctx, key); err == nil {
			return t, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return domain.Tenant{}, err
		}
	}
	if key := req.URL.Query().Get(legacyParam); key != "" {
		if t, err := r.lookupKey(ctx, key); err == nil {
			return t, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return domain.Tenant{}, err
		}
	}
	if sub := r.subdomain(host); sub != "" {
		if t, err := r.lookupKey(ctx, sub); err == nil {
			return t, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return domain.Tenant{}, err
		}
	}
	if host != "" && host != r.baseHost {
		if t, err := r.lookupDomain(ctx, host); err == nil {
			return t, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return domain.Tenant{}, err
		}
	}

	return domain.Tenant{}, domain.ErrTenantNotFound
}

func (r *Resolver) lookupKey(ctx context.Context, key string) (domain.Tenant, error) {
	t, err := r.dir.ByRoutingKey(ctx, key)
	if err != nil {
		return domain.Tenant{}, err
	}
	if !t.Active {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (r *Resolver) lookupDomain(ctx context.Context, host string) (domain.Tenant, error) {
	t, err := r.dir.ByDomain(ctx, host)
	if err != nil {
		return domain.Tenant{}, err
	}
	if !t.Active {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

// pathKey extracts the routing key from the tenant-scoped route group,
// e.g. /t/sunny-signs/orders -> sunny-signs.
func pathKey(path string) string {
	const prefix = "/t/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// subdomain returns the single label in front of the base host, or empty.
func (r *Resolver) subdomain(host string) string {
	if r.baseHost == "" {
		return ""
	}
	suffix := "." + r.baseHost
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}

func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
