package app

import (
	"fmt"

	"github.com/THuebbe/yardsign/internal/domain"
)

// Scope is the resolved tenant and actor a request operates as. It is built
// once per request at the transport edge and threaded explicitly through
// every service call; nothing global carries it.
type Scope struct {
	TenantID string
	ActorID  string
	Role     domain.Role
}

func (s Scope) authorize(p domain.Permission) error {
	if s.TenantID == "" {
		return domain.ErrTenantNotFound
	}
	if !s.Role.Allows(p) {
		return fmt.Errorf("%s lacks %s: %w", s.Role, p, domain.ErrForbidden)
	}
	return nil
}
