package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy roots. Specific sentinels wrap one of these with %w so
// callers can match either the broad kind or the precise condition.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrUpstream          = errors.New("upstream failure")
)

// NotFound covers missing rows and tenant-mismatched rows alike; a caller
// must not be able to tell the two apart.
var (
	ErrTenantNotFound = fmt.Errorf("tenant %w", ErrNotFound)
	ErrItemNotFound   = fmt.Errorf("catalog item %w", ErrNotFound)
	ErrRowNotFound    = fmt.Errorf("ledger row %w", ErrNotFound)
	ErrHoldNotFound   = fmt.Errorf("hold %w", ErrNotFound)
	ErrOrderNotFound  = fmt.Errorf("order %w", ErrNotFound)
)

var (
	ErrTerminalOrder  = fmt.Errorf("order is terminal: %w", ErrConflict)
	ErrStockCommitted = fmt.Errorf("total below committed stock: %w", ErrConflict)
	ErrRowInUse       = fmt.Errorf("ledger row has committed stock: %w", ErrConflict)
	ErrItemReferenced = fmt.Errorf("catalog item referenced by ledger: %w", ErrConflict)
	ErrSlugTaken      = fmt.Errorf("routing key already in use: %w", ErrConflict)
	ErrDomainTaken    = fmt.Errorf("custom domain already in use: %w", ErrConflict)
	ErrUnavailable    = fmt.Errorf("insufficient availability: %w", ErrConflict)
)

// Validation failures, rejected before any mutation.
var (
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidCondition = errors.New("invalid check-in condition")
	ErrInvalidPolicy    = errors.New("invalid refund policy")
	ErrNameRequired     = errors.New("name required")
	ErrNoItems          = errors.New("at least one item required")
)
