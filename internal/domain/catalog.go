package domain

import "time"

// CatalogItem is a rentable sign design. Platform items have an empty
// TenantID and are visible to every agency; custom items belong to exactly
// one tenant.
type CatalogItem struct {
	ID             string
	TenantID       string
	Name           string
	Description    string
	ImageURL       string
	UnitPriceCents int
	Custom         bool
	CreatedAt      time.Time
}
