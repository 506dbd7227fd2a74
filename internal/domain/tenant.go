package domain

import (
	"strings"
	"time"
	"unicode"
)

// Tenant is an isolated agency sharing the platform. Tenants are created at
// signup and only ever deactivated, never deleted.
type Tenant struct {
	ID           string
	Name         string
	Slug         string
	Abbreviation string
	CustomDomain string
	Active       bool
	CreatedAt    time.Time
}

// Abbreviate derives the 3-letter prefix used in order numbers from an
// agency name. Letters only, uppercased, padded with X when the name is
// too short.
func Abbreviate(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) && r < 128 {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() == 3 {
				break
			}
		}
	}
	for b.Len() < 3 {
		b.WriteByte('X')
	}
	return b.String()
}
