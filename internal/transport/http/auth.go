package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/THuebbe/yardsign/internal/domain"
)

// Identity is what the identity collaborator's bearer token asserts: who is
// calling and which tenants they belong to. Tokens are issued elsewhere;
// this service only verifies and reads them.
type Identity struct {
	ActorID string
	Tenants []string
	Role    domain.Role
}

// Member reports whether the identity belongs to the tenant.
func (id Identity) Member(tenantID string) bool {
	for _, t := range id.Tenants {
		if t == tenantID {
			return true
		}
	}
	return false
}

type identityKey struct{}

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

type authClaims struct {
	jwt.RegisteredClaims
	Tenants []string `json:"tenants"`
	Role    string   `json:"role"`
}

// Authenticate verifies the bearer token and stores the caller's identity in
// the request context. Requests without a valid token are rejected.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
				return
			}

			var claims authClaims
			_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid bearer token")
				return
			}

			id := Identity{
				ActorID: claims.Subject,
				Tenants: claims.Tenants,
				Role:    domain.ParseRole(claims.Role),
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
