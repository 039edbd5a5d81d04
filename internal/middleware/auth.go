package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
)

const identityKey contextKey = "identity"

// Role distinguishes the two authenticated principal kinds.
type Role string

const (
	RoleCompany   Role = "company"
	RoleDeveloper Role = "developer"
)

// Identity is the authenticated principal extracted from the session token.
// The core trusts this identity; credential validation happens upstream.
type Identity struct {
	SubjectID string
	Role      Role
}

// IdentityFrom returns the identity stored by Auth, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying the given identity. Used in tests.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Auth verifies the Bearer token and stores the caller identity in context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, string(apperrors.CodeUnauthorized), http.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
				func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return []byte(secret), nil
				})
			if err != nil || !token.Valid {
				http.Error(w, string(apperrors.CodeUnauthorized), http.StatusUnauthorized)
				return
			}

			sub, _ := claims["sub"].(string)
			role, _ := claims["role"].(string)
			if sub == "" || (role != string(RoleCompany) && role != string(RoleDeveloper)) {
				http.Error(w, string(apperrors.CodeUnauthorized), http.StatusUnauthorized)
				return
			}

			ctx := WithIdentity(r.Context(), Identity{SubjectID: sub, Role: Role(role)})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCompany rejects requests whose identity is not a company.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok || id.Role != RoleCompany {
			http.Error(w, string(apperrors.CodeUnauthorized), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
