package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	pkgAuth "github.com/keydeck/keydeck-backend/pkg/auth"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
)

type contextKey string

const ctxClaims contextKey = "staff_claims"

// ClaimsFromRequest returns the staff claims seeded by the Auth middleware.
func ClaimsFromRequest(r *http.Request) (*pkgAuth.StaffClaims, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing request context")
	}
	claims, ok := r.Context().Value(ctxClaims).(*pkgAuth.StaffClaims)
	if !ok || claims == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return claims, nil
}

// StoreIDFromRequest returns the store the authenticated staff member acts for.
func StoreIDFromRequest(r *http.Request) (uuid.UUID, error) {
	claims, err := ClaimsFromRequest(r)
	if err != nil {
		return uuid.Nil, err
	}
	if claims.StoreID == uuid.Nil && !claims.IsAdmin() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "token is not bound to a store")
	}
	return claims.StoreID, nil
}

// ContextWithClaims seeds a context with staff claims.
func ContextWithClaims(ctx context.Context, claims *pkgAuth.StaffClaims) context.Context {
	return context.WithValue(ctx, ctxClaims, claims)
}
