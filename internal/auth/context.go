package auth

import (
	"context"

	"github.com/google/uuid"
)

type claimsKey struct{}

func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

// UserIDFromContext is shorthand for the common case where only the caller's
// identity matters. Role checks always go back to the database; the token is
// never the authority on what a user may do now.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	if !ok {
		return uuid.Nil, false
	}
	return claims.UserID, true
}
