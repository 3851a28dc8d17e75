// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithUser/UserFromContext for propagating the caller's user id

package auth

import (
	"context"
)

// userContextKey is the key type for storing the user id in context.Context.
type userContextKey struct{}

// WithUser returns a new context carrying the authenticated user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// UserFromContext retrieves the user id, returning "" if not present.
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userContextKey{}).(string)
	return id
}
