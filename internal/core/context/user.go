// Package context carries the authenticated user and request trace ids through context.Context.
package context

import (
	"context"
)

// UserContext is the caller as established from the bearer token.
// StoreIDs are the string forms of the stores the user is assigned to.
type UserContext struct {
	UserID    string
	Email     string
	Roles     []string
	StoreIDs  []string
	SessionID string
}

type userContextKey struct{}

// WithUser stores user in ctx.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns the user stored by WithUser, or nil for anonymous requests.
func GetUser(ctx context.Context) *UserContext {
	user, _ := ctx.Value(userContextKey{}).(*UserContext)
	return user
}

// GetUserID is the caller's id, empty when anonymous.
func GetUserID(ctx context.Context) string {
	if user := GetUser(ctx); user != nil {
		return user.UserID
	}
	return ""
}
