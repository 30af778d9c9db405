package authz

import (
	"context"
	"net/http"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	userRolesKey contextKey = "user_roles"
)

// WithIdentity stores user and role information on the context.
func WithIdentity(ctx context.Context, userID string, roles []string) context.Context {
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	ctx = context.WithValue(ctx, userRolesKey, append([]string(nil), roles...))
	return ctx
}

func UserFromRequest(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(userIDKey).(string)
	if !ok || uid == "" {
		return "", false
	}
	return uid, true
}

// RolesFromRequest returns the caller's roles. A user without roles yields
// an empty slice.
func RolesFromRequest(r *http.Request) []string {
	roles, _ := r.Context().Value(userRolesKey).([]string)
	return roles
}
