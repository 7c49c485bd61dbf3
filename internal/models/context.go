package models

import "context"

type principalContextKey struct{}

// Role is the capability level of an authenticated principal
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is the authenticated caller of an operation
type Principal struct {
	UserId string
	Role   Role
}

// IsAdmin reports whether the principal holds the administrative capability
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Actor returns the identifier recorded in audit trails
func (p Principal) Actor() string {
	return string(p.Role) + ":" + p.UserId
}

// WithPrincipal attaches the authenticated principal to a context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// GetPrincipal retrieves the principal from context, reporting whether one was set.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}
