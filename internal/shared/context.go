package shared

import "context"

// Role names an access level resolved by the upstream gateway.
type Role string

const (
	// RoleAdmin sees every ledger account in the tenant.
	RoleAdmin Role = "ADMIN"
	// RoleOperator only sees accounts whose originating document it created.
	RoleOperator Role = "OPERATOR"
)

// AuthContext carries the caller identity resolved by the gateway.
// Authentication itself happens upstream; this service only consumes the
// already-validated tenant/user references.
type AuthContext struct {
	BusinessID      int64
	UserID          int64
	EstablishmentID int64
	Role            Role
}

// Complete reports whether the minimum identity fields are present.
func (a AuthContext) Complete() bool {
	return a.BusinessID > 0 && a.UserID > 0
}

// IsAdmin reports whether the caller holds the elevated role.
func (a AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type authContextKey struct{}

// ContextWithAuth stores the auth context in ctx.
func ContextWithAuth(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext extracts the auth context. The zero value is returned when
// the middleware never ran; callers must check Complete.
func AuthFromContext(ctx context.Context) AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(AuthContext)
	return auth
}
