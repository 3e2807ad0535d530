package userctx

import "context"

type contextKey string

const (
	userIDContextKey contextKey = "user_id"
	roleContextKey   contextKey = "role"
)

// Roles carried in the token.
const (
	RoleProducer = "producer"
	RoleConsumer = "consumer"
	RoleOperator = "operator"
)

func ValidRole(role string) bool {
	return role == RoleProducer || role == RoleConsumer || role == RoleOperator
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok
}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleContextKey, role)
}

// GetRole returns "" when the request was not authenticated.
func GetRole(ctx context.Context) string {
	role, _ := ctx.Value(roleContextKey).(string)
	return role
}

// WithIdentity sets both user id and role.
func WithIdentity(ctx context.Context, userID, role string) context.Context {
	return WithRole(WithUserID(ctx, userID), role)
}
