package auth

import (
	"context"

	"github.com/fdg312/menu-batches/internal/userctx"
)

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return userctx.WithIdentity(ctx, id.UserID, id.Role)
}

func GetUserID(ctx context.Context) (string, bool) {
	return userctx.GetUserID(ctx)
}
