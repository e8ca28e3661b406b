package auth

import (
	"context"
	"errors"
)

var ErrNoUser = errors.New("no user in context")

type userCtxKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, userID)
}

// UserID returns the authenticated user of the request, or ErrNoUser.
func UserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userCtxKey{}).(string)
	if !ok || userID == "" {
		return "", ErrNoUser
	}
	return userID, nil
}
