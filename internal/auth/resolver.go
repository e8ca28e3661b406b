package auth

import (
	"context"
	"errors"
)

var _ UserResolver = (*Service)(nil)
var _ UserResolver = (*TestResolver)(nil)

var ErrInvalidToken = errors.New("invalid or expired token")

type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

// TestResolver maps tokens to user ids in memory.
type TestResolver struct {
	Users map[string]string
}

func NewTestResolver() *TestResolver {
	return &TestResolver{
		Users: map[string]string{},
	}
}

func (r *TestResolver) ResolveUser(_ context.Context, token string) (string, error) {
	userID, ok := r.Users[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}
