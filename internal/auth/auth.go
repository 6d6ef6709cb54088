package auth

import (
	"context"
)

type ctxkey string

const (
	userkey ctxkey = "autheduser"
)

type AuthedUser struct {
	Username string
	Role     string
}

func (u *AuthedUser) IsAdmin() bool {
	return u.Role == "admin"
}

func StoreUserInContext(ctx context.Context, username, role string) context.Context {
	ctx = context.WithValue(ctx, userkey, &AuthedUser{
		Username: username,
		Role:     role,
	})
	return ctx
}

func UserFromContext(ctx context.Context) *AuthedUser {
	au, ok := ctx.Value(userkey).(*AuthedUser)
	if ok {
		return au
	}
	return nil
}
