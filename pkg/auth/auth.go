package auth

import (
	"context"

	"github.com/pkg/errors"
)

const (
	XUserNameHeader = "X-User-Name"
	XUserRoleHeader = "X-User-Role"

	RoleCustomer = "customer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

type ctxKey int

const authKey ctxKey = iota

type Identity struct {
	Username string
	Role     string
}

var ErrNoIdentity = errors.New("no identity in context")

func SetAuthContext(ctx context.Context, username, role string) context.Context {
	return context.WithValue(ctx, authKey, Identity{Username: username, Role: role})
}

func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(authKey).(Identity)
	if !ok || id.Username == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}
