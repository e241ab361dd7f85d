// Package identity carries the acting user through a request context.
package identity

import (
	"context"

	"github.com/ariefcatur/kantin-orders/internal/orders"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCustomer, RoleMerchant, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the acting user or ErrUnauthorized when none is set.
func FromContext(ctx context.Context) (Actor, error) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	if !ok || a.UserID == "" {
		return Actor{}, orders.ErrUnauthorized
	}
	return a, nil
}

// Require returns the actor if it holds one of roles.
func Require(ctx context.Context, roles ...Role) (Actor, error) {
	a, err := FromContext(ctx)
	if err != nil {
		return Actor{}, err
	}
	for _, r := range roles {
		if a.Role == r {
			return a, nil
		}
	}
	return Actor{}, orders.ErrUnauthorized
}
