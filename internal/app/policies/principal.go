package policies

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"roomledger/internal/domain/shared/errs"
)

const (
	RoleManager = "manager"
	RoleChannel = "channel"
	RoleBilling = "billing"
	RoleSystem  = "system"
)

// Principal is the verified caller identity handed over by the gateway.
type Principal struct {
	ID    string
	Roles []string
}

func (p Principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if strings.ToLower(r) == role {
			return true
		}
	}
	return false
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// RoleRestricted is implemented by messages that only some roles may send.
// An empty role list admits any authenticated principal.
type RoleRestricted interface {
	AllowedRoles() []string
}

// RoleAuthorizer enforces RoleRestricted messages against the principal in
// context. Unrestricted messages pass through.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(ctx context.Context, message any) error {
	restricted, ok := message.(RoleRestricted)
	if !ok {
		return nil
	}
	p, ok := PrincipalFrom(ctx)
	if !ok || p.ID == "" {
		return errs.ErrUnauthenticated
	}
	allowed := restricted.AllowedRoles()
	if len(allowed) == 0 {
		return nil
	}
	for _, role := range allowed {
		if p.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("%w: requires one of %s", errs.ErrForbidden, strings.Join(allowed, ","))
}

const anonymousScope = "anonymous"

// ScopedKey prefixes a client supplied key with the principal ID. The key is
// escaped so no two (principal, key) pairs map to the same result. Calls
// without a principal share one anonymous scope.
func ScopedKey(ctx context.Context, key string) string {
	scope := anonymousScope
	if p, ok := PrincipalFrom(ctx); ok && p.ID != "" {
		scope = p.ID
	}
	return scope + "/" + url.QueryEscape(key)
}
