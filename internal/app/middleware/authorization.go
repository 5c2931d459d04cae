package middleware

import (
	"context"
	"fmt"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/policies"
	"roomledger/internal/app/queries"
)

// Authorizer decides whether the principal in ctx may send message.
type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// Authorization rejects commands the caller may not send before they are
// validated or reach a transaction.
func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := authorize(ctx, a, cmd.Key(), cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := authorize(ctx, a, q.Key(), q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}

// authorize names the message and, when known, the principal in the error.
func authorize(ctx context.Context, a Authorizer, key string, message any) error {
	err := a.Authorize(ctx, message)
	if err == nil {
		return nil
	}
	if p, ok := policies.PrincipalFrom(ctx); ok && p.ID != "" {
		return fmt.Errorf("%s denied for %s: %w", key, p.ID, err)
	}
	return fmt.Errorf("%s denied: %w", key, err)
}
