package middleware

import (
	"context"
	"log/slog"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/outbox"
)

// OutboxFlush nudges the relay after a command committed. It must sit outside
// Transaction so the flush only ever sees committed records. A failed nudge
// is logged; the relay's polling picks the records up anyway.
func OutboxFlush(box outbox.Flusher, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
