package middleware

import (
	"context"
	"log/slog"
	"time"

	"roomledger/internal/app/commands"
)

// Retry re-dispatches a command while retryable reports true, sleeping
// backoff[i] before attempt i+2. The number of attempts is len(backoff)+1.
// It must wrap Transaction so every attempt runs in a fresh unit of work.
func Retry(backoff []time.Duration, retryable func(error) bool, logger *slog.Logger) CommandMiddleware {
	if retryable == nil {
		panic("middleware: retry predicate required")
	}
	delays := append([]time.Duration(nil), backoff...)
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			attempt := 0
			for {
				res, err := nextFn(ctx, cmd)
				if err == nil || !retryable(err) || attempt >= len(delays) {
					return res, err
				}
				delay := delays[attempt]
				attempt++
				if logger != nil {
					logger.Warn("command retry scheduled", "command", cmd.Key(), "attempt", attempt, "delay", delay, "error", err)
				}
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-timer.C:
				}
			}
		})
	}
}
