package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"roomledger/internal/app/commands"
	bookingapp "roomledger/internal/app/handlers/booking"
	"roomledger/internal/app/policies"
	"roomledger/internal/app/queries"
)

var ErrNotConfigured = errors.New("sweeper: command and query buses required")

// Worker periodically expires pending bookings whose hold has lapsed and
// gives their units back.
type Worker struct {
	Commands  commands.Bus
	Queries   queries.Bus
	Interval  time.Duration
	BatchSize int
	Logger    *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Commands == nil || w.Queries == nil {
		return ErrNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil && w.Logger != nil {
			w.Logger.Warn("hold sweep failed", "error", err)
		}
	}
}

// SweepOnce drains expired holds batch by batch and returns how many
// bookings were cancelled. A booking that fails to expire is logged and left
// for the next tick.
func (w *Worker) SweepOnce(ctx context.Context) (int, error) {
	ctx = policies.WithPrincipal(ctx, policies.Principal{ID: "hold-sweeper", Roles: []string{policies.RoleSystem}})
	batch := w.batchSize()
	total := 0
	for {
		ids, err := queries.Ask[bookingapp.ListExpiredHoldsQuery, []string](ctx, w.Queries, bookingapp.ListExpiredHoldsQuery{Limit: batch})
		if err != nil {
			return total, err
		}
		expired := 0
		for _, id := range ids {
			res, err := commands.Dispatch[bookingapp.ExpireHoldCommand, bookingapp.ExpireHoldResult](ctx, w.Commands, bookingapp.ExpireHoldCommand{BookingID: id})
			if err != nil {
				if ctx.Err() != nil {
					return total, ctx.Err()
				}
				if w.Logger != nil {
					w.Logger.Warn("hold expiry failed", "booking_id", id, "error", err)
				}
				continue
			}
			if res.Expired {
				expired++
			}
		}
		total += expired
		if len(ids) < batch || expired < len(ids) {
			return total, nil
		}
	}
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 30 * time.Second
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return bookingapp.DefaultExpireBatch
	}
	return w.BatchSize
}
