package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	adminapp "roomledger/internal/app/handlers/admin"
	availabilityapp "roomledger/internal/app/handlers/availability"
	bookingapp "roomledger/internal/app/handlers/booking"
	inventoryapp "roomledger/internal/app/handlers/inventory"
	searchapp "roomledger/internal/app/handlers/search"
	"roomledger/internal/app/middleware"
	"roomledger/internal/app/outbox"
	"roomledger/internal/app/policies"
	"roomledger/internal/app/queries"
	"roomledger/internal/app/uow"
	"roomledger/internal/clock"
	"roomledger/internal/domain/shared/errs"
)

// Deps are the ports the engine is assembled from.
type Deps struct {
	UoW             uow.UoWFactory
	Idempotency     middleware.IdempotencyStore
	Flusher         outbox.Flusher
	Encoder         outbox.EventEncoder
	Clock           clock.Clock
	HoldTTL         time.Duration
	LockTimeout     time.Duration
	RetryBackoff    []time.Duration
	DefaultCurrency string
	Logger          *slog.Logger
}

// Engine exposes the command and query buses. Commands fails fast on lock
// contention; Retrying re-runs a command in a fresh transaction while it
// keeps failing with a concurrency error.
type Engine struct {
	Commands commands.Bus
	Retrying commands.Bus
	Queries  queries.Bus
}

func New(d Deps) *Engine {
	if d.UoW == nil {
		panic("engine: uow factory required")
	}
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Encoder == nil {
		d.Encoder = outbox.JSONEventEncoder{}
	}
	if d.Flusher == nil {
		d.Flusher = noopFlusher{}
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	commandBus := commands.NewInMemoryBus()
	registerCommands(commandBus, d, logger)

	queryBus := queries.NewInMemoryBus()
	registerQueries(queryBus, d)

	authz := policies.RoleAuthorizer{}
	tx := middleware.Transaction(d.UoW, middleware.StaticTxOptions(uow.TxOptions{LockTimeout: d.LockTimeout}))
	var idem middleware.CommandMiddleware
	if d.Idempotency != nil {
		idem = middleware.Idempotency(d.Idempotency, nil, logger)
	}
	chain := func(retry middleware.CommandMiddleware) commands.Bus {
		return middleware.ChainCommands(
			commandBus,
			middleware.OutboxFlush(d.Flusher, logger),
			idem,
			middleware.Authorization(authz),
			middleware.Validation(middleware.SelfValidator{}),
			retry,
			tx,
		)
	}

	return &Engine{
		Commands: chain(nil),
		Retrying: chain(middleware.Retry(d.RetryBackoff, IsRetryable, logger)),
		Queries: middleware.ChainQueries(
			queryBus,
			middleware.QueryAuthorization(authz),
			middleware.QueryValidation(middleware.SelfValidator{}),
		),
	}
}

// IsRetryable reports failures that a later attempt may not hit.
func IsRetryable(err error) bool {
	return errors.Is(err, errs.ErrConcurrency)
}

func registerCommands(bus *commands.InMemoryBus, d Deps, logger *slog.Logger) {
	lifecycle := &bookingapp.Lifecycle{Clock: d.Clock, Encoder: d.Encoder, Logger: logger}

	commands.RegisterHandler[bookingapp.ReserveCommand, *dto.Booking](bus, bookingapp.ReserveCommand{}.Key(), &bookingapp.ReserveHandler{
		Clock:   d.Clock,
		HoldTTL: d.HoldTTL,
		Encoder: d.Encoder,
		Logger:  logger,
	})
	commands.RegisterHandler[bookingapp.CancelCommand, *dto.Booking](bus, bookingapp.CancelCommand{}.Key(), bookingapp.CancelHandler{Lifecycle: lifecycle})
	commands.RegisterHandler[bookingapp.ConfirmCommand, *dto.Booking](bus, bookingapp.ConfirmCommand{}.Key(), bookingapp.ConfirmHandler{Lifecycle: lifecycle})
	commands.RegisterHandler[bookingapp.CheckInCommand, *dto.Booking](bus, bookingapp.CheckInCommand{}.Key(), bookingapp.CheckInHandler{Lifecycle: lifecycle})
	commands.RegisterHandler[bookingapp.CheckOutCommand, *dto.Booking](bus, bookingapp.CheckOutCommand{}.Key(), bookingapp.CheckOutHandler{Lifecycle: lifecycle})
	commands.RegisterHandler[bookingapp.ExpireHoldCommand, bookingapp.ExpireHoldResult](bus, bookingapp.ExpireHoldCommand{}.Key(), bookingapp.ExpireHoldHandler{Lifecycle: lifecycle})

	commands.RegisterHandler[inventoryapp.BulkUpdateCommand, dto.BulkResult](bus, inventoryapp.BulkUpdateCommand{}.Key(), &inventoryapp.BulkUpdateHandler{
		Clock:   d.Clock,
		Encoder: d.Encoder,
		Logger:  logger,
	})
	commands.RegisterHandler[inventoryapp.RebuildCommand, dto.RebuildResult](bus, inventoryapp.RebuildCommand{}.Key(), &inventoryapp.RebuildHandler{
		Clock:   d.Clock,
		Encoder: d.Encoder,
		Logger:  logger,
	})

	adminapp.Register(bus, &adminapp.Handlers{
		Clock:           d.Clock,
		DefaultCurrency: d.DefaultCurrency,
		Logger:          logger,
	})
}

func registerQueries(bus *queries.InMemoryBus, d Deps) {
	queries.RegisterHandler[availabilityapp.CheckQuery, dto.Quote](bus, availabilityapp.CheckQuery{}.Key(), &availabilityapp.CheckHandler{UoWFactory: d.UoW})
	queries.RegisterHandler[availabilityapp.GetCalendarQuery, dto.Calendar](bus, availabilityapp.GetCalendarQuery{}.Key(), &availabilityapp.GetCalendarHandler{UoWFactory: d.UoW})
	queries.RegisterHandler[bookingapp.GetBookingQuery, *dto.Booking](bus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{UoWFactory: d.UoW})
	queries.RegisterHandler[bookingapp.ListExpiredHoldsQuery, []string](bus, bookingapp.ListExpiredHoldsQuery{}.Key(), &bookingapp.ListExpiredHoldsHandler{UoWFactory: d.UoW, Clock: d.Clock})
	queries.RegisterHandler[searchapp.Query, dto.SearchResult](bus, searchapp.Query{}.Key(), &searchapp.Handler{UoWFactory: d.UoW})
}

type noopFlusher struct{}

func (noopFlusher) Flush(context.Context) error { return nil }
