package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/middleware"
	"roomledger/internal/app/policies"
	"roomledger/internal/app/uow"
	domainhotels "roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/infra/storage/memory"
)

type pingCommand struct {
	Name string
	Idem string
}

func (pingCommand) Key() string { return "test.ping" }

func (c pingCommand) IdempotencyKey() string { return c.Idem }

func (pingCommand) ResultPrototype() any { return new(string) }

func (c pingCommand) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	return nil
}

type pongCommand struct {
	Idem string
}

func (pongCommand) Key() string { return "test.pong" }

func (c pongCommand) IdempotencyKey() string { return c.Idem }

func (pongCommand) ResultPrototype() any { return new(string) }

func (pongCommand) AllowedRoles() []string { return []string{policies.RoleManager} }

type flushCounter struct{ n int }

func (f *flushCounter) Flush(context.Context) error {
	f.n++
	return nil
}

func newBus(t *testing.T, ping func(context.Context, pingCommand) (string, error)) *commands.InMemoryBus {
	t.Helper()
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[pingCommand, string](bus, pingCommand{}.Key(), commands.HandlerFunc[pingCommand, string](ping))
	commands.RegisterHandler[pongCommand, string](bus, pongCommand{}.Key(), commands.HandlerFunc[pongCommand, string](func(context.Context, pongCommand) (string, error) {
		return "pong", nil
	}))
	return bus
}

func TestRetry(t *testing.T) {
	cases := []struct {
		name      string
		failures  int
		failWith  error
		wantCalls int
		wantErr   error
	}{
		{"succeeds after contention", 2, errs.ErrConcurrency, 3, nil},
		{"gives up after backoff is spent", 5, errs.ErrConcurrency, 3, errs.ErrConcurrency},
		{"does not retry other failures", 1, errs.ErrNotFound, 1, errs.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			bus := newBus(t, func(context.Context, pingCommand) (string, error) {
				calls++
				if calls <= tc.failures {
					return "", fmt.Errorf("attempt %d: %w", calls, tc.failWith)
				}
				return "ok", nil
			})
			retrying := middleware.ChainCommands(bus, middleware.Retry(
				[]time.Duration{time.Millisecond, time.Millisecond},
				func(err error) bool { return errors.Is(err, errs.ErrConcurrency) },
				nil,
			))
			res, err := commands.Dispatch[pingCommand, string](context.Background(), retrying, pingCommand{Name: "x"})
			if calls != tc.wantCalls {
				t.Fatalf("expected %d calls, got %d", tc.wantCalls, calls)
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil || res != "ok" {
				t.Fatalf("unexpected result %q, %v", res, err)
			}
		})
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	bus := newBus(t, func(context.Context, pingCommand) (string, error) {
		return "", errs.ErrConcurrency
	})
	retrying := middleware.ChainCommands(bus, middleware.Retry([]time.Duration{time.Hour}, func(error) bool { return true }, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := retrying.Dispatch(ctx, pingCommand{Name: "x"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func saveHotel(ctx context.Context, id string) error {
	unit, err := uow.Require(ctx)
	if err != nil {
		return err
	}
	hotel, err := domainhotels.NewHotel(domainhotels.CreateHotelParams{
		ID:       domainhotels.HotelID(id),
		Name:     "Hotel " + id,
		Location: domainhotels.Location{City: "Lisbon", Country: "PT"},
		Now:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return err
	}
	return unit.Hotels().SaveHotel(ctx, hotel)
}

func hotelExists(t *testing.T, store *memory.Store, id string) bool {
	t.Helper()
	ctx := context.Background()
	unit, err := store.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = unit.Rollback(ctx) }()
	_, err = unit.Hotels().HotelByID(ctx, domainhotels.HotelID(id))
	return err == nil
}

func TestTransaction(t *testing.T) {
	store := memory.NewStore()
	boom := errors.New("boom")
	bus := newBus(t, func(ctx context.Context, cmd pingCommand) (string, error) {
		if err := saveHotel(ctx, cmd.Name); err != nil {
			return "", err
		}
		if cmd.Name == "fails" {
			return "", boom
		}
		return "saved", nil
	})
	tx := middleware.ChainCommands(bus, middleware.Transaction(store, middleware.StaticTxOptions(uow.TxOptions{LockTimeout: time.Second})))
	ctx := context.Background()

	if _, err := tx.Dispatch(ctx, pingCommand{Name: "fails"}); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if hotelExists(t, store, "fails") {
		t.Fatal("failed command leaked its write")
	}
	if _, err := tx.Dispatch(ctx, pingCommand{Name: "works"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !hotelExists(t, store, "works") {
		t.Fatal("successful command was not committed")
	}

	t.Run("handler without transaction", func(t *testing.T) {
		if _, err := bus.Dispatch(ctx, pingCommand{Name: "bare"}); !errors.Is(err, uow.ErrUnitOfWorkMissing) {
			t.Fatalf("expected missing unit of work, got %v", err)
		}
	})
}

func TestIdempotency(t *testing.T) {
	calls := 0
	bus := newBus(t, func(_ context.Context, cmd pingCommand) (string, error) {
		calls++
		if cmd.Name == "bad" {
			return "", errs.ErrValidation
		}
		return fmt.Sprintf("%s-%d", cmd.Name, calls), nil
	})
	store := memory.NewIdempotencyStore(time.Hour)
	idem := middleware.ChainCommands(bus, middleware.Idempotency(store, nil, nil))
	ctx := context.Background()

	first, err := commands.Dispatch[pingCommand, string](ctx, idem, pingCommand{Name: "a", Idem: "k1"})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	res, err := idem.Dispatch(ctx, pingCommand{Name: "a", Idem: "k1"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	replayed, ok := res.(*string)
	if !ok || *replayed != first || calls != 1 {
		t.Fatalf("expected replay of %q without a second call, got %v after %d calls", first, res, calls)
	}

	t.Run("no key runs every time", func(t *testing.T) {
		before := calls
		for i := 0; i < 2; i++ {
			if _, err := idem.Dispatch(ctx, pingCommand{Name: "a"}); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
		}
		if calls != before+2 {
			t.Fatalf("expected two handler calls, got %d", calls-before)
		}
	})

	t.Run("failures are not stored", func(t *testing.T) {
		if _, err := idem.Dispatch(ctx, pingCommand{Name: "bad", Idem: "k2"}); err == nil {
			t.Fatal("expected failure")
		}
		if _, found, _ := store.Get(ctx, policies.ScopedKey(ctx, "k2")); found {
			t.Fatal("failure was stored")
		}
	})

	t.Run("key reused by another command", func(t *testing.T) {
		if _, err := idem.Dispatch(ctx, pongCommand{Idem: "k1"}); !errors.Is(err, middleware.ErrIdempotencyKeyReused) {
			t.Fatalf("expected key reuse error, got %v", err)
		}
	})

	t.Run("keys are scoped by principal", func(t *testing.T) {
		before := calls
		other := policies.WithPrincipal(ctx, policies.Principal{ID: "someone-else"})
		got, err := commands.Dispatch[pingCommand, string](other, idem, pingCommand{Name: "a", Idem: "k1"})
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if got == first || calls != before+1 {
			t.Fatalf("another principal replayed %q", got)
		}
	})
}

type brokenStore struct{ *memory.IdempotencyStore }

func (brokenStore) Save(context.Context, middleware.IdempotencyRecord) error {
	return errors.New("store down")
}

func TestIdempotencySaveFailureKeepsResult(t *testing.T) {
	bus := newBus(t, func(context.Context, pingCommand) (string, error) { return "done", nil })
	idem := middleware.ChainCommands(bus, middleware.Idempotency(brokenStore{memory.NewIdempotencyStore(time.Hour)}, nil, nil))

	got, err := commands.Dispatch[pingCommand, string](context.Background(), idem, pingCommand{Name: "a", Idem: "k1"})
	if err != nil || got != "done" {
		t.Fatalf("expected the committed result, got %q %v", got, err)
	}
}

func TestAuthorizationErrorNamesCaller(t *testing.T) {
	bus := middleware.ChainCommands(
		newBus(t, func(context.Context, pingCommand) (string, error) { return "ok", nil }),
		middleware.Authorization(policies.RoleAuthorizer{}),
	)
	ctx := context.Background()

	_, err := bus.Dispatch(policies.WithPrincipal(ctx, policies.Principal{ID: "guest-7"}), pongCommand{})
	if !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "test.pong") || !strings.Contains(msg, "guest-7") {
		t.Fatalf("error does not name command and principal: %q", msg)
	}

	_, err = bus.Dispatch(ctx, pongCommand{})
	if !errors.Is(err, errs.ErrUnauthenticated) || !strings.HasPrefix(err.Error(), "test.pong denied:") {
		t.Fatalf("expected unauthenticated for test.pong, got %v", err)
	}
}

func TestAuthorizationAndValidationOrder(t *testing.T) {
	flusher := &flushCounter{}
	bus := middleware.ChainCommands(
		newBus(t, func(context.Context, pingCommand) (string, error) { return "ok", nil }),
		middleware.OutboxFlush(flusher, nil),
		nil,
		middleware.Authorization(policies.RoleAuthorizer{}),
		middleware.Validation(middleware.SelfValidator{}),
	)
	ctx := context.Background()
	mgr := policies.WithPrincipal(ctx, policies.Principal{ID: "m", Roles: []string{"MANAGER"}})
	guest := policies.WithPrincipal(ctx, policies.Principal{ID: "g"})

	cases := []struct {
		name string
		ctx  context.Context
		cmd  commands.Command
		want error
	}{
		{"unrestricted command", ctx, pingCommand{Name: "x"}, nil},
		{"invalid command", ctx, pingCommand{}, errs.ErrValidation},
		{"restricted without principal", ctx, pongCommand{}, errs.ErrUnauthenticated},
		{"restricted without role", guest, pongCommand{}, errs.ErrForbidden},
		{"restricted with role", mgr, pongCommand{}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := flusher.n
			_, err := bus.Dispatch(tc.ctx, tc.cmd)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				if flusher.n != before+1 {
					t.Fatal("expected a flush after success")
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if flusher.n != before {
				t.Fatal("flush after failure")
			}
		})
	}
}
