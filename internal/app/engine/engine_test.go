package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	"roomledger/internal/app/engine"
	availabilityapp "roomledger/internal/app/handlers/availability"
	bookingapp "roomledger/internal/app/handlers/booking"
	inventoryapp "roomledger/internal/app/handlers/inventory"
	searchapp "roomledger/internal/app/handlers/search"
	"roomledger/internal/app/middleware"
	"roomledger/internal/app/policies"
	"roomledger/internal/app/queries"
	"roomledger/internal/app/uow"
	"roomledger/internal/clock"
	domainbooking "roomledger/internal/domain/booking"
	domainhotels "roomledger/internal/domain/hotels"
	domaininventory "roomledger/internal/domain/inventory"
	domainpromo "roomledger/internal/domain/promo"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/domain/stay"
	"roomledger/internal/infra/obs"
	"roomledger/internal/infra/storage/memory"
	"roomledger/internal/testutil"
)

type harness struct {
	engine *engine.Engine
	store  *memory.Store
	clock  *clock.Manual
}

func newHarness(t *testing.T) harness {
	t.Helper()
	return newHarnessWith(t, memory.NewIdempotencyStore(0))
}

func newHarnessWith(t *testing.T, idem middleware.IdempotencyStore) harness {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewManual(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	e := engine.New(engine.Deps{
		UoW:          store,
		Idempotency:  idem,
		Clock:        clk,
		HoldTTL:      15 * time.Minute,
		RetryBackoff: []time.Duration{time.Millisecond, time.Millisecond},
		Logger:       obs.Discard(),
	})
	return harness{engine: e, store: store, clock: clk}
}

func manager(ctx context.Context) context.Context {
	return policies.WithPrincipal(ctx, policies.Principal{ID: "mgr-1", Roles: []string{policies.RoleManager}})
}

func dates(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatalf("parse %s..%s: %v", in, out, err)
	}
	return dr
}

type stayArgs struct {
	roomType string
	in, out  string
	units    int
	adults   int
	children int
	promo    string
	pending  bool
	idemKey  string
}

func (h harness) reserve(t *testing.T, ctx context.Context, a stayArgs) (*dto.Booking, error) {
	t.Helper()
	if a.units == 0 {
		a.units = 1
	}
	if a.adults == 0 {
		a.adults = 1
	}
	cmd := bookingapp.ReserveCommand{
		Request: stay.Request{
			RoomTypeID: domainhotels.RoomTypeID(a.roomType),
			Range:      dates(t, a.in, a.out),
			Units:      a.units,
			Adults:     a.adults,
			Children:   a.children,
			PromoCode:  a.promo,
		},
		Guest:           domainbooking.Guest{Name: "Ada Lovelace", Email: "ada@example.com"},
		PaymentPending:  a.pending,
		IdempotencyKeyV: a.idemKey,
	}
	return commands.Dispatch[bookingapp.ReserveCommand, *dto.Booking](ctx, h.engine.Commands, cmd)
}

func (h harness) available(t *testing.T, roomType, in, out string) []int {
	t.Helper()
	cal, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](context.Background(), h.engine.Queries, availabilityapp.GetCalendarQuery{
		RoomTypeID: roomType,
		Range:      dates(t, in, out),
	})
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	out2 := make([]int, 0, len(cal.Days))
	for _, d := range cal.Days {
		out2 = append(out2, d.Available)
	}
	return out2
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestConcurrentReservationsOnLastUnit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-single", TotalUnits: 1})

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
		other     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.reserve(t, ctx, stayArgs{roomType: "rt-single", in: "2026-01-10", out: "2026-01-12"})
			mu.Lock()
			defer mu.Unlock()
			var conflict *domaininventory.ConflictError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &conflict):
				conflicts++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if succeeded != 1 || conflicts != workers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", workers-1, succeeded, conflicts)
	}
	if got := h.available(t, "rt-single", "2026-01-10", "2026-01-12"); !equalInts(got, []int{0, 0}) {
		t.Fatalf("expected sold out, got %v", got)
	}
}

func TestReserveAndCancelRestoresAvailability(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1", TotalUnits: 5})

	b, err := h.reserve(t, ctx, stayArgs{roomType: "rt-1", in: "2026-01-10", out: "2026-01-12", units: 2, adults: 2})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if b.Status != string(domainbooking.StatusConfirmed) {
		t.Fatalf("expected confirmed booking, got %s", b.Status)
	}
	if got := h.available(t, "rt-1", "2026-01-10", "2026-01-12"); !equalInts(got, []int{3, 3}) {
		t.Fatalf("after reserve: %v", got)
	}

	t.Run("conflict names the first short date", func(t *testing.T) {
		_, err := h.reserve(t, ctx, stayArgs{roomType: "rt-1", in: "2026-01-11", out: "2026-01-13", units: 4, adults: 4})
		var conflict *domaininventory.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if got := conflict.Date.Format(daterange.Layout); got != "2026-01-11" {
			t.Fatalf("expected conflict on 2026-01-11, got %s", got)
		}
		if conflict.Requested != 4 || conflict.Available != 3 {
			t.Fatalf("expected requested 4 available 3, got %d/%d", conflict.Requested, conflict.Available)
		}
		if got := h.available(t, "rt-1", "2026-01-11", "2026-01-13"); !equalInts(got, []int{3, 5}) {
			t.Fatalf("rejected reservation changed inventory: %v", got)
		}
	})

	cancelled, err := commands.Dispatch[bookingapp.CancelCommand, *dto.Booking](manager(ctx), h.engine.Commands, bookingapp.CancelCommand{BookingID: b.ID, Reason: "guest request"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != string(domainbooking.StatusCancelled) {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := h.available(t, "rt-1", "2026-01-10", "2026-01-12"); !equalInts(got, []int{5, 5}) {
		t.Fatalf("after cancel: %v", got)
	}

	t.Run("second cancel is a no-op", func(t *testing.T) {
		again, err := commands.Dispatch[bookingapp.CancelCommand, *dto.Booking](manager(ctx), h.engine.Commands, bookingapp.CancelCommand{BookingID: b.ID})
		if err != nil {
			t.Fatalf("cancel again: %v", err)
		}
		if again.CancelReason != "guest request" {
			t.Fatalf("expected original reason kept, got %q", again.CancelReason)
		}
		if got := h.available(t, "rt-1", "2026-01-10", "2026-01-12"); !equalInts(got, []int{5, 5}) {
			t.Fatalf("double release: %v", got)
		}
	})
}

func TestReservationPricing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1", TotalUnits: 5, BasePrice: 1000, ExtraAdultPrice: 200})
	testutil.SeedPromo(t, ctx, h.store, "SUMMER10", domainpromo.Percent, 10, 0)

	cases := []struct {
		name  string
		args  stayArgs
		total int64
	}{
		{"base occupancy", stayArgs{in: "2026-01-10", out: "2026-01-12", units: 2, adults: 2}, 4000},
		{"one extra adult", stayArgs{in: "2026-01-10", out: "2026-01-12", units: 2, adults: 3}, 4400},
		{"percent promo", stayArgs{in: "2026-02-10", out: "2026-02-13", units: 1, adults: 2, promo: "summer10"}, 2700},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.args.roomType = "rt-1"
			b, err := h.reserve(t, ctx, tc.args)
			if err != nil {
				t.Fatalf("reserve: %v", err)
			}
			if b.Total.Amount != tc.total {
				t.Fatalf("expected total %d, got %d", tc.total, b.Total.Amount)
			}
			if b.Total.Currency != "EUR" {
				t.Fatalf("expected EUR, got %s", b.Total.Currency)
			}
		})
	}
}

func TestQuoteMatchesReservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1", BasePrice: 1000, ExtraAdultPrice: 200})

	req := stay.Request{RoomTypeID: "rt-1", Range: dates(t, "2026-01-10", "2026-01-12"), Units: 1, Adults: 3}
	quote, err := queries.Ask[availabilityapp.CheckQuery, dto.Quote](ctx, h.engine.Queries, availabilityapp.CheckQuery{Request: req})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if quote.Price.Total.Amount != 2400 || quote.Nights != 2 {
		t.Fatalf("unexpected quote %+v", quote)
	}
	if got := h.available(t, "rt-1", "2026-01-10", "2026-01-12"); !equalInts(got, []int{5, 5}) {
		t.Fatalf("check must not hold inventory: %v", got)
	}
}

func TestExhaustedPromoLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1", TotalUnits: 5})
	testutil.SeedPromo(t, ctx, h.store, "ONCE", domainpromo.Fixed, 500, 1)

	if _, err := h.reserve(t, ctx, stayArgs{roomType: "rt-1", in: "2026-03-01", out: "2026-03-03", promo: "ONCE"}); err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	_, err := h.reserve(t, ctx, stayArgs{roomType: "rt-1", in: "2026-03-01", out: "2026-03-03", promo: "ONCE"})
	if !errors.Is(err, domainpromo.ErrExhausted) {
		t.Fatalf("expected exhausted promo, got %v", err)
	}
	if !errors.Is(err, domainpromo.ErrPromoCode) {
		t.Fatalf("expected promo rejection family, got %v", err)
	}
	if got := h.available(t, "rt-1", "2026-03-01", "2026-03-03"); !equalInts(got, []int{4, 4}) {
		t.Fatalf("expected only the first booking to hold units, got %v", got)
	}
}

func TestStopSellRejectsReservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1", TotalUnits: 5})

	stop := true
	res, err := commands.Dispatch[inventoryapp.BulkUpdateCommand, dto.BulkResult](manager(ctx), h.engine.Commands, inventoryapp.BulkUpdateCommand{
		RoomTypeID: "rt-1",
		Range:      dates(t, "2026-02-01", "2026-02-02"),
		Update:     domaininventory.Update{StopSell: &stop},
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if res.Applied != 1 || !res.Days[0].StopSell {
		t.Fatalf("unexpected bulk result %+v", res)
	}

	_, err = h.reserve(t, ctx, stayArgs{roomType: "rt-1", in: "2026-01-31", out: "2026-02-02"})
	var conflict *domaininventory.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !conflict.StopSell || conflict.Date.Format(daterange.Layout) != "2026-02-01" {
		t.Fatalf("expected stop-sell on 2026-02-01, got %+v", conflict)
	}
	if _, err := h.reserve(t, ctx, stayArgs{roomType: "rt-1", in: "2026-01-30", out: "2026-02-01"}); err != nil {
		t.Fatalf("stay ending on the closed date should pass: %v", err)
	}
}

func TestBulkUpdateBelowReserved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1", TotalUnits: 5})
	if _, err := h.reserve(t, ctx, stayArgs{roomType: "rt-1", in: "2026-03-01", out: "2026-03-02", units: 3, adults: 3}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	delta := -3
	cmd := inventoryapp.BulkUpdateCommand{
		RoomTypeID: "rt-1",
		Range:      dates(t, "2026-02-28", "2026-03-03"),
		Update:     domaininventory.Update{UnitsDelta: &delta},
	}

	t.Run("all or nothing rolls back", func(t *testing.T) {
		cmd := cmd
		cmd.AllOrNothing = true
		_, err := commands.Dispatch[inventoryapp.BulkUpdateCommand, dto.BulkResult](manager(ctx), h.engine.Commands, cmd)
		var rejected *inventoryapp.RejectedError
		if !errors.As(err, &rejected) {
			t.Fatalf("expected rejected error, got %v", err)
		}
		if !errors.Is(err, domaininventory.ErrConflict) {
			t.Fatalf("rejection should classify as conflict: %v", err)
		}
		if rejected.Result.Rejected != 1 || rejected.Result.Applied != 0 || !rejected.Result.RolledBack {
			t.Fatalf("unexpected result %+v", rejected.Result)
		}
		if got := h.available(t, "rt-1", "2026-02-28", "2026-03-03"); !equalInts(got, []int{5, 2, 5}) {
			t.Fatalf("rolled back update changed inventory: %v", got)
		}
	})

	t.Run("partial apply skips the short date", func(t *testing.T) {
		res, err := commands.Dispatch[inventoryapp.BulkUpdateCommand, dto.BulkResult](manager(ctx), h.engine.Commands, cmd)
		if err != nil {
			t.Fatalf("bulk: %v", err)
		}
		if res.Applied != 2 || res.Rejected != 1 {
			t.Fatalf("unexpected result %+v", res)
		}
		if res.Days[1].Applied || res.Days[1].Requested != 3 {
			t.Fatalf("expected 2026-03-01 rejected, got %+v", res.Days[1])
		}
		if got := h.available(t, "rt-1", "2026-02-28", "2026-03-03"); !equalInts(got, []int{2, 2, 2}) {
			t.Fatalf("after partial apply: %v", got)
		}
	})
}

func TestBookingLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1", TotalUnits: 2})

	b, err := h.reserve(t, ctx, stayArgs{roomType: "rt-1", in: "2026-01-10", out: "2026-01-12", pending: true})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if b.Status != string(domainbooking.StatusPending) || b.HoldExpiresAt == nil {
		t.Fatalf("expected pending hold, got %s", b.Status)
	}
	if got := h.available(t, "rt-1", "2026-01-10", "2026-01-12"); !equalInts(got, []int{1, 1}) {
		t.Fatalf("pending booking must hold units: %v", got)
	}

	mctx := manager(ctx)
	step := func(t *testing.T, cmd commands.Command) (*dto.Booking, error) {
		t.Helper()
		res, err := h.engine.Commands.Dispatch(mctx, cmd)
		if err != nil {
			return nil, err
		}
		return res.(*dto.Booking), nil
	}

	if _, err := step(t, bookingapp.CheckInCommand{BookingID: b.ID}); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("check-in of pending booking: expected invalid transition, got %v", err)
	}
	confirmed, err := step(t, bookingapp.ConfirmCommand{BookingID: b.ID})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != string(domainbooking.StatusConfirmed) || confirmed.HoldExpiresAt != nil {
		t.Fatalf("unexpected confirmed booking %+v", confirmed)
	}
	if _, err := step(t, bookingapp.ConfirmCommand{BookingID: b.ID}); err != nil {
		t.Fatalf("confirming twice should be a no-op: %v", err)
	}
	if _, err := step(t, bookingapp.CheckInCommand{BookingID: b.ID}); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("early check-in: expected invalid transition, got %v", err)
	}

	h.clock.Set(time.Date(2026, 1, 10, 15, 0, 0, 0, time.UTC))
	if _, err := step(t, bookingapp.CheckInCommand{BookingID: b.ID}); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if _, err := step(t, bookingapp.CancelCommand{BookingID: b.ID}); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("cancel after check-in: expected invalid transition, got %v", err)
	}
	out, err := step(t, bookingapp.CheckOutCommand{BookingID: b.ID})
	if err != nil {
		t.Fatalf("check-out: %v", err)
	}
	if out.Status != string(domainbooking.StatusCheckedOut) {
		t.Fatalf("expected checked out, got %s", out.Status)
	}
	if got := h.available(t, "rt-1", "2026-01-10", "2026-01-12"); !equalInts(got, []int{1, 1}) {
		t.Fatalf("checked out booking keeps its nights: %v", got)
	}

	fetched, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](ctx, h.engine.Queries, bookingapp.GetBookingQuery{BookingID: b.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Status != out.Status {
		t.Fatalf("get returned %s, want %s", fetched.Status, out.Status)
	}
}

func TestGetUnknownBooking(t *testing.T) {
	h := newHarness(t)
	_, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](context.Background(), h.engine.Queries, bookingapp.GetBookingQuery{BookingID: "missing"})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIdempotentReserve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1", TotalUnits: 5})

	args := stayArgs{roomType: "rt-1", in: "2026-01-10", out: "2026-01-11", units: 2, adults: 2, idemKey: "req-42"}
	first, err := h.reserve(t, ctx, args)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := h.reserve(t, ctx, args)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.ID != second.ID || first.Total != second.Total {
		t.Fatalf("replay returned a different booking: %s vs %s", first.ID, second.ID)
	}
	if got := h.available(t, "rt-1", "2026-01-10", "2026-01-11"); !equalInts(got, []int{3}) {
		t.Fatalf("replay must not reserve again: %v", got)
	}

	t.Run("failures are not cached", func(t *testing.T) {
		big := stayArgs{roomType: "rt-1", in: "2026-01-10", out: "2026-01-11", units: 4, adults: 4, idemKey: "req-43"}
		if _, err := h.reserve(t, ctx, big); !errors.Is(err, domaininventory.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		big.units, big.adults = 3, 3
		if _, err := h.reserve(t, ctx, big); err != nil {
			t.Fatalf("retry under the same key: %v", err)
		}
	})

	t.Run("keys are scoped by principal", func(t *testing.T) {
		other := stayArgs{roomType: "rt-1", in: "2026-01-20", out: "2026-01-21", idemKey: "req-42"}
		mine, err := h.reserve(t, manager(ctx), other)
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if mine.ID == first.ID {
			t.Fatalf("another principal replayed booking %s", first.ID)
		}
		if got := h.available(t, "rt-1", "2026-01-20", "2026-01-21"); !equalInts(got, []int{4}) {
			t.Fatalf("expected a separate booking, got %v", got)
		}
	})
}

type lossyIdempotencyStore struct {
	*memory.IdempotencyStore
}

func (lossyIdempotencyStore) Save(context.Context, middleware.IdempotencyRecord) error {
	return errors.New("idempotency store unavailable")
}

func TestLostIdempotencyRecordDoesNotRebook(t *testing.T) {
	h := newHarnessWith(t, lossyIdempotencyStore{memory.NewIdempotencyStore(0)})
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1", TotalUnits: 5})

	args := stayArgs{roomType: "rt-1", in: "2026-01-10", out: "2026-01-12", idemKey: "req-7"}
	first, err := h.reserve(t, ctx, args)
	if err != nil {
		t.Fatalf("a lost record must not fail a committed booking: %v", err)
	}
	second, err := h.reserve(t, ctx, args)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("retry booked again: %s vs %s", first.ID, second.ID)
	}
	if got := h.available(t, "rt-1", "2026-01-10", "2026-01-12"); !equalInts(got, []int{4, 4}) {
		t.Fatalf("expected one unit taken, got %v", got)
	}
}

func TestConcurrentSameKeyReservesOnce(t *testing.T) {
	h := newHarnessWith(t, lossyIdempotencyStore{memory.NewIdempotencyStore(0)})
	ctx := manager(context.Background())
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1", TotalUnits: 5})

	const workers = 5
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ids    = map[string]int{}
		failed []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := h.reserve(t, ctx, stayArgs{roomType: "rt-1", in: "2026-01-10", out: "2026-01-12", idemKey: "double-click"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, err)
				return
			}
			ids[b.ID]++
		}()
	}
	wg.Wait()

	if len(failed) > 0 {
		t.Fatalf("unexpected errors: %v", failed)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one booking, got %v", ids)
	}
	if got := h.available(t, "rt-1", "2026-01-10", "2026-01-12"); !equalInts(got, []int{4, 4}) {
		t.Fatalf("expected one unit taken, got %v", got)
	}
}

func TestAuthorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1"})
	stop := true
	cmd := inventoryapp.BulkUpdateCommand{
		RoomTypeID: "rt-1",
		Range:      dates(t, "2026-02-01", "2026-02-02"),
		Update:     domaininventory.Update{StopSell: &stop},
	}

	cases := []struct {
		name string
		ctx  context.Context
		want error
	}{
		{"anonymous", ctx, errs.ErrUnauthenticated},
		{"wrong role", policies.WithPrincipal(ctx, policies.Principal{ID: "ota", Roles: []string{policies.RoleChannel}}), errs.ErrForbidden},
		{"manager", manager(ctx), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.Commands.Dispatch(tc.ctx, cmd)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRebuildRepairsDriftedCounters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-1", TotalUnits: 5})
	if _, err := h.reserve(t, ctx, stayArgs{roomType: "rt-1", in: "2026-04-01", out: "2026-04-03", units: 2, adults: 2}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	unit, err := h.store.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	drifted := domaininventory.Empty("rt-1", time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC))
	drifted.Reserved = 5
	if err := unit.Inventory().Save(ctx, []domaininventory.Day{drifted}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	res, err := commands.Dispatch[inventoryapp.RebuildCommand, dto.RebuildResult](manager(ctx), h.engine.Commands, inventoryapp.RebuildCommand{
		RoomTypeID: "rt-1",
		Range:      dates(t, "2026-04-01", "2026-04-04"),
	})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res.Days != 3 || res.Repaired != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := h.available(t, "rt-1", "2026-04-01", "2026-04-04"); !equalInts(got, []int{3, 3, 5}) {
		t.Fatalf("after rebuild: %v", got)
	}
}

func TestSearchRanksAndFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-a", BasePrice: 10000, Rating: 4.5, City: "Lisbon", Amenities: []string{"wifi"}})
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-b", BasePrice: 8000, Rating: 3, City: "Lisbon", Amenities: []string{"wifi"}})
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-c", BasePrice: 6000, Rating: 5, City: "Porto", Amenities: []string{"wifi"}})
	testutil.SeedCatalog(t, ctx, h.store, testutil.RoomTypeSpec{ID: "rt-d", BasePrice: 5000, TotalUnits: 1, Rating: 1, City: "Lisbon"})

	search := func(t *testing.T, q searchapp.Query) []string {
		t.Helper()
		res, err := queries.Ask[searchapp.Query, dto.SearchResult](ctx, h.engine.Queries, q)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		ids := make([]string, 0, len(res.Items))
		for _, it := range res.Items {
			ids = append(ids, it.RoomTypeID)
		}
		return ids
	}
	base := searchapp.Query{City: "lisbon", Range: dates(t, "2026-05-01", "2026-05-03"), Guests: 2}

	cases := []struct {
		name   string
		mutate func(q *searchapp.Query)
		want   []string
	}{
		{"city", func(q *searchapp.Query) {}, []string{"rt-d", "rt-b", "rt-a"}},
		{"amenity", func(q *searchapp.Query) { q.Amenities = []string{"WiFi"} }, []string{"rt-b", "rt-a"}},
		{"price ceiling", func(q *searchapp.Query) { q.PriceMax = 9000 }, []string{"rt-d", "rt-b"}},
		{"limit", func(q *searchapp.Query) { q.Limit = 1 }, []string{"rt-d"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := base
			tc.mutate(&q)
			if got := search(t, q); !equalStrings(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	t.Run("sold out room types drop out", func(t *testing.T) {
		if _, err := h.reserve(t, ctx, stayArgs{roomType: "rt-d", in: "2026-05-02", out: "2026-05-03"}); err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if got := search(t, base); !equalStrings(got, []string{"rt-b", "rt-a"}) {
			t.Fatalf("expected rt-d excluded, got %v", got)
		}
	})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
