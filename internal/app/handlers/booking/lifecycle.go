package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	"roomledger/internal/app/outbox"
	"roomledger/internal/app/policies"
	"roomledger/internal/app/uow"
	"roomledger/internal/clock"
	domainbooking "roomledger/internal/domain/booking"
	domaininventory "roomledger/internal/domain/inventory"
	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/domain/shared/events"
)

const (
	cancelBookingKey   = "booking.cancel"
	confirmBookingKey  = "booking.confirm"
	checkInBookingKey  = "booking.check_in"
	checkOutBookingKey = "booking.check_out"
)

type CancelCommand struct {
	BookingID string
	Reason    string
}

func (c CancelCommand) Key() string { return cancelBookingKey }

// AllowedRoles admits any authenticated caller.
func (c CancelCommand) AllowedRoles() []string { return nil }

func (c CancelCommand) Validate() error { return requireID(c.BookingID) }

type ConfirmCommand struct {
	BookingID string
}

func (c ConfirmCommand) Key() string { return confirmBookingKey }

func (c ConfirmCommand) AllowedRoles() []string {
	return []string{policies.RoleManager, policies.RoleBilling}
}

func (c ConfirmCommand) Validate() error { return requireID(c.BookingID) }

type CheckInCommand struct {
	BookingID string
}

func (c CheckInCommand) Key() string { return checkInBookingKey }

func (c CheckInCommand) AllowedRoles() []string { return []string{policies.RoleManager} }

func (c CheckInCommand) Validate() error { return requireID(c.BookingID) }

type CheckOutCommand struct {
	BookingID string
}

func (c CheckOutCommand) Key() string { return checkOutBookingKey }

func (c CheckOutCommand) AllowedRoles() []string { return []string{policies.RoleManager} }

func (c CheckOutCommand) Validate() error { return requireID(c.BookingID) }

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: booking id is required", errs.ErrValidation)
	}
	return nil
}

// Lifecycle handles every state change after creation. Transitions that end
// inventory holding give the booking's units back in the same unit of work.
type Lifecycle struct {
	Clock   clock.Clock
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

type CancelHandler struct{ *Lifecycle }
type ConfirmHandler struct{ *Lifecycle }
type CheckInHandler struct{ *Lifecycle }
type CheckOutHandler struct{ *Lifecycle }

func (h CancelHandler) Handle(ctx context.Context, cmd CancelCommand) (*dto.Booking, error) {
	reason := strings.TrimSpace(cmd.Reason)
	return h.transition(ctx, cmd.BookingID, "cancelled", func(b *domainbooking.Booking, now time.Time) (bool, error) {
		return b.Cancel(reason, now)
	})
}

func (h ConfirmHandler) Handle(ctx context.Context, cmd ConfirmCommand) (*dto.Booking, error) {
	return h.transition(ctx, cmd.BookingID, "confirmed", func(b *domainbooking.Booking, now time.Time) (bool, error) {
		if b.Status == domainbooking.StatusConfirmed {
			return false, nil
		}
		return true, b.Confirm(now)
	})
}

func (h CheckInHandler) Handle(ctx context.Context, cmd CheckInCommand) (*dto.Booking, error) {
	return h.transition(ctx, cmd.BookingID, "checked in", func(b *domainbooking.Booking, now time.Time) (bool, error) {
		return true, b.CheckIn(now)
	})
}

func (h CheckOutHandler) Handle(ctx context.Context, cmd CheckOutCommand) (*dto.Booking, error) {
	return h.transition(ctx, cmd.BookingID, "checked out", func(b *domainbooking.Booking, now time.Time) (bool, error) {
		return true, b.CheckOut(now)
	})
}

func (h *Lifecycle) transition(ctx context.Context, id, verb string, apply func(*domainbooking.Booking, time.Time) (bool, error)) (*dto.Booking, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}
	b, err := unit.Bookings().Lock(ctx, domainbooking.BookingID(strings.TrimSpace(id)))
	if err != nil {
		return nil, err
	}
	now := now(h.Clock)
	held := b.Status.HoldsInventory()
	changed, err := apply(b, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		result := dto.MapBooking(b)
		return &result, nil
	}
	if err := h.settle(ctx, unit, b, held, now); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking "+verb, "booking_id", b.ID, "status", b.Status)
	}
	result := dto.MapBooking(b)
	return &result, nil
}

// settle persists a changed booking, releases its units when it stopped
// holding inventory and stages the resulting events.
func (h *Lifecycle) settle(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, held bool, now time.Time) error {
	evs := b.PullEvents()
	if held && !b.Status.HoldsInventory() {
		changed, err := release(ctx, unit, b, now)
		if err != nil {
			return err
		}
		evs = append(evs, changed)
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return err
	}
	return outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, evs)
}

func release(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, now time.Time) (events.DomainEvent, error) {
	rt, err := unit.Hotels().RoomTypeByID(ctx, b.RoomTypeID)
	if err != nil {
		return nil, err
	}
	days, err := unit.Inventory().LockRange(ctx, b.RoomTypeID, b.Range)
	if err != nil {
		return nil, err
	}
	for i := range days {
		days[i].Release(b.Units)
		days[i].UpdatedAt = now
	}
	if err := unit.Inventory().Save(ctx, days); err != nil {
		return nil, err
	}
	return domaininventory.NewChanged(rt, days, "booking.released", now), nil
}

var (
	_ commands.Handler[CancelCommand, *dto.Booking]   = CancelHandler{}
	_ commands.Handler[ConfirmCommand, *dto.Booking]  = ConfirmHandler{}
	_ commands.Handler[CheckInCommand, *dto.Booking]  = CheckInHandler{}
	_ commands.Handler[CheckOutCommand, *dto.Booking] = CheckOutHandler{}
)
