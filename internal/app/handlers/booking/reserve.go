package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	"roomledger/internal/app/handlers/availability"
	"roomledger/internal/app/middleware"
	"roomledger/internal/app/outbox"
	"roomledger/internal/app/policies"
	"roomledger/internal/app/uow"
	"roomledger/internal/clock"
	domainbooking "roomledger/internal/domain/booking"
	domaininventory "roomledger/internal/domain/inventory"
	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/domain/shared/events"
	"roomledger/internal/domain/stay"
)

const reserveBookingKey = "booking.reserve"

// bookingIDSpace namespaces booking IDs derived from idempotency keys.
var bookingIDSpace = uuid.MustParse("6f1c2d4e-8a3b-4c5d-9e7f-0a1b2c3d4e5f")

type ReserveCommand struct {
	BookingID       string
	Request         stay.Request
	Guest           domainbooking.Guest
	PaymentPending  bool
	Source          domainbooking.Source
	ExternalRef     string
	IdempotencyKeyV string
}

func (c ReserveCommand) Key() string { return reserveBookingKey }

func (c ReserveCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c ReserveCommand) ResultPrototype() any { return &dto.Booking{} }

// Validate rejects malformed input before any lock is taken.
func (c ReserveCommand) Validate() error {
	if err := c.Request.ValidateShape(); err != nil {
		return err
	}
	switch c.Source {
	case "", domainbooking.SourceDirect, domainbooking.SourceChannel:
	default:
		return fmt.Errorf("%w: unknown booking source %q", errs.ErrValidation, c.Source)
	}
	if c.Source == domainbooking.SourceChannel && strings.TrimSpace(c.ExternalRef) == "" {
		return fmt.Errorf("%w: channel bookings need an external reference", errs.ErrValidation)
	}
	return c.Guest.Validate()
}

// ReserveHandler atomically takes inventory for every night of the stay and
// records the booking. It relies on the Transaction middleware: any error
// returned here rolls back day counters, promo usage and the booking row.
type ReserveHandler struct {
	Clock   clock.Clock
	HoldTTL time.Duration
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *ReserveHandler) Handle(ctx context.Context, cmd ReserveCommand) (*dto.Booking, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}
	req := cmd.Request
	hotel, rt, err := availability.Load(ctx, unit, req)
	if err != nil {
		return nil, err
	}

	days, err := unit.Inventory().LockRange(ctx, rt.ID, req.Range)
	if err != nil {
		return nil, err
	}
	id, derived := h.bookingID(ctx, cmd)
	if derived {
		// Same-key calls lock the same nights, so an earlier one has committed.
		existing, err := unit.Bookings().ByID(ctx, id)
		switch {
		case err == nil:
			if h.Logger != nil {
				h.Logger.Info("booking replayed", "booking_id", existing.ID)
			}
			result := dto.MapBooking(existing)
			return &result, nil
		case !errors.Is(err, domainbooking.ErrBookingNotFound):
			return nil, err
		}
	}
	if err := domaininventory.CheckCapacity(days, req.Units, rt.TotalUnits); err != nil {
		h.logRejected(cmd, err)
		return nil, err
	}

	now := now(h.Clock)
	price, code, err := availability.Price(ctx, unit.Promos(), availability.Stay{Hotel: hotel, RoomType: rt, Days: days}, req, true)
	if err != nil {
		return nil, err
	}
	if code != nil {
		if err := code.Redeem(req.Range, now); err != nil {
			return nil, err
		}
		if err := unit.Promos().Save(ctx, code); err != nil {
			return nil, err
		}
	}

	for i := range days {
		if err := days[i].Reserve(req.Units, rt.TotalUnits); err != nil {
			return nil, err
		}
		days[i].UpdatedAt = now
	}
	if err := unit.Inventory().Save(ctx, days); err != nil {
		return nil, err
	}

	promoCode := ""
	if code != nil {
		promoCode = code.Code
	}
	b, err := domainbooking.New(domainbooking.CreateParams{
		ID:             id,
		HotelID:        hotel.ID,
		RoomTypeID:     rt.ID,
		Range:          req.Range,
		Units:          req.Units,
		Guest:          cmd.Guest,
		Adults:         req.Adults,
		Children:       req.Children,
		Price:          price,
		PromoCode:      promoCode,
		Source:         cmd.Source,
		ExternalRef:    cmd.ExternalRef,
		PaymentPending: cmd.PaymentPending,
		HoldTTL:        h.HoldTTL,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Create(ctx, b); err != nil {
		return nil, err
	}

	evs := append(b.PullEvents(), events.DomainEvent(domaininventory.NewChanged(rt, days, "booking.reserved", now)))
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, evs); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking reserved",
			"booking_id", b.ID,
			"room_type_id", rt.ID,
			"range", req.Range.String(),
			"units", req.Units,
			"status", b.Status,
			"total", b.Price.Total.Amount,
			"source", b.Source,
		)
	}
	result := dto.MapBooking(b)
	return &result, nil
}

// bookingID picks the caller's ID, else one derived from the principal scoped
// idempotency key, else a random one. derived is true only for the second case.
func (h *ReserveHandler) bookingID(ctx context.Context, cmd ReserveCommand) (domainbooking.BookingID, bool) {
	if id := strings.TrimSpace(cmd.BookingID); id != "" {
		return domainbooking.BookingID(id), false
	}
	if cmd.IdempotencyKeyV != "" {
		scoped := policies.ScopedKey(ctx, cmd.IdempotencyKeyV)
		return domainbooking.BookingID(uuid.NewSHA1(bookingIDSpace, []byte(scoped)).String()), true
	}
	return domainbooking.BookingID(uuid.NewString()), false
}

func (h *ReserveHandler) logRejected(cmd ReserveCommand, err error) {
	if h.Logger == nil {
		return
	}
	h.Logger.Info("reservation rejected",
		"room_type_id", cmd.Request.RoomTypeID,
		"range", cmd.Request.Range.String(),
		"units", cmd.Request.Units,
		"error", err,
	)
}

func now(c clock.Clock) time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c.Now()
}

var _ commands.Handler[ReserveCommand, *dto.Booking] = (*ReserveHandler)(nil)
var _ middleware.IdempotentCommand = ReserveCommand{}
