package booking

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"roomledger/internal/domain/hotels"
	"roomledger/internal/domain/pricing"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/domain/shared/events"
)

var (
	ErrBookingNotFound = fmt.Errorf("%w: booking: not found", errs.ErrNotFound)
	ErrDuplicate       = fmt.Errorf("%w: booking: id already used", errs.ErrAlreadyExists)
	ErrGuestName       = fmt.Errorf("%w: booking: guest name is required", errs.ErrValidation)
	ErrGuestEmail      = fmt.Errorf("%w: booking: guest email is invalid", errs.ErrValidation)
	ErrUnits           = fmt.Errorf("%w: booking: units must be >= 1", errs.ErrValidation)
	ErrHoldTTL         = fmt.Errorf("%w: booking: pending bookings need a hold window", errs.ErrValidation)
)

type BookingID string

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusCancelled  Status = "cancelled"
)

// HoldsInventory reports whether bookings in this status count towards the
// reserved units of the nights they cover.
func (s Status) HoldsInventory() bool {
	return s != StatusCancelled && s != ""
}

type Source string

const (
	SourceDirect  Source = "direct"
	SourceChannel Source = "channel"
)

const ReasonHoldExpired = "hold_expired"

type Guest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (g Guest) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrGuestName
	}
	if g.Email != "" {
		if _, err := mail.ParseAddress(g.Email); err != nil {
			return ErrGuestEmail
		}
	}
	return nil
}

type Booking struct {
	ID            BookingID
	HotelID       hotels.HotelID
	RoomTypeID    hotels.RoomTypeID
	Range         daterange.DateRange
	Units         int
	Guest         Guest
	Adults        int
	Children      int
	Status        Status
	Price         pricing.Breakdown
	PromoCode     string
	Source        Source
	ExternalRef   string
	HoldExpiresAt *time.Time
	CancelReason  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	// Lock loads the booking and holds its row until the unit of work ends.
	Lock(ctx context.Context, id BookingID) (*Booking, error)
	Create(ctx context.Context, booking *Booking) error
	Save(ctx context.Context, booking *Booking) error
	// ReservedByDate sums units of inventory-holding bookings per night of dr,
	// keyed by daterange.Layout.
	ReservedByDate(ctx context.Context, roomTypeID hotels.RoomTypeID, dr daterange.DateRange) (map[string]int, error)
	ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]BookingID, error)
}

type CreateParams struct {
	ID             BookingID
	HotelID        hotels.HotelID
	RoomTypeID     hotels.RoomTypeID
	Range          daterange.DateRange
	Units          int
	Guest          Guest
	Adults         int
	Children       int
	Price          pricing.Breakdown
	PromoCode      string
	Source         Source
	ExternalRef    string
	PaymentPending bool
	HoldTTL        time.Duration
	CreatedAt      time.Time
}

// New creates a booking that already holds its inventory. It starts confirmed
// unless payment is still pending, in which case it is a hold that expires
// after HoldTTL.
func New(p CreateParams) (*Booking, error) {
	if p.Units < 1 {
		return nil, ErrUnits
	}
	if err := p.Range.Validate(); err != nil {
		return nil, err
	}
	guest := Guest{Name: strings.TrimSpace(p.Guest.Name), Email: strings.TrimSpace(p.Guest.Email), Phone: strings.TrimSpace(p.Guest.Phone)}
	if err := guest.Validate(); err != nil {
		return nil, err
	}
	if err := p.Price.RecalculateTotal(); err != nil {
		return nil, err
	}
	source := p.Source
	if source == "" {
		source = SourceDirect
	}
	now := p.CreatedAt.UTC()
	b := &Booking{
		ID:          p.ID,
		HotelID:     p.HotelID,
		RoomTypeID:  p.RoomTypeID,
		Range:       p.Range,
		Units:       p.Units,
		Guest:       guest,
		Adults:      p.Adults,
		Children:    p.Children,
		Status:      StatusConfirmed,
		Price:       p.Price.Copy(),
		PromoCode:   p.PromoCode,
		Source:      source,
		ExternalRef: p.ExternalRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.PaymentPending {
		if p.HoldTTL <= 0 {
			return nil, ErrHoldTTL
		}
		expires := now.Add(p.HoldTTL)
		b.Status = StatusPending
		b.HoldExpiresAt = &expires
	}
	b.Record(Reserved{
		BookingID:  b.ID,
		HotelID:    b.HotelID,
		RoomTypeID: b.RoomTypeID,
		CheckIn:    b.Range.CheckIn.Format(daterange.Layout),
		CheckOut:   b.Range.CheckOut.Format(daterange.Layout),
		Units:      b.Units,
		Status:     b.Status,
		Total:      b.Price.Total,
		PromoCode:  b.PromoCode,
		Source:     b.Source,
		At:         now,
	})
	if b.Status == StatusConfirmed {
		b.recordConfirmed(now)
	}
	return b, nil
}

// HoldExpired reports whether a pending booking's hold window has passed.
func (b *Booking) HoldExpired(now time.Time) bool {
	return b.Status == StatusPending && b.HoldExpiresAt != nil && !now.Before(*b.HoldExpiresAt)
}

// Confirm records that payment was captured.
func (b *Booking) Confirm(now time.Time) error {
	if b.Status != StatusPending {
		return b.transitionError("confirm", "")
	}
	if b.HoldExpired(now) {
		return b.transitionError("confirm", "hold expired")
	}
	b.Status = StatusConfirmed
	b.HoldExpiresAt = nil
	b.touch(now)
	b.recordConfirmed(b.UpdatedAt)
	return nil
}

// Cancel moves a pending or confirmed booking to cancelled. It returns false
// without error when the booking is already cancelled; the caller must only
// release inventory when it returns true.
func (b *Booking) Cancel(reason string, now time.Time) (bool, error) {
	switch b.Status {
	case StatusCancelled:
		return false, nil
	case StatusPending, StatusConfirmed:
	default:
		return false, b.transitionError("cancel", "")
	}
	b.Status = StatusCancelled
	b.CancelReason = strings.TrimSpace(reason)
	b.HoldExpiresAt = nil
	b.touch(now)
	b.Record(Cancelled{
		BookingID:  b.ID,
		RoomTypeID: b.RoomTypeID,
		CheckIn:    b.Range.CheckIn.Format(daterange.Layout),
		CheckOut:   b.Range.CheckOut.Format(daterange.Layout),
		Units:      b.Units,
		Reason:     b.CancelReason,
		At:         b.UpdatedAt,
	})
	return true, nil
}

// Expire cancels a pending booking whose hold ran out.
func (b *Booking) Expire(now time.Time) (bool, error) {
	if !b.HoldExpired(now) {
		return false, nil
	}
	return b.Cancel(ReasonHoldExpired, now)
}

// CheckIn is allowed from confirmed, on or after the check-in date.
func (b *Booking) CheckIn(now time.Time) error {
	if b.Status != StatusConfirmed {
		return b.transitionError("check in", "")
	}
	if daterange.Day(now).Before(b.Range.CheckIn) {
		return b.transitionError("check in", "before the check-in date")
	}
	b.Status = StatusCheckedIn
	b.touch(now)
	b.Record(CheckedIn{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) CheckOut(now time.Time) error {
	if b.Status != StatusCheckedIn {
		return b.transitionError("check out", "")
	}
	b.Status = StatusCheckedOut
	b.touch(now)
	b.Record(CheckedOut{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) touch(now time.Time) {
	b.UpdatedAt = now.UTC()
}

func (b *Booking) recordConfirmed(at time.Time) {
	b.Record(Confirmed{
		BookingID:  b.ID,
		HotelID:    b.HotelID,
		RoomTypeID: b.RoomTypeID,
		Total:      b.Price.Total,
		At:         at,
	})
}

func (b *Booking) transitionError(action, detail string) error {
	return &TransitionError{BookingID: b.ID, From: b.Status, Action: action, Detail: detail}
}
