package stay

import (
	"fmt"

	"roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
)

// MaxNights bounds a single stay, matching the bulk update window.
const MaxNights = 366

var (
	ErrTooLong       = fmt.Errorf("%w: stay: at most %d nights per booking", errs.ErrValidation, MaxNights)
	ErrUnits         = fmt.Errorf("%w: stay: units must be >= 1", errs.ErrValidation)
	ErrGuests        = fmt.Errorf("%w: stay: at least one adult is required", errs.ErrValidation)
	ErrNegativeCount = fmt.Errorf("%w: stay: guest counts must be non-negative", errs.ErrValidation)
	ErrRoomTypeID    = fmt.Errorf("%w: stay: room type id is required", errs.ErrValidation)
)

// Request is what a guest asks for: a room type, a range of nights, how many
// units and who is staying.
type Request struct {
	RoomTypeID hotels.RoomTypeID
	Range      daterange.DateRange
	Units      int
	Adults     int
	Children   int
	PromoCode  string
}

func (r Request) Guests() int {
	return r.Adults + r.Children
}

func (r Request) Nights() int {
	return r.Range.Nights()
}

// ValidateShape checks everything that does not need the room type.
func (r Request) ValidateShape() error {
	if r.RoomTypeID == "" {
		return ErrRoomTypeID
	}
	if err := r.Range.Validate(); err != nil {
		return err
	}
	if r.Nights() > MaxNights {
		return ErrTooLong
	}
	if r.Units < 1 {
		return ErrUnits
	}
	if r.Adults < 0 || r.Children < 0 {
		return ErrNegativeCount
	}
	if r.Adults < 1 {
		return ErrGuests
	}
	return nil
}

// Validate checks the request against the room type's stay rules.
func (r Request) Validate(rt *hotels.RoomType) error {
	if err := r.ValidateShape(); err != nil {
		return err
	}
	if !rt.Active {
		return hotels.ErrRoomTypeInactive
	}
	if nights := r.Nights(); nights < rt.MinNights {
		return fmt.Errorf("%w: stay: %d nights is below the minimum of %d", errs.ErrValidation, nights, rt.MinNights)
	}
	if r.Guests() > rt.MaxOccupancy {
		return fmt.Errorf("%w: stay: %d guests exceed max occupancy %d", errs.ErrValidation, r.Guests(), rt.MaxOccupancy)
	}
	return nil
}
