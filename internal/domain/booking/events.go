package booking

import (
	"time"

	"roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/money"
)

type Reserved struct {
	BookingID  BookingID         `json:"booking_id"`
	HotelID    hotels.HotelID    `json:"hotel_id"`
	RoomTypeID hotels.RoomTypeID `json:"room_type_id"`
	CheckIn    string            `json:"check_in"`
	CheckOut   string            `json:"check_out"`
	Units      int               `json:"units"`
	Status     Status            `json:"status"`
	Total      money.Money       `json:"total"`
	PromoCode  string            `json:"promo_code,omitempty"`
	Source     Source            `json:"source"`
	At         time.Time         `json:"at"`
}

func (e Reserved) EventName() string     { return "booking.reserved" }
func (e Reserved) AggregateID() string   { return string(e.BookingID) }
func (e Reserved) OccurredAt() time.Time { return e.At }

// Confirmed carries the total the billing side captures payment for.
type Confirmed struct {
	BookingID  BookingID         `json:"booking_id"`
	HotelID    hotels.HotelID    `json:"hotel_id"`
	RoomTypeID hotels.RoomTypeID `json:"room_type_id"`
	Total      money.Money       `json:"total"`
	At         time.Time         `json:"at"`
}

func (e Confirmed) EventName() string     { return "booking.confirmed" }
func (e Confirmed) AggregateID() string   { return string(e.BookingID) }
func (e Confirmed) OccurredAt() time.Time { return e.At }

type Cancelled struct {
	BookingID  BookingID         `json:"booking_id"`
	RoomTypeID hotels.RoomTypeID `json:"room_type_id"`
	CheckIn    string            `json:"check_in"`
	CheckOut   string            `json:"check_out"`
	Units      int               `json:"units"`
	Reason     string            `json:"reason,omitempty"`
	At         time.Time         `json:"at"`
}

func (e Cancelled) EventName() string     { return "booking.cancelled" }
func (e Cancelled) AggregateID() string   { return string(e.BookingID) }
func (e Cancelled) OccurredAt() time.Time { return e.At }

type CheckedIn struct {
	BookingID BookingID `json:"booking_id"`
	At        time.Time `json:"at"`
}

func (e CheckedIn) EventName() string     { return "booking.checked_in" }
func (e CheckedIn) AggregateID() string   { return string(e.BookingID) }
func (e CheckedIn) OccurredAt() time.Time { return e.At }

type CheckedOut struct {
	BookingID BookingID `json:"booking_id"`
	At        time.Time `json:"at"`
}

func (e CheckedOut) EventName() string     { return "booking.checked_out" }
func (e CheckedOut) AggregateID() string   { return string(e.BookingID) }
func (e CheckedOut) OccurredAt() time.Time { return e.At }
