package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/domain/shared/money"
)

var (
	ErrConflict         = errors.New("inventory conflict")
	ErrInvalidUnits     = fmt.Errorf("%w: inventory: units must be >= 1", errs.ErrValidation)
	ErrNegativePrice    = fmt.Errorf("%w: inventory: price override must be non-negative", errs.ErrValidation)
	ErrCapacityExceeded = fmt.Errorf("%w: inventory: sellable units cannot exceed total units", errs.ErrValidation)
	ErrEmptyUpdate      = fmt.Errorf("%w: inventory: update carries no changes", errs.ErrValidation)
)

// Day is the per-date state of one room type. Reserved is a materialized cache
// of the units held by non-cancelled bookings covering the date; Blocked is the
// number of physical units a manager took off sale.
type Day struct {
	RoomTypeID    hotels.RoomTypeID
	Date          time.Time
	Reserved      int
	Blocked       int
	PriceOverride *int64
	StopSell      bool
	UpdatedAt     time.Time
}

// Empty returns the implicit state of a date that has no stored row.
func Empty(roomTypeID hotels.RoomTypeID, date time.Time) Day {
	return Day{RoomTypeID: roomTypeID, Date: daterange.Day(date)}
}

// Available returns the units still sellable on the date.
func (d Day) Available(totalUnits int) int {
	return totalUnits - d.Blocked - d.Reserved
}

// Price returns the per-unit nightly price for the date.
func (d Day) Price(base money.Money) money.Money {
	if d.PriceOverride == nil {
		return base
	}
	return money.Money{Amount: *d.PriceOverride, Currency: base.Currency}
}

// Key formats the date the way calendars and derived sums are keyed.
func (d Day) Key() string {
	return d.Date.Format(daterange.Layout)
}

// Reserve takes units for a booking night. The caller must hold the row lock.
func (d *Day) Reserve(units, totalUnits int) error {
	if units < 1 {
		return ErrInvalidUnits
	}
	if err := d.check(units, totalUnits); err != nil {
		return err
	}
	d.Reserved += units
	return nil
}

// Release returns units taken by Reserve. Reserved never drops below zero.
func (d *Day) Release(units int) {
	d.Reserved -= units
	if d.Reserved < 0 {
		d.Reserved = 0
	}
}

func (d Day) check(units, totalUnits int) error {
	available := d.Available(totalUnits)
	if d.StopSell || available < units {
		return &ConflictError{
			RoomTypeID: d.RoomTypeID,
			Date:       d.Date,
			Requested:  units,
			Available:  max(available, 0),
			StopSell:   d.StopSell,
		}
	}
	return nil
}

// CheckCapacity walks days in ascending date order and returns a ConflictError
// for the first date that is stop-sold or short of units.
func CheckCapacity(days []Day, units, totalUnits int) error {
	if units < 1 {
		return ErrInvalidUnits
	}
	for _, d := range days {
		if err := d.check(units, totalUnits); err != nil {
			return err
		}
	}
	return nil
}

// Fill returns one Day per night of dr, in ascending order, using stored rows
// where present and defaults otherwise.
func Fill(roomTypeID hotels.RoomTypeID, dr daterange.DateRange, stored []Day) []Day {
	byDate := make(map[string]Day, len(stored))
	for _, d := range stored {
		byDate[d.Key()] = d
	}
	nights := dr.Dates()
	out := make([]Day, 0, len(nights))
	for _, night := range nights {
		key := night.Format(daterange.Layout)
		if d, ok := byDate[key]; ok {
			out = append(out, d)
			continue
		}
		out = append(out, Empty(roomTypeID, night))
	}
	return out
}

// Repository persists inventory days. LockRange must lock rows in ascending
// date order and materialize missing rows first.
type Repository interface {
	Range(ctx context.Context, roomTypeID hotels.RoomTypeID, dr daterange.DateRange) ([]Day, error)
	LockRange(ctx context.Context, roomTypeID hotels.RoomTypeID, dr daterange.DateRange) ([]Day, error)
	Save(ctx context.Context, days []Day) error
}
