package daterange

import (
	"errors"
	"fmt"
	"time"

	"roomledger/internal/domain/shared/errs"
)

var (
	ErrInvalidRange = fmt.Errorf("%w: daterange: checkout must be after checkin", errs.ErrValidation)
	ErrMissingDate  = fmt.Errorf("%w: daterange: check-in and check-out are required", errs.ErrValidation)
)

// Layout is the wire format for calendar dates.
const Layout = "2006-01-02"

// DateRange represents a half-open interval of nights [CheckIn, CheckOut).
// Both ends are normalized to UTC midnight.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	if checkIn == "" || checkOut == "" {
		return DateRange{}, ErrMissingDate
	}
	in, err := ParseDay(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDay(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

// ParseDay accepts YYYY-MM-DD or RFC3339 and returns the UTC calendar day.
func ParseDay(raw string) (time.Time, error) {
	if t, err := time.Parse(Layout, raw); err == nil {
		return Day(t), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return Day(t), nil
	}
	return time.Time{}, fmt.Errorf("%w: daterange: invalid date %q", errs.ErrValidation, raw)
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrMissingDate
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return int(Day(dr.CheckOut).Sub(Day(dr.CheckIn)).Hours() / 24)
}

// Dates lists every night of the range in ascending order.
func (dr DateRange) Dates() []time.Time {
	n := dr.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	start := Day(dr.CheckIn)
	for i := 0; i < n; i++ {
		out = append(out, start.AddDate(0, 0, i))
	}
	return out
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) Contains(other DateRange) bool {
	return !other.CheckIn.Before(dr.CheckIn) && !other.CheckOut.After(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Day(t)
	return !t.Before(dr.CheckIn) && t.Before(dr.CheckOut)
}

func (dr DateRange) String() string {
	return dr.CheckIn.Format(Layout) + "/" + dr.CheckOut.Format(Layout)
}

// IsInvalid reports whether err came from range validation.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidRange) || errors.Is(err, ErrMissingDate)
}
