package inventory

import (
	"fmt"
	"time"

	"roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/daterange"
)

// ConflictError names the first date that cannot satisfy a request together
// with the current counts, so callers can re-query before retrying.
type ConflictError struct {
	RoomTypeID hotels.RoomTypeID
	Date       time.Time
	Requested  int
	Available  int
	StopSell   bool
}

func (e *ConflictError) Error() string {
	if e.StopSell {
		return fmt.Sprintf("inventory: %s is closed for sale (requested %d, available %d)", e.Date.Format(daterange.Layout), e.Requested, e.Available)
	}
	return fmt.Sprintf("inventory: not enough units on %s (requested %d, available %d)", e.Date.Format(daterange.Layout), e.Requested, e.Available)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
