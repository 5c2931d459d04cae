package booking

import (
	"fmt"

	"roomledger/internal/domain/shared/errs"
)

// TransitionError is returned when a booking's status forbids an action.
type TransitionError struct {
	BookingID BookingID
	From      Status
	Action    string
	Detail    string
}

func (e *TransitionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("booking: cannot %s a %s booking: %s", e.Action, e.From, e.Detail)
	}
	return fmt.Sprintf("booking: cannot %s a %s booking", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return errs.ErrInvalidTransition }
