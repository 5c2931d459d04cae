package booking

import (
	"context"
	"strings"

	"roomledger/internal/app/dto"
	"roomledger/internal/app/handlers/support"
	"roomledger/internal/app/queries"
	"roomledger/internal/app/uow"
	domainbooking "roomledger/internal/domain/booking"
)

const getBookingKey = "booking.get"

type GetBookingQuery struct {
	BookingID string
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) Validate() error { return requireID(q.BookingID) }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(strings.TrimSpace(q.BookingID)))
	if err != nil {
		return nil, err
	}
	result := dto.MapBooking(b)
	return &result, nil
}

var _ queries.Handler[GetBookingQuery, *dto.Booking] = (*GetBookingHandler)(nil)
