package availability

import (
	"context"

	"roomledger/internal/app/dto"
	handlersupport "roomledger/internal/app/handlers/support"
	"roomledger/internal/app/queries"
	"roomledger/internal/app/uow"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/stay"
)

const checkAvailabilityKey = "availability.check"

// CheckQuery asks for a read-only quote of a stay.
type CheckQuery struct {
	Request stay.Request
}

func (q CheckQuery) Key() string { return checkAvailabilityKey }

func (q CheckQuery) Validate() error { return q.Request.ValidateShape() }

type CheckHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *CheckHandler) Handle(ctx context.Context, q CheckQuery) (dto.Quote, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Quote{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	s, err := Capacity(execCtx, unit, q.Request)
	if err != nil {
		return dto.Quote{}, err
	}
	price, _, err := Price(execCtx, unit.Promos(), s, q.Request, false)
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.Quote{
		HotelID:    string(s.Hotel.ID),
		RoomTypeID: string(s.RoomType.ID),
		CheckIn:    q.Request.Range.CheckIn.Format(daterange.Layout),
		CheckOut:   q.Request.Range.CheckOut.Format(daterange.Layout),
		Nights:     q.Request.Nights(),
		Units:      q.Request.Units,
		Guests:     q.Request.Guests(),
		Price:      price,
	}, nil
}

var _ queries.Handler[CheckQuery, dto.Quote] = (*CheckHandler)(nil)
