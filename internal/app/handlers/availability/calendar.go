package availability

import (
	"context"
	"fmt"

	"roomledger/internal/app/dto"
	handlersupport "roomledger/internal/app/handlers/support"
	"roomledger/internal/app/queries"
	"roomledger/internal/app/uow"
	domainhotels "roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
)

const (
	getCalendarKey  = "availability.calendar"
	maxCalendarDays = 366
)

type GetCalendarQuery struct {
	RoomTypeID string
	Range      daterange.DateRange
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

func (q GetCalendarQuery) Validate() error {
	if q.RoomTypeID == "" {
		return fmt.Errorf("%w: room type id is required", errs.ErrValidation)
	}
	if err := q.Range.Validate(); err != nil {
		return err
	}
	if q.Range.Nights() > maxCalendarDays {
		return fmt.Errorf("%w: calendar range is limited to %d days", errs.ErrValidation, maxCalendarDays)
	}
	return nil
}

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Calendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	rt, err := unit.Hotels().RoomTypeByID(execCtx, domainhotels.RoomTypeID(q.RoomTypeID))
	if err != nil {
		return dto.Calendar{}, err
	}
	days, err := unit.Inventory().Range(execCtx, rt.ID, q.Range)
	if err != nil {
		return dto.Calendar{}, err
	}
	return dto.MapCalendar(rt, days), nil
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
