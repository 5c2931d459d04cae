package availability

import (
	"context"
	"errors"

	"roomledger/internal/app/uow"
	domainhotels "roomledger/internal/domain/hotels"
	domaininventory "roomledger/internal/domain/inventory"
	domainpricing "roomledger/internal/domain/pricing"
	domainpromo "roomledger/internal/domain/promo"
	"roomledger/internal/domain/stay"
)

// Stay is a request that passed validation and the capacity check.
type Stay struct {
	Hotel    *domainhotels.Hotel
	RoomType *domainhotels.RoomType
	Days     []domaininventory.Day
}

// Load validates req against its room type and hotel. It takes no locks.
func Load(ctx context.Context, unit uow.UnitOfWork, req stay.Request) (*domainhotels.Hotel, *domainhotels.RoomType, error) {
	if err := req.ValidateShape(); err != nil {
		return nil, nil, err
	}
	rt, err := unit.Hotels().RoomTypeByID(ctx, req.RoomTypeID)
	if err != nil {
		return nil, nil, err
	}
	hotel, err := unit.Hotels().HotelByID(ctx, rt.HotelID)
	if err != nil {
		return nil, nil, err
	}
	if !hotel.Active {
		return nil, nil, domainhotels.ErrHotelInactive
	}
	if err := req.Validate(rt); err != nil {
		return nil, nil, err
	}
	return hotel, rt, nil
}

// Capacity checks every night of req without locks. The answer may be stale
// by the time a reservation runs; Reserve re-checks under row locks.
func Capacity(ctx context.Context, unit uow.UnitOfWork, req stay.Request) (Stay, error) {
	hotel, rt, err := Load(ctx, unit, req)
	if err != nil {
		return Stay{}, err
	}
	days, err := unit.Inventory().Range(ctx, rt.ID, req.Range)
	if err != nil {
		return Stay{}, err
	}
	if err := domaininventory.CheckCapacity(days, req.Units, rt.TotalUnits); err != nil {
		return Stay{}, err
	}
	return Stay{Hotel: hotel, RoomType: rt, Days: days}, nil
}

// Price prices checked days. With lock set the promo row is locked so the
// caller can redeem it in the same unit of work.
func Price(ctx context.Context, promos domainpromo.Repository, s Stay, req stay.Request, lock bool) (domainpricing.Breakdown, *domainpromo.Code, error) {
	var code *domainpromo.Code
	if raw := domainpromo.Normalize(req.PromoCode); raw != "" {
		var err error
		if lock {
			code, err = promos.Lock(ctx, raw)
		} else {
			code, err = promos.ByCode(ctx, raw)
		}
		if err != nil {
			return domainpricing.Breakdown{}, nil, err
		}
	}
	breakdown, err := domainpricing.Quote(s.RoomType, req, s.Days, code)
	if err != nil {
		return domainpricing.Breakdown{}, nil, err
	}
	return breakdown, code, nil
}

// IsUnavailable reports errors that mean "this room type cannot host the
// stay" rather than a failure of the check itself.
func IsUnavailable(err error) bool {
	var conflict *domaininventory.ConflictError
	return errors.As(err, &conflict)
}
