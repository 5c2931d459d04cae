package search

import (
	"context"
	"errors"
	"fmt"

	"roomledger/internal/app/dto"
	"roomledger/internal/app/handlers/availability"
	handlersupport "roomledger/internal/app/handlers/support"
	"roomledger/internal/app/queries"
	"roomledger/internal/app/uow"
	domainhotels "roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/domain/stay"
)

const (
	searchKey    = "search.room_types"
	defaultLimit = 20
	maxLimit     = 100
)

// Query describes a guest search. Lat and Lon are an optional origin for
// distance ranking.
type Query struct {
	City      string
	Country   string
	Lat       *float64
	Lon       *float64
	Range     daterange.DateRange
	Guests    int
	Units     int
	PriceMin  int64
	PriceMax  int64
	Amenities []string
	Limit     int
}

func (q Query) Key() string { return searchKey }

func (q Query) Validate() error {
	if err := q.Range.Validate(); err != nil {
		return err
	}
	if q.Guests < 1 {
		return fmt.Errorf("%w: at least one guest is required", errs.ErrValidation)
	}
	if q.Units < 0 || q.Limit < 0 {
		return fmt.Errorf("%w: units and limit must be non-negative", errs.ErrValidation)
	}
	if (q.Lat == nil) != (q.Lon == nil) {
		return fmt.Errorf("%w: lat and lon go together", errs.ErrValidation)
	}
	if q.PriceMax > 0 && q.PriceMax < q.PriceMin {
		return fmt.Errorf("%w: price_max is below price_min", errs.ErrValidation)
	}
	return nil
}

func (q Query) units() int {
	if q.Units < 1 {
		return 1
	}
	return q.Units
}

func (q Query) limit() int {
	switch {
	case q.Limit == 0:
		return defaultLimit
	case q.Limit > maxLimit:
		return maxLimit
	default:
		return q.Limit
	}
}

// Handler filters candidates in the store, checks each one for capacity
// without locks and ranks the survivors.
type Handler struct {
	UoWFactory uow.UoWFactory
}

func (h *Handler) Handle(ctx context.Context, q Query) (dto.SearchResult, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.SearchResult{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	params := domainhotels.SearchParams{
		City:       q.City,
		Country:    q.Country,
		Amenities:  append([]string(nil), q.Amenities...),
		Guests:     q.Guests,
		Units:      q.units(),
		PriceMin:   q.PriceMin,
		PriceMax:   q.PriceMax,
		OnlyActive: true,
	}.Normalized()
	candidates, err := unit.Hotels().SearchRoomTypes(execCtx, params)
	if err != nil {
		return dto.SearchResult{}, err
	}

	hits := make([]hit, 0, len(candidates))
	for _, c := range candidates {
		req := stay.Request{
			RoomTypeID: c.RoomType.ID,
			Range:      q.Range,
			Units:      params.Units,
			Adults:     q.Guests,
		}
		s, err := availability.Capacity(execCtx, unit, req)
		if err != nil {
			if excluded(err) {
				continue
			}
			return dto.SearchResult{}, err
		}
		price, _, err := availability.Price(execCtx, unit.Promos(), s, req, false)
		if err != nil {
			if excluded(err) {
				continue
			}
			return dto.SearchResult{}, err
		}
		hits = append(hits, hit{candidate: c, total: price.Total})
	}

	ranked := rank(hits, origin(q))
	if len(ranked) > q.limit() {
		ranked = ranked[:q.limit()]
	}
	out := dto.SearchResult{Items: make([]dto.SearchItem, 0, len(ranked)), Total: len(hits)}
	for _, r := range ranked {
		out.Items = append(out.Items, r.item())
	}
	return out, nil
}

// excluded reports errors that drop a candidate instead of failing the search.
func excluded(err error) bool {
	return availability.IsUnavailable(err) ||
		errors.Is(err, errs.ErrValidation) ||
		errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, domainhotels.ErrHotelInactive)
}

func origin(q Query) *point {
	if q.Lat == nil || q.Lon == nil {
		return nil
	}
	return &point{lat: *q.Lat, lon: *q.Lon}
}

func (r ranked) item() dto.SearchItem {
	h, rt := r.candidate.Hotel, r.candidate.RoomType
	item := dto.SearchItem{
		HotelID:      string(h.ID),
		HotelName:    h.Name,
		RoomTypeID:   string(rt.ID),
		RoomTypeName: rt.Name,
		City:         h.Location.City,
		Country:      h.Location.Country,
		Rating:       h.Rating,
		Amenities:    mergeAmenities(h.Amenities, rt.Amenities),
		MaxOccupancy: rt.MaxOccupancy,
		Total:        dto.MapMoney(r.total),
		Score:        r.score,
	}
	if r.distance != nil {
		d := *r.distance
		item.DistanceKM = &d
	}
	return item
}

func mergeAmenities(a, b []string) []string {
	return domainhotels.NormalizeTokens(append(append([]string(nil), a...), b...))
}

var _ queries.Handler[Query, dto.SearchResult] = (*Handler)(nil)
