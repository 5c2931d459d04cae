package hotels

import (
	"fmt"
	"strings"
	"time"

	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/domain/shared/money"
)

var (
	ErrRoomTypeNotFound = fmt.Errorf("%w: hotels: room type not found", errs.ErrNotFound)
	ErrRoomTypeInactive = fmt.Errorf("%w: hotels: room type is not active", errs.ErrValidation)
	ErrOccupancy        = fmt.Errorf("%w: hotels: base occupancy must be >= 1 and <= max occupancy", errs.ErrValidation)
	ErrTotalUnits       = fmt.Errorf("%w: hotels: total units must be >= 1", errs.ErrValidation)
	ErrMinNights        = fmt.Errorf("%w: hotels: min nights must be >= 1", errs.ErrValidation)
	ErrNegativePrice    = fmt.Errorf("%w: hotels: prices must be non-negative", errs.ErrValidation)
)

type RoomTypeID string

// RoomType is a sellable category with a fixed physical unit count.
type RoomType struct {
	ID              RoomTypeID
	HotelID         HotelID
	Name            string
	BasePrice       money.Money
	BaseOccupancy   int
	MaxOccupancy    int
	TotalUnits      int
	MinNights       int
	ExtraAdultPrice money.Money
	ExtraChildPrice money.Money
	Amenities       []string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CreateRoomTypeParams struct {
	ID              RoomTypeID
	HotelID         HotelID
	Name            string
	Currency        string
	BasePrice       int64
	BaseOccupancy   int
	MaxOccupancy    int
	TotalUnits      int
	MinNights       int
	ExtraAdultPrice int64
	ExtraChildPrice int64
	Amenities       []string
	Now             time.Time
}

func NewRoomType(p CreateRoomTypeParams) (*RoomType, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if p.BaseOccupancy < 1 || p.MaxOccupancy < p.BaseOccupancy {
		return nil, ErrOccupancy
	}
	if p.TotalUnits < 1 {
		return nil, ErrTotalUnits
	}
	minNights := p.MinNights
	if minNights == 0 {
		minNights = 1
	}
	if minNights < 1 {
		return nil, ErrMinNights
	}
	if p.BasePrice < 0 || p.ExtraAdultPrice < 0 || p.ExtraChildPrice < 0 {
		return nil, ErrNegativePrice
	}
	base, err := money.New(p.BasePrice, p.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	now := p.Now.UTC()
	return &RoomType{
		ID:              p.ID,
		HotelID:         p.HotelID,
		Name:            name,
		BasePrice:       base,
		BaseOccupancy:   p.BaseOccupancy,
		MaxOccupancy:    p.MaxOccupancy,
		TotalUnits:      p.TotalUnits,
		MinNights:       minNights,
		ExtraAdultPrice: money.Money{Amount: p.ExtraAdultPrice, Currency: base.Currency},
		ExtraChildPrice: money.Money{Amount: p.ExtraChildPrice, Currency: base.Currency},
		Amenities:       NormalizeTokens(p.Amenities),
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Currency returns the room type's pricing currency.
func (rt *RoomType) Currency() string {
	return rt.BasePrice.Currency
}

func (rt *RoomType) Deactivate(now time.Time) {
	rt.Active = false
	rt.UpdatedAt = now.UTC()
}

// Candidate pairs a room type with its hotel for search.
type Candidate struct {
	Hotel    *Hotel
	RoomType *RoomType
}

// SearchParams narrows candidate room types before availability is checked.
type SearchParams struct {
	City       string
	Country    string
	Amenities  []string
	Guests     int
	Units      int
	PriceMin   int64
	PriceMax   int64
	OnlyActive bool
}

// Normalized returns a sanitized copy of params.
func (p SearchParams) Normalized() SearchParams {
	out := p
	out.City = strings.TrimSpace(strings.ToLower(out.City))
	out.Country = strings.TrimSpace(strings.ToLower(out.Country))
	out.Amenities = NormalizeTokens(out.Amenities)
	if out.Guests < 0 {
		out.Guests = 0
	}
	if out.Units < 1 {
		out.Units = 1
	}
	if out.PriceMin < 0 {
		out.PriceMin = 0
	}
	if out.PriceMax > 0 && out.PriceMax < out.PriceMin {
		out.PriceMax = 0
	}
	return out
}

// Matches applies the non-availability filters in memory.
func (p SearchParams) Matches(c Candidate) bool {
	if c.Hotel == nil || c.RoomType == nil {
		return false
	}
	if p.OnlyActive && (!c.Hotel.Active || !c.RoomType.Active) {
		return false
	}
	if p.City != "" && !strings.EqualFold(c.Hotel.Location.City, p.City) {
		return false
	}
	if p.Country != "" && !strings.EqualFold(c.Hotel.Location.Country, p.Country) {
		return false
	}
	if p.Guests > 0 && c.RoomType.MaxOccupancy < p.Guests {
		return false
	}
	if p.PriceMin > 0 && c.RoomType.BasePrice.Amount < p.PriceMin {
		return false
	}
	if p.PriceMax > 0 && c.RoomType.BasePrice.Amount > p.PriceMax {
		return false
	}
	return HasAllTokens(append(append([]string(nil), c.Hotel.Amenities...), c.RoomType.Amenities...), p.Amenities)
}

// HasAllTokens reports whether every wanted token appears in have.
func HasAllTokens(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[strings.ToLower(h)] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
