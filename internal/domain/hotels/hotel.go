package hotels

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"roomledger/internal/domain/shared/errs"
)

var (
	ErrHotelNotFound    = fmt.Errorf("%w: hotels: hotel not found", errs.ErrNotFound)
	ErrNameRequired     = fmt.Errorf("%w: hotels: name is required", errs.ErrValidation)
	ErrLocationRequired = fmt.Errorf("%w: hotels: city and country are required", errs.ErrValidation)
	ErrInvalidTime      = fmt.Errorf("%w: hotels: check-in/check-out times must be HH:MM", errs.ErrValidation)
	ErrInvalidRating    = fmt.Errorf("%w: hotels: rating must be between 0 and 5", errs.ErrValidation)
	ErrHotelInactive    = fmt.Errorf("%w: hotels: hotel is not active", errs.ErrValidation)
)

var clockTime = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type HotelID string

type Location struct {
	Line1   string
	City    string
	Country string
	Lat     float64
	Lon     float64
}

func (l Location) Valid() bool {
	return strings.TrimSpace(l.City) != "" && strings.TrimSpace(l.Country) != ""
}

// Hotel owns room types. Hotels are deactivated, never deleted, while bookings
// reference them.
type Hotel struct {
	ID           HotelID
	Name         string
	Location     Location
	CheckInTime  string
	CheckOutTime string
	Rating       float64
	Amenities    []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CreateHotelParams struct {
	ID           HotelID
	Name         string
	Location     Location
	CheckInTime  string
	CheckOutTime string
	Rating       float64
	Amenities    []string
	Now          time.Time
}

func NewHotel(p CreateHotelParams) (*Hotel, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if !p.Location.Valid() {
		return nil, ErrLocationRequired
	}
	checkIn := defaultString(p.CheckInTime, "15:00")
	checkOut := defaultString(p.CheckOutTime, "11:00")
	if !clockTime.MatchString(checkIn) || !clockTime.MatchString(checkOut) {
		return nil, ErrInvalidTime
	}
	if p.Rating < 0 || p.Rating > 5 {
		return nil, ErrInvalidRating
	}
	now := p.Now.UTC()
	return &Hotel{
		ID:           p.ID,
		Name:         name,
		Location:     p.Location,
		CheckInTime:  checkIn,
		CheckOutTime: checkOut,
		Rating:       p.Rating,
		Amenities:    NormalizeTokens(p.Amenities),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (h *Hotel) Deactivate(now time.Time) {
	h.Active = false
	h.UpdatedAt = now.UTC()
}

// Repository persists hotels and their room types.
type Repository interface {
	HotelByID(ctx context.Context, id HotelID) (*Hotel, error)
	SaveHotel(ctx context.Context, hotel *Hotel) error
	RoomTypeByID(ctx context.Context, id RoomTypeID) (*RoomType, error)
	SaveRoomType(ctx context.Context, roomType *RoomType) error
	SearchRoomTypes(ctx context.Context, params SearchParams) ([]Candidate, error)
}

func defaultString(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

// NormalizeTokens lower-cases, trims and de-duplicates tag-like values.
func NormalizeTokens(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(strings.ToLower(token))
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
