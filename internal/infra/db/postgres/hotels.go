package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainhotels "roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/money"
)

type HotelRepository struct {
	db dbtx
}

func NewHotelRepository(pool *pgxpool.Pool) *HotelRepository {
	return &HotelRepository{db: pool}
}

const hotelColumns = `h.id, h.name, h.line1, h.city, h.country, h.lat, h.lon, h.check_in_time, h.check_out_time, h.rating, h.amenities, h.active, h.created_at, h.updated_at`

const roomTypeColumns = `rt.id, rt.hotel_id, rt.name, rt.currency, rt.base_price, rt.base_occupancy, rt.max_occupancy, rt.total_units, rt.min_nights, rt.extra_adult_price, rt.extra_child_price, rt.amenities, rt.active, rt.created_at, rt.updated_at`

func scanHotel(row pgx.Row, h *domainhotels.Hotel) error {
	return row.Scan(&h.ID, &h.Name, &h.Location.Line1, &h.Location.City, &h.Location.Country,
		&h.Location.Lat, &h.Location.Lon, &h.CheckInTime, &h.CheckOutTime, &h.Rating,
		&h.Amenities, &h.Active, &h.CreatedAt, &h.UpdatedAt)
}

func roomTypeTargets(rt *domainhotels.RoomType, currency *string, base, extraAdult, extraChild *int64) []any {
	return []any{&rt.ID, &rt.HotelID, &rt.Name, currency, base, &rt.BaseOccupancy, &rt.MaxOccupancy,
		&rt.TotalUnits, &rt.MinNights, extraAdult, extraChild, &rt.Amenities, &rt.Active,
		&rt.CreatedAt, &rt.UpdatedAt}
}

func finishRoomType(rt *domainhotels.RoomType, currency string, base, extraAdult, extraChild int64) {
	rt.BasePrice = money.Money{Amount: base, Currency: currency}
	rt.ExtraAdultPrice = money.Money{Amount: extraAdult, Currency: currency}
	rt.ExtraChildPrice = money.Money{Amount: extraChild, Currency: currency}
}

func (r *HotelRepository) HotelByID(ctx context.Context, id domainhotels.HotelID) (*domainhotels.Hotel, error) {
	const query = `SELECT ` + hotelColumns + ` FROM hotels h WHERE h.id = $1`
	var h domainhotels.Hotel
	if err := scanHotel(conn(ctx, r.db).QueryRow(ctx, query, id), &h); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainhotels.ErrHotelNotFound
		}
		return nil, mapError("get hotel", err)
	}
	return &h, nil
}

func (r *HotelRepository) SaveHotel(ctx context.Context, h *domainhotels.Hotel) error {
	const stmt = `
INSERT INTO hotels (id, name, line1, city, country, lat, lon, check_in_time, check_out_time, rating, amenities, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name, line1 = EXCLUDED.line1, city = EXCLUDED.city, country = EXCLUDED.country,
	lat = EXCLUDED.lat, lon = EXCLUDED.lon, check_in_time = EXCLUDED.check_in_time,
	check_out_time = EXCLUDED.check_out_time, rating = EXCLUDED.rating, amenities = EXCLUDED.amenities,
	active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	amenities := h.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	_, err := conn(ctx, r.db).Exec(ctx, stmt, h.ID, h.Name, h.Location.Line1, h.Location.City, h.Location.Country,
		h.Location.Lat, h.Location.Lon, h.CheckInTime, h.CheckOutTime, h.Rating, amenities, h.Active,
		h.CreatedAt, h.UpdatedAt)
	return mapError("save hotel", err)
}

func (r *HotelRepository) RoomTypeByID(ctx context.Context, id domainhotels.RoomTypeID) (*domainhotels.RoomType, error) {
	const query = `SELECT ` + roomTypeColumns + ` FROM room_types rt WHERE rt.id = $1`
	var (
		rt                           domainhotels.RoomType
		currency                     string
		base, extraAdult, extraChild int64
	)
	err := conn(ctx, r.db).QueryRow(ctx, query, id).Scan(roomTypeTargets(&rt, &currency, &base, &extraAdult, &extraChild)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainhotels.ErrRoomTypeNotFound
		}
		return nil, mapError("get room type", err)
	}
	finishRoomType(&rt, currency, base, extraAdult, extraChild)
	return &rt, nil
}

func (r *HotelRepository) SaveRoomType(ctx context.Context, rt *domainhotels.RoomType) error {
	const stmt = `
INSERT INTO room_types (id, hotel_id, name, currency, base_price, base_occupancy, max_occupancy, total_units, min_nights, extra_adult_price, extra_child_price, amenities, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name, base_price = EXCLUDED.base_price, base_occupancy = EXCLUDED.base_occupancy,
	max_occupancy = EXCLUDED.max_occupancy, total_units = EXCLUDED.total_units, min_nights = EXCLUDED.min_nights,
	extra_adult_price = EXCLUDED.extra_adult_price, extra_child_price = EXCLUDED.extra_child_price,
	amenities = EXCLUDED.amenities, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	amenities := rt.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	_, err := conn(ctx, r.db).Exec(ctx, stmt, rt.ID, rt.HotelID, rt.Name, rt.Currency(), rt.BasePrice.Amount,
		rt.BaseOccupancy, rt.MaxOccupancy, rt.TotalUnits, rt.MinNights, rt.ExtraAdultPrice.Amount,
		rt.ExtraChildPrice.Amount, amenities, rt.Active, rt.CreatedAt, rt.UpdatedAt)
	if err != nil && pgCode(err) == "23503" {
		return domainhotels.ErrHotelNotFound
	}
	return mapError("save room type", err)
}

// SearchRoomTypes applies location, occupancy, price and amenity filters in
// SQL. Amenities match against the union of hotel and room type tags.
func (r *HotelRepository) SearchRoomTypes(ctx context.Context, params domainhotels.SearchParams) ([]domainhotels.Candidate, error) {
	params = params.Normalized()
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if params.OnlyActive {
		where = append(where, "h.active", "rt.active")
	}
	if params.City != "" {
		where = append(where, "lower(h.city) = "+arg(params.City))
	}
	if params.Country != "" {
		where = append(where, "lower(h.country) = "+arg(params.Country))
	}
	if params.Guests > 0 {
		where = append(where, "rt.max_occupancy >= "+arg(params.Guests))
	}
	if params.PriceMin > 0 {
		where = append(where, "rt.base_price >= "+arg(params.PriceMin))
	}
	if params.PriceMax > 0 {
		where = append(where, "rt.base_price <= "+arg(params.PriceMax))
	}
	if len(params.Amenities) > 0 {
		where = append(where, "(h.amenities || rt.amenities) @> "+arg(params.Amenities)+"::text[]")
	}
	query := `SELECT ` + hotelColumns + `, ` + roomTypeColumns + ` FROM room_types rt JOIN hotels h ON h.id = rt.hotel_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rt.id"

	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("search room types", err)
	}
	defer rows.Close()
	var out []domainhotels.Candidate
	for rows.Next() {
		var (
			h                            domainhotels.Hotel
			rt                           domainhotels.RoomType
			currency                     string
			base, extraAdult, extraChild int64
		)
		targets := []any{&h.ID, &h.Name, &h.Location.Line1, &h.Location.City, &h.Location.Country,
			&h.Location.Lat, &h.Location.Lon, &h.CheckInTime, &h.CheckOutTime, &h.Rating,
			&h.Amenities, &h.Active, &h.CreatedAt, &h.UpdatedAt}
		targets = append(targets, roomTypeTargets(&rt, &currency, &base, &extraAdult, &extraChild)...)
		if err := rows.Scan(targets...); err != nil {
			return nil, mapError("scan room type", err)
		}
		finishRoomType(&rt, currency, base, extraAdult, extraChild)
		out = append(out, domainhotels.Candidate{Hotel: &h, RoomType: &rt})
	}
	return out, mapError("search room types", rows.Err())
}

var _ domainhotels.Repository = (*HotelRepository)(nil)
