package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainbooking "roomledger/internal/domain/booking"
	domainhotels "roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/daterange"
)

type BookingRepository struct {
	db dbtx
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: pool}
}

const bookingColumns = `id, hotel_id, room_type_id, check_in, check_out, units, guest_name, guest_email, guest_phone, adults, children, status, price, promo_code, source, external_ref, hold_expires_at, cancel_reason, version, created_at, updated_at`

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *BookingRepository) Lock(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *BookingRepository) get(ctx context.Context, query string, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var (
		b     domainbooking.Booking
		price []byte
	)
	err := conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&b.ID, &b.HotelID, &b.RoomTypeID, &b.Range.CheckIn, &b.Range.CheckOut, &b.Units,
		&b.Guest.Name, &b.Guest.Email, &b.Guest.Phone, &b.Adults, &b.Children, &b.Status,
		&price, &b.PromoCode, &b.Source, &b.ExternalRef, &b.HoldExpiresAt, &b.CancelReason,
		&b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, mapError("get booking", err)
	}
	if err := json.Unmarshal(price, &b.Price); err != nil {
		return nil, fmt.Errorf("decode booking price: %w", err)
	}
	b.Range.CheckIn = daterange.Day(b.Range.CheckIn)
	b.Range.CheckOut = daterange.Day(b.Range.CheckOut)
	return &b, nil
}

func (r *BookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	const stmt = `
INSERT INTO bookings (id, hotel_id, room_type_id, check_in, check_out, units, guest_name, guest_email, guest_phone, adults, children, status, price, total, currency, promo_code, source, external_ref, hold_expires_at, cancel_reason, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, 1, $21, $22)`
	price, err := json.Marshal(b.Price)
	if err != nil {
		return fmt.Errorf("encode booking price: %w", err)
	}
	_, err = conn(ctx, r.db).Exec(ctx, stmt,
		b.ID, b.HotelID, b.RoomTypeID, b.Range.CheckIn, b.Range.CheckOut, b.Units,
		b.Guest.Name, b.Guest.Email, b.Guest.Phone, b.Adults, b.Children, b.Status,
		price, b.Price.Total.Amount, b.Price.Currency, b.PromoCode, b.Source, b.ExternalRef,
		b.HoldExpiresAt, b.CancelReason, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domainbooking.ErrDuplicate
		}
		return mapError("create booking", err)
	}
	b.Version = 1
	return nil
}

// Save persists lifecycle fields. The row must be locked by the caller.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	const stmt = `
UPDATE bookings
SET status = $2, hold_expires_at = $3, cancel_reason = $4, updated_at = $5, version = version + 1
WHERE id = $1
RETURNING version`
	err := conn(ctx, r.db).QueryRow(ctx, stmt, b.ID, b.Status, b.HoldExpiresAt, b.CancelReason, b.UpdatedAt).Scan(&b.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainbooking.ErrBookingNotFound
		}
		return mapError("save booking", err)
	}
	return nil
}

// ReservedByDate is the derived reservation sum the materialized counters
// must agree with.
func (r *BookingRepository) ReservedByDate(ctx context.Context, roomTypeID domainhotels.RoomTypeID, dr daterange.DateRange) (map[string]int, error) {
	const query = `
SELECT d::date, SUM(b.units)
FROM bookings b
CROSS JOIN LATERAL generate_series(GREATEST(b.check_in, $2::date)::timestamp, (LEAST(b.check_out, $3::date) - 1)::timestamp, interval '1 day') AS d
WHERE b.room_type_id = $1 AND b.status <> 'cancelled' AND b.check_in < $3 AND b.check_out > $2
GROUP BY 1`
	rows, err := conn(ctx, r.db).Query(ctx, query, roomTypeID, dr.CheckIn, dr.CheckOut)
	if err != nil {
		return nil, mapError("sum reservations", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			day   time.Time
			units int64
		)
		if err := rows.Scan(&day, &units); err != nil {
			return nil, mapError("sum reservations", err)
		}
		out[day.Format(daterange.Layout)] = int(units)
	}
	return out, mapError("sum reservations", rows.Err())
}

func (r *BookingRepository) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domainbooking.BookingID, error) {
	const query = `
SELECT id FROM bookings
WHERE status = 'pending' AND hold_expires_at <= $1
ORDER BY hold_expires_at, id
LIMIT $2`
	rows, err := conn(ctx, r.db).Query(ctx, query, now, limit)
	if err != nil {
		return nil, mapError("expired holds", err)
	}
	defer rows.Close()
	var ids []domainbooking.BookingID
	for rows.Next() {
		var id domainbooking.BookingID
		if err := rows.Scan(&id); err != nil {
			return nil, mapError("expired holds", err)
		}
		ids = append(ids, id)
	}
	return ids, mapError("expired holds", rows.Err())
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
