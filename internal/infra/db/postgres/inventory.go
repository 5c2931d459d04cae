package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainhotels "roomledger/internal/domain/hotels"
	domaininventory "roomledger/internal/domain/inventory"
	"roomledger/internal/domain/shared/daterange"
)

type InventoryRepository struct {
	db dbtx
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{db: pool}
}

const dayColumns = `room_type_id, day, reserved, blocked, price_override, stop_sell, updated_at`

func (r *InventoryRepository) Range(ctx context.Context, roomTypeID domainhotels.RoomTypeID, dr daterange.DateRange) ([]domaininventory.Day, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	const query = `SELECT ` + dayColumns + ` FROM inventory_days WHERE room_type_id = $1 AND day >= $2 AND day < $3 ORDER BY day`
	stored, err := r.collect(ctx, "read inventory", query, roomTypeID, dr.CheckIn, dr.CheckOut)
	if err != nil {
		return nil, err
	}
	return domaininventory.Fill(roomTypeID, dr, stored), nil
}

// LockRange materializes absent rows, then locks every row of dr in ascending
// date order. Two transactions locking overlapping ranges therefore queue on
// the earliest shared date instead of deadlocking.
func (r *InventoryRepository) LockRange(ctx context.Context, roomTypeID domainhotels.RoomTypeID, dr daterange.DateRange) ([]domaininventory.Day, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	const materialize = `
INSERT INTO inventory_days (room_type_id, day)
SELECT $1, d::date
FROM generate_series($2::date, $3::date - 1, interval '1 day') AS d
ORDER BY d
ON CONFLICT (room_type_id, day) DO NOTHING`
	if _, err := conn(ctx, r.db).Exec(ctx, materialize, roomTypeID, dr.CheckIn, dr.CheckOut); err != nil {
		if pgCode(err) == "23503" {
			return nil, domainhotels.ErrRoomTypeNotFound
		}
		return nil, mapError("materialize inventory", err)
	}
	const lock = `SELECT ` + dayColumns + ` FROM inventory_days WHERE room_type_id = $1 AND day >= $2 AND day < $3 ORDER BY day FOR UPDATE`
	days, err := r.collect(ctx, "lock inventory", lock, roomTypeID, dr.CheckIn, dr.CheckOut)
	if err != nil {
		return nil, err
	}
	if len(days) != dr.Nights() {
		return nil, fmt.Errorf("lock inventory: expected %d rows, got %d", dr.Nights(), len(days))
	}
	return days, nil
}

func (r *InventoryRepository) Save(ctx context.Context, days []domaininventory.Day) error {
	if len(days) == 0 {
		return nil
	}
	const stmt = `
INSERT INTO inventory_days (room_type_id, day, reserved, blocked, price_override, stop_sell, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
ON CONFLICT (room_type_id, day) DO UPDATE SET
	reserved = EXCLUDED.reserved,
	blocked = EXCLUDED.blocked,
	price_override = EXCLUDED.price_override,
	stop_sell = EXCLUDED.stop_sell,
	updated_at = EXCLUDED.updated_at`
	batch := &pgx.Batch{}
	for _, d := range days {
		var updatedAt any
		if !d.UpdatedAt.IsZero() {
			updatedAt = d.UpdatedAt
		}
		batch.Queue(stmt, d.RoomTypeID, d.Date, d.Reserved, d.Blocked, d.PriceOverride, d.StopSell, updatedAt)
	}
	results := conn(ctx, r.db).SendBatch(ctx, batch)
	defer results.Close()
	for range days {
		if _, err := results.Exec(); err != nil {
			return mapError("save inventory", err)
		}
	}
	return nil
}

func (r *InventoryRepository) collect(ctx context.Context, op, query string, args ...any) ([]domaininventory.Day, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()
	var out []domaininventory.Day
	for rows.Next() {
		var d domaininventory.Day
		if err := rows.Scan(&d.RoomTypeID, &d.Date, &d.Reserved, &d.Blocked, &d.PriceOverride, &d.StopSell, &d.UpdatedAt); err != nil {
			return nil, mapError(op, err)
		}
		d.Date = daterange.Day(d.Date)
		out = append(out, d)
	}
	return out, mapError(op, rows.Err())
}

var _ domaininventory.Repository = (*InventoryRepository)(nil)
