package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appoutbox "roomledger/internal/app/outbox"
	"roomledger/internal/app/uow"
	domainbooking "roomledger/internal/domain/booking"
	domainhotels "roomledger/internal/domain/hotels"
	domaininventory "roomledger/internal/domain/inventory"
	domainpromo "roomledger/internal/domain/promo"
)

const defaultLockTimeout = 5 * time.Second

// Factory opens READ COMMITTED transactions. Write transactions bound every
// row lock wait with SET LOCAL lock_timeout.
type Factory struct {
	Pool        *pgxpool.Pool
	LockTimeout time.Duration
}

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f == nil || f.Pool == nil {
		return nil, errors.New("postgres: factory has no pool")
	}
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	tx, err := f.Pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, mapError("begin", err)
	}
	if !opts.ReadOnly {
		timeout := opts.LockTimeout
		if timeout <= 0 {
			timeout = f.LockTimeout
		}
		if timeout <= 0 {
			timeout = defaultLockTimeout
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())); err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return nil, mapError("set lock timeout", err)
		}
	}
	return &Unit{tx: tx}, nil
}

// Unit is one pgx transaction. Repositories it hands out write through it
// whether or not the caller's context carries it.
type Unit struct {
	tx pgx.Tx
}

// InjectContext binds the transaction to ctx for code that only has a context.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return contextWithTx(ctx, u.tx)
}

func (u *Unit) Hotels() domainhotels.Repository       { return &HotelRepository{db: u.tx} }
func (u *Unit) Inventory() domaininventory.Repository { return &InventoryRepository{db: u.tx} }
func (u *Unit) Bookings() domainbooking.Repository    { return &BookingRepository{db: u.tx} }
func (u *Unit) Promos() domainpromo.Repository        { return &PromoRepository{db: u.tx} }
func (u *Unit) Outbox() appoutbox.Outbox              { return &OutboxStore{db: u.tx} }

func (u *Unit) Commit(ctx context.Context) error {
	return mapError("commit", u.tx.Commit(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return mapError("rollback", err)
	}
	return nil
}

var _ uow.UoWFactory = (*Factory)(nil)
var _ uow.UnitOfWork = (*Unit)(nil)
