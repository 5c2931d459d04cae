package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	appoutbox "roomledger/internal/app/outbox"
	"roomledger/internal/app/uow"
	domainbooking "roomledger/internal/domain/booking"
	domainhotels "roomledger/internal/domain/hotels"
	domaininventory "roomledger/internal/domain/inventory"
	domainpromo "roomledger/internal/domain/promo"
	"roomledger/internal/domain/shared/errs"
)

// Begin opens a unit. Read-only units read the committed state as of Begin.
// Write units wait for the store semaphore for at most the lock timeout and
// stage every change on a private copy.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if opts.ReadOnly {
		return &Unit{st: s.snapshot(), readOnly: true}, nil
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = s.LockTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
	case <-timer.C:
		return nil, fmt.Errorf("%w: memory: write lock wait exceeded %s", errs.ErrConcurrency, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Unit{store: s, st: s.snapshot().clone()}, nil
}

// Unit is a uow.UnitOfWork over one state version.
type Unit struct {
	store    *Store
	st       *state
	readOnly bool
	staged   []appoutbox.EventRecord

	once sync.Once
}

func (u *Unit) Hotels() domainhotels.Repository       { return hotelRepo{u} }
func (u *Unit) Inventory() domaininventory.Repository { return inventoryRepo{u} }
func (u *Unit) Bookings() domainbooking.Repository    { return bookingRepo{u} }
func (u *Unit) Promos() domainpromo.Repository        { return promoRepo{u} }
func (u *Unit) Outbox() appoutbox.Outbox              { return stagedOutbox{u} }

func (u *Unit) Commit(ctx context.Context) error {
	if u.readOnly {
		return nil
	}
	committed := false
	u.once.Do(func() {
		u.store.publish(u.st, u.staged)
		<-u.store.sem
		committed = true
	})
	if !committed {
		return fmt.Errorf("memory: unit already finished")
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.readOnly {
		return nil
	}
	u.once.Do(func() {
		u.st = nil
		u.staged = nil
		<-u.store.sem
	})
	return nil
}

func (u *Unit) writable() error {
	if u.readOnly {
		return errReadOnly
	}
	return nil
}

type stagedOutbox struct{ u *Unit }

func (o stagedOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if err := o.u.writable(); err != nil {
		return err
	}
	o.u.staged = append(o.u.staged, record)
	return nil
}

var _ uow.UoWFactory = (*Store)(nil)
var _ uow.UnitOfWork = (*Unit)(nil)
