package uow

import (
	"context"
	"time"

	"roomledger/internal/app/outbox"
	domainbooking "roomledger/internal/domain/booking"
	domainhotels "roomledger/internal/domain/hotels"
	domaininventory "roomledger/internal/domain/inventory"
	domainpromo "roomledger/internal/domain/promo"
)

// UnitOfWork coordinates repositories inside a transaction boundary. Nothing
// written through it survives Rollback.
type UnitOfWork interface {
	Hotels() domainhotels.Repository
	Inventory() domaininventory.Repository
	Bookings() domainbooking.Repository
	Promos() domainpromo.Repository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries. LockTimeout bounds every row
// lock wait inside the unit; zero means the backend default.
type TxOptions struct {
	ReadOnly    bool
	LockTimeout time.Duration
}
