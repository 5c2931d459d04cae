package booking

import (
	"context"
	"fmt"
	"strings"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/handlers/support"
	"roomledger/internal/app/policies"
	"roomledger/internal/app/queries"
	"roomledger/internal/app/uow"
	"roomledger/internal/clock"
	domainbooking "roomledger/internal/domain/booking"
	"roomledger/internal/domain/shared/errs"
)

const (
	listExpiredHoldsKey = "booking.list_expired_holds"
	expireHoldKey       = "booking.expire_hold"
)

const DefaultExpireBatch = 50

// ListExpiredHoldsQuery returns pending bookings whose hold window passed,
// oldest expiry first.
type ListExpiredHoldsQuery struct {
	Limit int
}

func (q ListExpiredHoldsQuery) Key() string { return listExpiredHoldsKey }

func (q ListExpiredHoldsQuery) AllowedRoles() []string { return []string{policies.RoleSystem} }

func (q ListExpiredHoldsQuery) Validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must be >= 0", errs.ErrValidation)
	}
	return nil
}

type ListExpiredHoldsHandler struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
}

func (h *ListExpiredHoldsHandler) Handle(ctx context.Context, q ListExpiredHoldsQuery) ([]string, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	limit := q.Limit
	if limit == 0 {
		limit = DefaultExpireBatch
	}
	ids, err := unit.Bookings().ExpiredHolds(execCtx, now(h.Clock), limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out, nil
}

// ExpireHoldCommand cancels one pending booking if its hold has lapsed. Each
// booking expires in its own unit of work so the nights it releases are the
// only inventory rows the transaction locks.
type ExpireHoldCommand struct {
	BookingID string
}

func (c ExpireHoldCommand) Key() string { return expireHoldKey }

func (c ExpireHoldCommand) AllowedRoles() []string { return []string{policies.RoleSystem} }

func (c ExpireHoldCommand) Validate() error { return requireID(c.BookingID) }

type ExpireHoldResult struct {
	Expired bool `json:"expired"`
}

type ExpireHoldHandler struct{ *Lifecycle }

func (h ExpireHoldHandler) Handle(ctx context.Context, cmd ExpireHoldCommand) (ExpireHoldResult, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return ExpireHoldResult{}, err
	}
	b, err := unit.Bookings().Lock(ctx, domainbooking.BookingID(strings.TrimSpace(cmd.BookingID)))
	if err != nil {
		return ExpireHoldResult{}, err
	}
	now := now(h.Clock)
	held := b.Status.HoldsInventory()
	// Confirmed or cancelled since the scan.
	changed, err := b.Expire(now)
	if err != nil || !changed {
		return ExpireHoldResult{}, err
	}
	if err := h.settle(ctx, unit, b, held, now); err != nil {
		return ExpireHoldResult{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("hold expired", "booking_id", b.ID, "reason", domainbooking.ReasonHoldExpired)
	}
	return ExpireHoldResult{Expired: true}, nil
}

var _ queries.Handler[ListExpiredHoldsQuery, []string] = (*ListExpiredHoldsHandler)(nil)
var _ commands.Handler[ExpireHoldCommand, ExpireHoldResult] = ExpireHoldHandler{}
