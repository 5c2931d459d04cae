package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	"roomledger/internal/app/outbox"
	"roomledger/internal/app/policies"
	"roomledger/internal/app/uow"
	"roomledger/internal/clock"
	domainhotels "roomledger/internal/domain/hotels"
	domaininventory "roomledger/internal/domain/inventory"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
)

const (
	bulkUpdateKey = "inventory.bulk_update"
	maxBulkDays   = 366
)

// BulkUpdateCommand applies one Update to every date of Range.
type BulkUpdateCommand struct {
	RoomTypeID   string
	Range        daterange.DateRange
	Update       domaininventory.Update
	AllOrNothing bool
}

func (c BulkUpdateCommand) Key() string { return bulkUpdateKey }

func (c BulkUpdateCommand) AllowedRoles() []string { return []string{policies.RoleManager} }

func (c BulkUpdateCommand) Validate() error {
	if strings.TrimSpace(c.RoomTypeID) == "" {
		return fmt.Errorf("%w: room type id is required", errs.ErrValidation)
	}
	if err := c.Range.Validate(); err != nil {
		return err
	}
	if c.Range.Nights() > maxBulkDays {
		return fmt.Errorf("%w: bulk range is limited to %d days", errs.ErrValidation, maxBulkDays)
	}
	return c.Update.Validate()
}

// RejectedError carries the per-date outcomes of an all-or-nothing update that
// was rolled back.
type RejectedError struct {
	Result dto.BulkResult
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("bulk update rejected on %d of %d dates", e.Result.Rejected, len(e.Result.Days))
}

func (e *RejectedError) Unwrap() error { return domaininventory.ErrConflict }

type BulkUpdateHandler struct {
	Clock   clock.Clock
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *BulkUpdateHandler) Handle(ctx context.Context, cmd BulkUpdateCommand) (dto.BulkResult, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return dto.BulkResult{}, err
	}
	rt, err := unit.Hotels().RoomTypeByID(ctx, domainhotels.RoomTypeID(strings.TrimSpace(cmd.RoomTypeID)))
	if err != nil {
		return dto.BulkResult{}, err
	}
	now := now(h.Clock)
	days, repaired, err := lockAndRepair(ctx, unit, rt, cmd.Range)
	if err != nil {
		return dto.BulkResult{}, err
	}

	result := dto.BulkResult{RoomTypeID: string(rt.ID), Days: make([]dto.BulkOutcome, 0, len(days))}
	for i := range days {
		next := days[i]
		outcome := dto.BulkOutcome{Date: next.Key()}
		if err := next.Apply(cmd.Update, rt.TotalUnits); err != nil {
			outcome.Error = err.Error()
			var conflict *domaininventory.ConflictError
			if errors.As(err, &conflict) {
				outcome.Requested = conflict.Requested
			}
			result.Rejected++
		} else {
			next.UpdatedAt = now
			days[i] = next
			outcome.Applied = true
			result.Applied++
		}
		snap := domaininventory.SnapshotOf(days[i], rt.TotalUnits, rt.BasePrice)
		outcome.Available = snap.Available
		outcome.Price = snap.Price
		outcome.StopSell = snap.StopSell
		result.Days = append(result.Days, outcome)
	}

	if cmd.AllOrNothing && result.Rejected > 0 {
		result.RolledBack = true
		result.Applied = 0
		for i := range result.Days {
			result.Days[i].Applied = false
		}
		if h.Logger != nil {
			h.Logger.Info("bulk update rolled back", "room_type_id", rt.ID, "range", cmd.Range.String(), "rejected", result.Rejected)
		}
		return dto.BulkResult{}, &RejectedError{Result: result}
	}

	if result.Applied == 0 && repaired == 0 {
		return result, nil
	}
	if err := unit.Inventory().Save(ctx, days); err != nil {
		return dto.BulkResult{}, err
	}
	ev := domaininventory.NewChanged(rt, days, "bulk_update", now)
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, eventsOf(ev)); err != nil {
		return dto.BulkResult{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("bulk update applied",
			"room_type_id", rt.ID,
			"range", cmd.Range.String(),
			"applied", result.Applied,
			"rejected", result.Rejected,
			"repaired", repaired,
		)
	}
	return result, nil
}

// lockAndRepair locks dr ascending and resets each day's Reserved to the sum
// of the bookings that hold it. It returns how many days were off.
func lockAndRepair(ctx context.Context, unit uow.UnitOfWork, rt *domainhotels.RoomType, dr daterange.DateRange) ([]domaininventory.Day, int, error) {
	days, err := unit.Inventory().LockRange(ctx, rt.ID, dr)
	if err != nil {
		return nil, 0, err
	}
	reserved, err := unit.Bookings().ReservedByDate(ctx, rt.ID, dr)
	if err != nil {
		return nil, 0, err
	}
	repaired := 0
	for i := range days {
		want := reserved[days[i].Key()]
		if days[i].Reserved != want {
			days[i].Reserved = want
			repaired++
		}
	}
	return days, repaired, nil
}

func now(c clock.Clock) time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c.Now()
}

var _ commands.Handler[BulkUpdateCommand, dto.BulkResult] = (*BulkUpdateHandler)(nil)
