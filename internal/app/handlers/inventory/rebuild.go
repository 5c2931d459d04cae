package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

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
	"roomledger/internal/domain/shared/events"
)

const rebuildInventoryKey = "inventory.rebuild"

// RebuildCommand recomputes the materialized reserved counts of Range from
// the bookings that hold inventory.
type RebuildCommand struct {
	RoomTypeID string
	Range      daterange.DateRange
}

func (c RebuildCommand) Key() string { return rebuildInventoryKey }

func (c RebuildCommand) AllowedRoles() []string { return []string{policies.RoleManager} }

func (c RebuildCommand) Validate() error {
	if strings.TrimSpace(c.RoomTypeID) == "" {
		return fmt.Errorf("%w: room type id is required", errs.ErrValidation)
	}
	if err := c.Range.Validate(); err != nil {
		return err
	}
	if c.Range.Nights() > maxBulkDays {
		return fmt.Errorf("%w: rebuild range is limited to %d days", errs.ErrValidation, maxBulkDays)
	}
	return nil
}

type RebuildHandler struct {
	Clock   clock.Clock
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *RebuildHandler) Handle(ctx context.Context, cmd RebuildCommand) (dto.RebuildResult, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return dto.RebuildResult{}, err
	}
	rt, err := unit.Hotels().RoomTypeByID(ctx, domainhotels.RoomTypeID(strings.TrimSpace(cmd.RoomTypeID)))
	if err != nil {
		return dto.RebuildResult{}, err
	}
	days, repaired, err := lockAndRepair(ctx, unit, rt, cmd.Range)
	if err != nil {
		return dto.RebuildResult{}, err
	}
	result := dto.RebuildResult{RoomTypeID: string(rt.ID), Days: len(days), Repaired: repaired}
	if repaired == 0 {
		return result, nil
	}
	at := now(h.Clock)
	for i := range days {
		days[i].UpdatedAt = at
	}
	if err := unit.Inventory().Save(ctx, days); err != nil {
		return dto.RebuildResult{}, err
	}
	ev := domaininventory.NewChanged(rt, days, "rebuild", at)
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, eventsOf(ev)); err != nil {
		return dto.RebuildResult{}, err
	}
	if h.Logger != nil {
		h.Logger.Warn("inventory cache repaired", "room_type_id", rt.ID, "range", cmd.Range.String(), "repaired", repaired)
	}
	return result, nil
}

func eventsOf(evs ...events.DomainEvent) []events.DomainEvent { return evs }

var _ commands.Handler[RebuildCommand, dto.RebuildResult] = (*RebuildHandler)(nil)
