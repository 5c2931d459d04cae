package inventory

import (
	"time"

	"roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/money"
)

// Snapshot is the externally visible state of one date.
type Snapshot struct {
	Date      string `json:"date"`
	Available int    `json:"available"`
	Price     int64  `json:"price"`
	StopSell  bool   `json:"stop_sell"`
}

// Changed is emitted whenever committed availability changes so channel
// managers can mirror it.
type Changed struct {
	RoomTypeID hotels.RoomTypeID `json:"room_type_id"`
	Currency   string            `json:"currency"`
	Days       []Snapshot        `json:"days"`
	Reason     string            `json:"reason"`
	At         time.Time         `json:"at"`
}

func (e Changed) EventName() string     { return "inventory.changed" }
func (e Changed) AggregateID() string   { return string(e.RoomTypeID) }
func (e Changed) OccurredAt() time.Time { return e.At }

// NewChanged snapshots days against the room type they belong to.
func NewChanged(rt *hotels.RoomType, days []Day, reason string, at time.Time) Changed {
	snaps := make([]Snapshot, 0, len(days))
	for _, d := range days {
		snaps = append(snaps, SnapshotOf(d, rt.TotalUnits, rt.BasePrice))
	}
	return Changed{
		RoomTypeID: rt.ID,
		Currency:   rt.Currency(),
		Days:       snaps,
		Reason:     reason,
		At:         at.UTC(),
	}
}

func SnapshotOf(d Day, totalUnits int, base money.Money) Snapshot {
	return Snapshot{
		Date:      d.Key(),
		Available: max(d.Available(totalUnits), 0),
		Price:     d.Price(base).Amount,
		StopSell:  d.StopSell,
	}
}
