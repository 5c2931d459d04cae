package dto

import (
	domainhotels "roomledger/internal/domain/hotels"
	domaininventory "roomledger/internal/domain/inventory"
)

type CalendarDay struct {
	Date      string `json:"date"`
	Available int    `json:"available"`
	Reserved  int    `json:"reserved"`
	Blocked   int    `json:"blocked"`
	Price     int64  `json:"price"`
	Override  bool   `json:"price_override"`
	StopSell  bool   `json:"stop_sell"`
}

type Calendar struct {
	RoomTypeID string        `json:"room_type_id"`
	Currency   string        `json:"currency"`
	TotalUnits int           `json:"total_units"`
	Days       []CalendarDay `json:"days"`
}

func MapCalendarDay(d domaininventory.Day, rt *domainhotels.RoomType) CalendarDay {
	return CalendarDay{
		Date:      d.Key(),
		Available: max(d.Available(rt.TotalUnits), 0),
		Reserved:  d.Reserved,
		Blocked:   d.Blocked,
		Price:     d.Price(rt.BasePrice).Amount,
		Override:  d.PriceOverride != nil,
		StopSell:  d.StopSell,
	}
}

func MapCalendar(rt *domainhotels.RoomType, days []domaininventory.Day) Calendar {
	out := Calendar{
		RoomTypeID: string(rt.ID),
		Currency:   rt.Currency(),
		TotalUnits: rt.TotalUnits,
		Days:       make([]CalendarDay, 0, len(days)),
	}
	for _, d := range days {
		out.Days = append(out.Days, MapCalendarDay(d, rt))
	}
	return out
}

// BulkOutcome is the result of a bulk update on one date.
type BulkOutcome struct {
	Date      string `json:"date"`
	Applied   bool   `json:"applied"`
	Error     string `json:"error,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available"`
	Price     int64  `json:"price"`
	StopSell  bool   `json:"stop_sell"`
}

type BulkResult struct {
	RoomTypeID string        `json:"room_type_id"`
	Applied    int           `json:"applied"`
	Rejected   int           `json:"rejected"`
	RolledBack bool          `json:"rolled_back"`
	Days       []BulkOutcome `json:"days"`
}

type RebuildResult struct {
	RoomTypeID string `json:"room_type_id"`
	Days       int    `json:"days"`
	Repaired   int    `json:"repaired"`
}
