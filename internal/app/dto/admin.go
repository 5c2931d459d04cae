package dto

import (
	"time"

	domainhotels "roomledger/internal/domain/hotels"
	domainpromo "roomledger/internal/domain/promo"
	"roomledger/internal/domain/shared/daterange"
)

type Hotel struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Line1        string    `json:"line1,omitempty"`
	City         string    `json:"city"`
	Country      string    `json:"country"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	CheckInTime  string    `json:"check_in_time"`
	CheckOutTime string    `json:"check_out_time"`
	Rating       float64   `json:"rating"`
	Amenities    []string  `json:"amenities,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func MapHotel(h *domainhotels.Hotel) Hotel {
	return Hotel{
		ID:           string(h.ID),
		Name:         h.Name,
		Line1:        h.Location.Line1,
		City:         h.Location.City,
		Country:      h.Location.Country,
		Lat:          h.Location.Lat,
		Lon:          h.Location.Lon,
		CheckInTime:  h.CheckInTime,
		CheckOutTime: h.CheckOutTime,
		Rating:       h.Rating,
		Amenities:    h.Amenities,
		Active:       h.Active,
		CreatedAt:    h.CreatedAt,
	}
}

type RoomType struct {
	ID              string   `json:"id"`
	HotelID         string   `json:"hotel_id"`
	Name            string   `json:"name"`
	BasePrice       MoneyDTO `json:"base_price"`
	BaseOccupancy   int      `json:"base_occupancy"`
	MaxOccupancy    int      `json:"max_occupancy"`
	TotalUnits      int      `json:"total_units"`
	MinNights       int      `json:"min_nights"`
	ExtraAdultPrice MoneyDTO `json:"extra_adult_price"`
	ExtraChildPrice MoneyDTO `json:"extra_child_price"`
	Amenities       []string `json:"amenities,omitempty"`
	Active          bool     `json:"active"`
}

func MapRoomType(rt *domainhotels.RoomType) RoomType {
	return RoomType{
		ID:              string(rt.ID),
		HotelID:         string(rt.HotelID),
		Name:            rt.Name,
		BasePrice:       MapMoney(rt.BasePrice),
		BaseOccupancy:   rt.BaseOccupancy,
		MaxOccupancy:    rt.MaxOccupancy,
		TotalUnits:      rt.TotalUnits,
		MinNights:       rt.MinNights,
		ExtraAdultPrice: MapMoney(rt.ExtraAdultPrice),
		ExtraChildPrice: MapMoney(rt.ExtraChildPrice),
		Amenities:       rt.Amenities,
		Active:          rt.Active,
	}
}

type PromoCode struct {
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"`
	DiscountValue int64  `json:"discount_value"`
	ValidFrom     string `json:"valid_from"`
	ValidTo       string `json:"valid_to"`
	UsageLimit    int    `json:"usage_limit"`
	UsageCount    int    `json:"usage_count"`
}

func MapPromoCode(c *domainpromo.Code) PromoCode {
	return PromoCode{
		Code:          c.Code,
		DiscountType:  string(c.DiscountType),
		DiscountValue: c.DiscountValue,
		ValidFrom:     c.ValidFrom.Format(daterange.Layout),
		ValidTo:       c.ValidTo.Format(daterange.Layout),
		UsageLimit:    c.UsageLimit,
		UsageCount:    c.UsageCount,
	}
}
