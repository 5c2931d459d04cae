package dto

import (
	"time"

	domainbooking "roomledger/internal/domain/booking"
	domainpricing "roomledger/internal/domain/pricing"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
	}
}

type GuestDTO struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Booking struct {
	ID            string                  `json:"id"`
	HotelID       string                  `json:"hotel_id"`
	RoomTypeID    string                  `json:"room_type_id"`
	CheckIn       string                  `json:"check_in"`
	CheckOut      string                  `json:"check_out"`
	Nights        int                     `json:"nights"`
	Units         int                     `json:"units"`
	Adults        int                     `json:"adults"`
	Children      int                     `json:"children"`
	Guest         GuestDTO                `json:"guest"`
	Status        string                  `json:"status"`
	Price         domainpricing.Breakdown `json:"price"`
	Total         MoneyDTO                `json:"total"`
	PromoCode     string                  `json:"promo_code,omitempty"`
	Source        string                  `json:"source"`
	ExternalRef   string                  `json:"external_ref,omitempty"`
	HoldExpiresAt *time.Time              `json:"hold_expires_at,omitempty"`
	CancelReason  string                  `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func MapBooking(b *domainbooking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	return Booking{
		ID:            string(b.ID),
		HotelID:       string(b.HotelID),
		RoomTypeID:    string(b.RoomTypeID),
		CheckIn:       b.Range.CheckIn.Format(daterange.Layout),
		CheckOut:      b.Range.CheckOut.Format(daterange.Layout),
		Nights:        b.Range.Nights(),
		Units:         b.Units,
		Adults:        b.Adults,
		Children:      b.Children,
		Guest:         GuestDTO{Name: b.Guest.Name, Email: b.Guest.Email, Phone: b.Guest.Phone},
		Status:        string(b.Status),
		Price:         b.Price.Copy(),
		Total:         MapMoney(b.Price.Total),
		PromoCode:     b.PromoCode,
		Source:        string(b.Source),
		ExternalRef:   b.ExternalRef,
		HoldExpiresAt: b.HoldExpiresAt,
		CancelReason:  b.CancelReason,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

type Quote struct {
	HotelID    string                  `json:"hotel_id"`
	RoomTypeID string                  `json:"room_type_id"`
	CheckIn    string                  `json:"check_in"`
	CheckOut   string                  `json:"check_out"`
	Nights     int                     `json:"nights"`
	Units      int                     `json:"units"`
	Guests     int                     `json:"guests"`
	Price      domainpricing.Breakdown `json:"price"`
}
