package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	adminapp "roomledger/internal/app/handlers/admin"
	"roomledger/internal/app/policies"
	domainhotels "roomledger/internal/domain/hotels"
	domainpromo "roomledger/internal/domain/promo"
	"roomledger/internal/domain/shared/daterange"
)

type fixtures struct {
	Hotels     []hotelFixture `json:"hotels"`
	PromoCodes []promoFixture `json:"promo_codes"`
}

type hotelFixture struct {
	Name         string            `json:"name"`
	Line1        string            `json:"line1"`
	City         string            `json:"city"`
	Country      string            `json:"country"`
	Lat          float64           `json:"lat"`
	Lon          float64           `json:"lon"`
	CheckInTime  string            `json:"check_in_time"`
	CheckOutTime string            `json:"check_out_time"`
	Rating       float64           `json:"rating"`
	Amenities    []string          `json:"amenities"`
	RoomTypes    []roomTypeFixture `json:"room_types"`
}

type roomTypeFixture struct {
	Name            string   `json:"name"`
	Currency        string   `json:"currency"`
	BasePrice       int64    `json:"base_price"`
	BaseOccupancy   int      `json:"base_occupancy"`
	MaxOccupancy    int      `json:"max_occupancy"`
	TotalUnits      int      `json:"total_units"`
	MinNights       int      `json:"min_nights"`
	ExtraAdultPrice int64    `json:"extra_adult_price"`
	ExtraChildPrice int64    `json:"extra_child_price"`
	Amenities       []string `json:"amenities"`
}

type promoFixture struct {
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"`
	DiscountValue int64  `json:"discount_value"`
	ValidFrom     string `json:"valid_from"`
	ValidTo       string `json:"valid_to"`
	UsageLimit    int    `json:"usage_limit"`
}

// loadFixtures seeds the catalog through the command bus, so fixtures pass
// the same validation as admin requests. Invalid entries are logged and skipped.
func (a *application) loadFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fx fixtures
	if err := json.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	ctx = policies.WithPrincipal(ctx, policies.Principal{ID: "fixtures", Roles: []string{policies.RoleManager, policies.RoleSystem}})
	bus := a.engine.Commands
	for _, h := range fx.Hotels {
		hotel, err := commands.Dispatch[adminapp.CreateHotelCommand, dto.Hotel](ctx, bus, adminapp.CreateHotelCommand{
			Name: h.Name,
			Location: domainhotels.Location{
				Line1:   h.Line1,
				City:    h.City,
				Country: h.Country,
				Lat:     h.Lat,
				Lon:     h.Lon,
			},
			CheckInTime:  h.CheckInTime,
			CheckOutTime: h.CheckOutTime,
			Rating:       h.Rating,
			Amenities:    h.Amenities,
		})
		if err != nil {
			logger.Error("fixture hotel invalid", "name", h.Name, "error", err)
			continue
		}
		for _, rt := range h.RoomTypes {
			created, err := commands.Dispatch[adminapp.CreateRoomTypeCommand, dto.RoomType](ctx, bus, adminapp.CreateRoomTypeCommand{
				HotelID:         hotel.ID,
				Name:            rt.Name,
				Currency:        rt.Currency,
				BasePrice:       rt.BasePrice,
				BaseOccupancy:   rt.BaseOccupancy,
				MaxOccupancy:    rt.MaxOccupancy,
				TotalUnits:      rt.TotalUnits,
				MinNights:       rt.MinNights,
				ExtraAdultPrice: rt.ExtraAdultPrice,
				ExtraChildPrice: rt.ExtraChildPrice,
				Amenities:       rt.Amenities,
			})
			if err != nil {
				logger.Error("fixture room type invalid", "hotel_id", hotel.ID, "name", rt.Name, "error", err)
				continue
			}
			logger.Info("fixture room type imported", "hotel_id", hotel.ID, "room_type_id", created.ID)
		}
	}
	for _, p := range fx.PromoCodes {
		from, errFrom := daterange.ParseDay(p.ValidFrom)
		to, errTo := daterange.ParseDay(p.ValidTo)
		if err := errors.Join(errFrom, errTo); err != nil {
			logger.Error("fixture promo code invalid", "code", p.Code, "error", err)
			continue
		}
		_, err := commands.Dispatch[adminapp.CreatePromoCodeCommand, dto.PromoCode](ctx, bus, adminapp.CreatePromoCodeCommand{
			Code:          p.Code,
			DiscountType:  domainpromo.DiscountType(p.DiscountType),
			DiscountValue: p.DiscountValue,
			ValidFrom:     from,
			ValidTo:       to,
			UsageLimit:    p.UsageLimit,
		})
		if err != nil {
			logger.Error("fixture promo code rejected", "code", p.Code, "error", err)
		}
	}
	return nil
}
