package ginserver

import (
	"strconv"
	"strings"

	domainbooking "roomledger/internal/domain/booking"
	domainhotels "roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/stay"
)

type stayRequest struct {
	RoomTypeID string `json:"room_type_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Units      int    `json:"units"`
	Adults     int    `json:"adults"`
	Children   int    `json:"children"`
	PromoCode  string `json:"promo_code"`
}

// toStay converts the body. Units default to one; everything else is
// validated by the command bus.
func (r stayRequest) toStay() (stay.Request, error) {
	dr, err := daterange.Parse(r.CheckIn, r.CheckOut)
	if err != nil {
		return stay.Request{}, err
	}
	units := r.Units
	if units == 0 {
		units = 1
	}
	return stay.Request{
		RoomTypeID: domainhotels.RoomTypeID(strings.TrimSpace(r.RoomTypeID)),
		Range:      dr,
		Units:      units,
		Adults:     r.Adults,
		Children:   r.Children,
		PromoCode:  r.PromoCode,
	}, nil
}

type guestRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (g guestRequest) toGuest() domainbooking.Guest {
	return domainbooking.Guest{
		Name:  strings.TrimSpace(g.Name),
		Email: strings.TrimSpace(g.Email),
		Phone: strings.TrimSpace(g.Phone),
	}
}

func parseIntWithDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
