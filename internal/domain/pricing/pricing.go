package pricing

import (
	"errors"
	"fmt"

	"roomledger/internal/domain/hotels"
	"roomledger/internal/domain/inventory"
	"roomledger/internal/domain/promo"
	"roomledger/internal/domain/shared/money"
	"roomledger/internal/domain/stay"
)

var (
	ErrCurrencyUnset = errors.New("pricing: currency must be defined")
	ErrNightsMissing = errors.New("pricing: one inventory day per night is required")
)

type NightPrice struct {
	Date      string      `json:"date"`
	UnitPrice money.Money `json:"unit_price"`
	Units     int         `json:"units"`
	Amount    money.Money `json:"amount"`
}

type Extras struct {
	Adults   int         `json:"adults"`
	Children int         `json:"children"`
	Nights   int         `json:"nights"`
	Amount   money.Money `json:"amount"`
}

type Discount struct {
	Code   string      `json:"code"`
	Type   string      `json:"type"`
	Value  int64       `json:"value"`
	Amount money.Money `json:"amount"`
}

// Breakdown is an itemized stay price.
type Breakdown struct {
	Currency string       `json:"currency"`
	Nights   []NightPrice `json:"nights"`
	Subtotal money.Money  `json:"subtotal"`
	Extras   Extras       `json:"extras"`
	Discount *Discount    `json:"discount,omitempty"`
	Total    money.Money  `json:"total"`
}

// BeforeDiscount is subtotal plus extra guest charges.
func (b Breakdown) BeforeDiscount() money.Money {
	return money.Money{Amount: b.Subtotal.Amount + b.Extras.Amount.Amount, Currency: b.Currency}
}

// RecalculateTotal derives Total from the components and floors it at zero.
func (b *Breakdown) RecalculateTotal() error {
	if b.Currency == "" {
		return ErrCurrencyUnset
	}
	total := b.BeforeDiscount()
	if b.Discount != nil {
		var err error
		total, err = total.Sub(b.Discount.Amount)
		if err != nil {
			return err
		}
	}
	b.Total = total.FloorZero()
	return nil
}

func (b Breakdown) Copy() Breakdown {
	clone := b
	clone.Nights = append([]NightPrice(nil), b.Nights...)
	if b.Discount != nil {
		d := *b.Discount
		clone.Discount = &d
	}
	return clone
}

// Quote prices req against the room type and one inventory day per night.
// code may be nil; when set it must be applicable to the stay.
func Quote(rt *hotels.RoomType, req stay.Request, days []inventory.Day, code *promo.Code) (Breakdown, error) {
	nights := req.Nights()
	if len(days) != nights {
		return Breakdown{}, fmt.Errorf("%w: got %d days for %d nights", ErrNightsMissing, len(days), nights)
	}
	currency := rt.Currency()
	b := Breakdown{
		Currency: currency,
		Nights:   make([]NightPrice, 0, nights),
		Subtotal: money.Zero(currency),
	}
	for _, d := range days {
		unit := d.Price(rt.BasePrice)
		amount := unit.Multiply(int64(req.Units))
		b.Nights = append(b.Nights, NightPrice{Date: d.Key(), UnitPrice: unit, Units: req.Units, Amount: amount})
		b.Subtotal.Amount += amount.Amount
	}
	b.Extras = extraGuests(rt, req)
	if code != nil {
		if err := code.Check(req.Range); err != nil {
			return Breakdown{}, err
		}
		b.Discount = &Discount{
			Code:   code.Code,
			Type:   string(code.DiscountType),
			Value:  code.DiscountValue,
			Amount: code.Discount(b.BeforeDiscount()),
		}
	}
	if err := b.RecalculateTotal(); err != nil {
		return Breakdown{}, err
	}
	return b, nil
}

// extraGuests charges guests above the room type's base occupancy. Occupancy
// applies to the whole booking whatever the unit count. Adults fill the
// included places first.
func extraGuests(rt *hotels.RoomType, req stay.Request) Extras {
	nights := req.Nights()
	extra := max(0, req.Guests()-rt.BaseOccupancy)
	extraChildren := min(extra, req.Children)
	extraAdults := extra - extraChildren
	perNight := int64(extraAdults)*rt.ExtraAdultPrice.Amount + int64(extraChildren)*rt.ExtraChildPrice.Amount
	return Extras{
		Adults:   extraAdults,
		Children: extraChildren,
		Nights:   nights,
		Amount:   money.Money{Amount: perNight * int64(nights), Currency: rt.Currency()},
	}
}
