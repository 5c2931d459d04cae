package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/domain/shared/money"
)

// ErrPromoCode is the parent of every rejection of a supplied code.
var ErrPromoCode = errors.New("promo code rejected")

var (
	ErrUnknown   = fmt.Errorf("%w: unknown code", ErrPromoCode)
	ErrNotValid  = fmt.Errorf("%w: code is not valid for the requested dates", ErrPromoCode)
	ErrExhausted = fmt.Errorf("%w: usage limit reached", ErrPromoCode)

	ErrCodeRequired  = fmt.Errorf("%w: promo: code is required", errs.ErrValidation)
	ErrDiscountType  = fmt.Errorf("%w: promo: discount type must be percent or fixed", errs.ErrValidation)
	ErrDiscountValue = fmt.Errorf("%w: promo: discount value out of range", errs.ErrValidation)
	ErrValidity      = fmt.Errorf("%w: promo: valid_to must not precede valid_from", errs.ErrValidation)
	ErrUsageLimit    = fmt.Errorf("%w: promo: usage limit must be >= 0", errs.ErrValidation)
	ErrAlreadyExists = fmt.Errorf("%w: promo: code", errs.ErrAlreadyExists)
)

type DiscountType string

const (
	Percent DiscountType = "percent"
	Fixed   DiscountType = "fixed"
)

// Code is a discount redeemable on bookings. UsageLimit zero means unlimited.
type Code struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue int64
	ValidFrom     time.Time
	ValidTo       time.Time
	UsageLimit    int
	UsageCount    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateParams struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue int64
	ValidFrom     time.Time
	ValidTo       time.Time
	UsageLimit    int
	Now           time.Time
}

func NewCode(p CreateParams) (*Code, error) {
	code := Normalize(p.Code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	switch p.DiscountType {
	case Percent:
		if p.DiscountValue < 1 || p.DiscountValue > 100 {
			return nil, ErrDiscountValue
		}
	case Fixed:
		if p.DiscountValue < 1 {
			return nil, ErrDiscountValue
		}
	default:
		return nil, ErrDiscountType
	}
	from, to := daterange.Day(p.ValidFrom), daterange.Day(p.ValidTo)
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, ErrValidity
	}
	if p.UsageLimit < 0 {
		return nil, ErrUsageLimit
	}
	now := p.Now.UTC()
	return &Code{
		Code:          code,
		DiscountType:  p.DiscountType,
		DiscountValue: p.DiscountValue,
		ValidFrom:     from,
		ValidTo:       to,
		UsageLimit:    p.UsageLimit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Normalize is the canonical form codes are stored and looked up by.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check reports whether the code can be applied to a stay. At least one night
// must fall inside [ValidFrom, ValidTo].
func (c *Code) Check(dr daterange.DateRange) error {
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return ErrExhausted
	}
	for _, night := range dr.Dates() {
		if !night.Before(c.ValidFrom) && !night.After(c.ValidTo) {
			return nil
		}
	}
	return ErrNotValid
}

// Discount returns the amount taken off total. It never exceeds total.
func (c *Code) Discount(total money.Money) money.Money {
	var off money.Money
	switch c.DiscountType {
	case Percent:
		off = total.Percent(c.DiscountValue)
	default:
		off = money.Money{Amount: c.DiscountValue, Currency: total.Currency}
	}
	return off.FloorZero().Min(total)
}

// Redeem consumes one use. The caller must hold the code's row lock.
func (c *Code) Redeem(dr daterange.DateRange, now time.Time) error {
	if err := c.Check(dr); err != nil {
		return err
	}
	c.UsageCount++
	c.UpdatedAt = now.UTC()
	return nil
}

type Repository interface {
	ByCode(ctx context.Context, code string) (*Code, error)
	Lock(ctx context.Context, code string) (*Code, error)
	Create(ctx context.Context, code *Code) error
	Save(ctx context.Context, code *Code) error
}
