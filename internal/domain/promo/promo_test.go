package promo

import (
	"errors"
	"testing"
	"time"

	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
)

func TestRedeemUsageLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dr, err := daterange.Parse("2026-03-01", "2026-03-03")
	if err != nil {
		t.Fatalf("range: %v", err)
	}

	cases := []struct {
		name     string
		limit    int
		redeems  int
		wantLast error
	}{
		{"zero limit is unlimited", 0, 50, nil},
		{"single use", 1, 2, ErrExhausted},
		{"limit reached exactly", 3, 3, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewCode(CreateParams{
				Code:          " spring ",
				DiscountType:  Percent,
				DiscountValue: 10,
				ValidFrom:     now,
				ValidTo:       now.AddDate(0, 6, 0),
				UsageLimit:    tc.limit,
				Now:           now,
			})
			if err != nil {
				t.Fatalf("new code: %v", err)
			}
			if c.Code != "SPRING" {
				t.Fatalf("expected normalized code, got %q", c.Code)
			}
			var last error
			for i := 0; i < tc.redeems; i++ {
				last = c.Redeem(dr, now)
			}
			if !errors.Is(last, tc.wantLast) {
				t.Fatalf("expected %v, got %v", tc.wantLast, last)
			}
			if tc.limit == 0 && c.UsageCount != tc.redeems {
				t.Fatalf("expected %d uses, got %d", tc.redeems, c.UsageCount)
			}
		})
	}

	t.Run("negative limit rejected", func(t *testing.T) {
		_, err := NewCode(CreateParams{Code: "X", DiscountType: Fixed, DiscountValue: 1, ValidFrom: now, ValidTo: now, UsageLimit: -1, Now: now})
		if !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
