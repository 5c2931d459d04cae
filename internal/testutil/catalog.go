package testutil

import (
	"context"
	"testing"
	"time"

	"roomledger/internal/app/uow"
	domainhotels "roomledger/internal/domain/hotels"
	domainpromo "roomledger/internal/domain/promo"
)

// Catalog is a hotel with one room type, seeded for engine tests.
type Catalog struct {
	Hotel    *domainhotels.Hotel
	RoomType *domainhotels.RoomType
}

// RoomTypeSpec overrides the defaults of SeedCatalog: 100.00 base price for
// two guests, up to four guests, 20.00 per extra adult, 10.00 per extra child.
type RoomTypeSpec struct {
	ID              string
	TotalUnits      int
	BasePrice       int64
	ExtraAdultPrice int64
	MinNights       int
	City            string
	Rating          float64
	Lat, Lon        float64
	Amenities       []string
}

func SeedCatalog(t *testing.T, ctx context.Context, factory uow.UoWFactory, spec RoomTypeSpec) Catalog {
	t.Helper()
	if spec.ID == "" {
		spec.ID = "rt-1"
	}
	if spec.TotalUnits == 0 {
		spec.TotalUnits = 5
	}
	if spec.BasePrice == 0 {
		spec.BasePrice = 10000
	}
	if spec.ExtraAdultPrice == 0 {
		spec.ExtraAdultPrice = 2000
	}
	if spec.City == "" {
		spec.City = "Lisbon"
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	hotel, err := domainhotels.NewHotel(domainhotels.CreateHotelParams{
		ID:           domainhotels.HotelID("h-" + spec.ID),
		Name:         "Hotel " + spec.ID,
		Location:     domainhotels.Location{City: spec.City, Country: "PT", Lat: spec.Lat, Lon: spec.Lon},
		CheckInTime:  "15:00",
		CheckOutTime: "11:00",
		Rating:       spec.Rating,
		Now:          now,
	})
	if err != nil {
		t.Fatalf("new hotel: %v", err)
	}
	rt, err := domainhotels.NewRoomType(domainhotels.CreateRoomTypeParams{
		ID:              domainhotels.RoomTypeID(spec.ID),
		HotelID:         hotel.ID,
		Name:            "Double",
		Currency:        "EUR",
		BasePrice:       spec.BasePrice,
		BaseOccupancy:   2,
		MaxOccupancy:    4,
		TotalUnits:      spec.TotalUnits,
		MinNights:       spec.MinNights,
		ExtraAdultPrice: spec.ExtraAdultPrice,
		ExtraChildPrice: 1000,
		Amenities:       spec.Amenities,
		Now:             now,
	})
	if err != nil {
		t.Fatalf("new room type: %v", err)
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = unit.Rollback(ctx) }()
	if err := unit.Hotels().SaveHotel(ctx, hotel); err != nil {
		t.Fatalf("save hotel: %v", err)
	}
	if err := unit.Hotels().SaveRoomType(ctx, rt); err != nil {
		t.Fatalf("save room type: %v", err)
	}
	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return Catalog{Hotel: hotel, RoomType: rt}
}

// SeedPromo stores a promo code valid through 2026.
func SeedPromo(t *testing.T, ctx context.Context, factory uow.UoWFactory, code string, kind domainpromo.DiscountType, value int64, limit int) {
	t.Helper()
	c, err := domainpromo.NewCode(domainpromo.CreateParams{
		Code:          code,
		DiscountType:  kind,
		DiscountValue: value,
		ValidFrom:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:       time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		UsageLimit:    limit,
		Now:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("new promo: %v", err)
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = unit.Rollback(ctx) }()
	if err := unit.Promos().Create(ctx, c); err != nil {
		t.Fatalf("create promo: %v", err)
	}
	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
}
