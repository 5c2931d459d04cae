package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	domainbooking "roomledger/internal/domain/booking"
	domainhotels "roomledger/internal/domain/hotels"
	domaininventory "roomledger/internal/domain/inventory"
	domainpromo "roomledger/internal/domain/promo"
	"roomledger/internal/domain/shared/daterange"
)

type hotelRepo struct{ u *Unit }

func (r hotelRepo) HotelByID(ctx context.Context, id domainhotels.HotelID) (*domainhotels.Hotel, error) {
	h, ok := r.u.st.hotels[id]
	if !ok {
		return nil, domainhotels.ErrHotelNotFound
	}
	return &h, nil
}

func (r hotelRepo) SaveHotel(ctx context.Context, hotel *domainhotels.Hotel) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.st.hotels[hotel.ID] = *hotel
	return nil
}

func (r hotelRepo) RoomTypeByID(ctx context.Context, id domainhotels.RoomTypeID) (*domainhotels.RoomType, error) {
	rt, ok := r.u.st.roomTypes[id]
	if !ok {
		return nil, domainhotels.ErrRoomTypeNotFound
	}
	return &rt, nil
}

func (r hotelRepo) SaveRoomType(ctx context.Context, roomType *domainhotels.RoomType) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.st.hotels[roomType.HotelID]; !ok {
		return domainhotels.ErrHotelNotFound
	}
	r.u.st.roomTypes[roomType.ID] = *roomType
	return nil
}

// SearchRoomTypes filters in memory and orders candidates by room type id.
func (r hotelRepo) SearchRoomTypes(ctx context.Context, params domainhotels.SearchParams) ([]domainhotels.Candidate, error) {
	params = params.Normalized()
	var matches []domainhotels.Candidate
	for _, rt := range r.u.st.roomTypes {
		hotel, ok := r.u.st.hotels[rt.HotelID]
		if !ok {
			continue
		}
		rtCopy := rt
		c := domainhotels.Candidate{Hotel: &hotel, RoomType: &rtCopy}
		if params.Matches(c) {
			matches = append(matches, c)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].RoomType.ID < matches[j].RoomType.ID
	})
	return matches, nil
}

type inventoryRepo struct{ u *Unit }

func (r inventoryRepo) Range(ctx context.Context, roomTypeID domainhotels.RoomTypeID, dr daterange.DateRange) ([]domaininventory.Day, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	stored := make([]domaininventory.Day, 0, dr.Nights())
	for _, date := range dr.Dates() {
		if d, ok := r.u.st.days[dayKey{roomType: roomTypeID, date: date.Format(daterange.Layout)}]; ok {
			stored = append(stored, cloneDay(d))
		}
	}
	return domaininventory.Fill(roomTypeID, dr, stored), nil
}

// LockRange is Range: the unit already holds the store's only write lock.
func (r inventoryRepo) LockRange(ctx context.Context, roomTypeID domainhotels.RoomTypeID, dr daterange.DateRange) ([]domaininventory.Day, error) {
	if err := r.u.writable(); err != nil {
		return nil, err
	}
	return r.Range(ctx, roomTypeID, dr)
}

func (r inventoryRepo) Save(ctx context.Context, days []domaininventory.Day) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	for _, d := range days {
		if d.Reserved < 0 || d.Blocked < 0 {
			return fmt.Errorf("memory: negative counters for %s on %s", d.RoomTypeID, d.Key())
		}
		r.u.st.days[dayKey{roomType: d.RoomTypeID, date: d.Key()}] = cloneDay(d)
	}
	return nil
}

type bookingRepo struct{ u *Unit }

func (r bookingRepo) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	b, ok := r.u.st.bookings[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (r bookingRepo) Lock(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	if err := r.u.writable(); err != nil {
		return nil, err
	}
	return r.ByID(ctx, id)
}

func (r bookingRepo) Create(ctx context.Context, booking *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, exists := r.u.st.bookings[booking.ID]; exists {
		return domainbooking.ErrDuplicate
	}
	if booking.ExternalRef != "" {
		for _, other := range r.u.st.bookings {
			if other.Source == booking.Source && other.ExternalRef == booking.ExternalRef {
				return domainbooking.ErrDuplicate
			}
		}
	}
	booking.Version = 1
	r.u.st.bookings[booking.ID] = *cloneBooking(*booking)
	return nil
}

func (r bookingRepo) Save(ctx context.Context, booking *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, exists := r.u.st.bookings[booking.ID]; !exists {
		return domainbooking.ErrBookingNotFound
	}
	booking.Version++
	r.u.st.bookings[booking.ID] = *cloneBooking(*booking)
	return nil
}

func (r bookingRepo) ReservedByDate(ctx context.Context, roomTypeID domainhotels.RoomTypeID, dr daterange.DateRange) (map[string]int, error) {
	out := make(map[string]int)
	for _, b := range r.u.st.bookings {
		if b.RoomTypeID != roomTypeID || !b.Status.HoldsInventory() || !b.Range.Overlaps(dr) {
			continue
		}
		for _, date := range b.Range.Dates() {
			if dr.ContainsDate(date) {
				out[date.Format(daterange.Layout)] += b.Units
			}
		}
	}
	return out, nil
}

func (r bookingRepo) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domainbooking.BookingID, error) {
	var expired []domainbooking.Booking
	for _, id := range sortedBookingIDs(r.u.st.bookings) {
		b := r.u.st.bookings[id]
		if b.HoldExpired(now) {
			expired = append(expired, b)
		}
	}
	sort.SliceStable(expired, func(i, j int) bool {
		return expired[i].HoldExpiresAt.Before(*expired[j].HoldExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	ids := make([]domainbooking.BookingID, 0, len(expired))
	for _, b := range expired {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

type promoRepo struct{ u *Unit }

func (r promoRepo) ByCode(ctx context.Context, code string) (*domainpromo.Code, error) {
	c, ok := r.u.st.promos[domainpromo.Normalize(code)]
	if !ok {
		return nil, domainpromo.ErrUnknown
	}
	return &c, nil
}

func (r promoRepo) Lock(ctx context.Context, code string) (*domainpromo.Code, error) {
	if err := r.u.writable(); err != nil {
		return nil, err
	}
	return r.ByCode(ctx, code)
}

func (r promoRepo) Create(ctx context.Context, code *domainpromo.Code) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, exists := r.u.st.promos[code.Code]; exists {
		return domainpromo.ErrAlreadyExists
	}
	r.u.st.promos[code.Code] = *code
	return nil
}

func (r promoRepo) Save(ctx context.Context, code *domainpromo.Code) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, exists := r.u.st.promos[code.Code]; !exists {
		return domainpromo.ErrUnknown
	}
	r.u.st.promos[code.Code] = *code
	return nil
}

var (
	_ domainhotels.Repository    = hotelRepo{}
	_ domaininventory.Repository = inventoryRepo{}
	_ domainbooking.Repository   = bookingRepo{}
	_ domainpromo.Repository     = promoRepo{}
)
