package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	appoutbox "roomledger/internal/app/outbox"
	domainbooking "roomledger/internal/domain/booking"
	domainhotels "roomledger/internal/domain/hotels"
	domaininventory "roomledger/internal/domain/inventory"
	domainpromo "roomledger/internal/domain/promo"
)

type dayKey struct {
	roomType domainhotels.RoomTypeID
	date     string
}

// state is one immutable version of the data set. Write units work on a
// clone and publish it on commit.
type state struct {
	hotels    map[domainhotels.HotelID]domainhotels.Hotel
	roomTypes map[domainhotels.RoomTypeID]domainhotels.RoomType
	days      map[dayKey]domaininventory.Day
	bookings  map[domainbooking.BookingID]domainbooking.Booking
	promos    map[string]domainpromo.Code
}

func newState() *state {
	return &state{
		hotels:    make(map[domainhotels.HotelID]domainhotels.Hotel),
		roomTypes: make(map[domainhotels.RoomTypeID]domainhotels.RoomType),
		days:      make(map[dayKey]domaininventory.Day),
		bookings:  make(map[domainbooking.BookingID]domainbooking.Booking),
		promos:    make(map[string]domainpromo.Code),
	}
}

func (s *state) clone() *state {
	out := &state{
		hotels:    make(map[domainhotels.HotelID]domainhotels.Hotel, len(s.hotels)),
		roomTypes: make(map[domainhotels.RoomTypeID]domainhotels.RoomType, len(s.roomTypes)),
		days:      make(map[dayKey]domaininventory.Day, len(s.days)),
		bookings:  make(map[domainbooking.BookingID]domainbooking.Booking, len(s.bookings)),
		promos:    make(map[string]domainpromo.Code, len(s.promos)),
	}
	for k, v := range s.hotels {
		out.hotels[k] = v
	}
	for k, v := range s.roomTypes {
		out.roomTypes[k] = v
	}
	for k, v := range s.days {
		out.days[k] = v
	}
	for k, v := range s.bookings {
		out.bookings[k] = v
	}
	for k, v := range s.promos {
		out.promos[k] = v
	}
	return out
}

// Store is the in-memory backend. Write units are serialized by a single
// semaphore; readers see the last committed state without blocking.
type Store struct {
	mu      sync.RWMutex
	current *state
	sem     chan struct{}
	outbox  *Outbox
	// LockTimeout bounds how long a write unit waits for the semaphore when
	// the caller sets none.
	LockTimeout time.Duration
}

func NewStore() *Store {
	return &Store{
		current:     newState(),
		sem:         make(chan struct{}, 1),
		outbox:      NewOutbox(),
		LockTimeout: 5 * time.Second,
	}
}

// Outbox returns the relay side of committed event records.
func (s *Store) Outbox() *Outbox {
	return s.outbox
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) publish(next *state, records []appoutbox.EventRecord) {
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	s.outbox.append(records)
}

func cloneDay(d domaininventory.Day) domaininventory.Day {
	if d.PriceOverride != nil {
		v := *d.PriceOverride
		d.PriceOverride = &v
	}
	return d
}

func cloneBooking(b domainbooking.Booking) *domainbooking.Booking {
	b.Price = b.Price.Copy()
	if b.HoldExpiresAt != nil {
		t := *b.HoldExpiresAt
		b.HoldExpiresAt = &t
	}
	b.ClearEvents()
	return &b
}

func sortedBookingIDs(m map[domainbooking.BookingID]domainbooking.Booking) []domainbooking.BookingID {
	ids := make([]domainbooking.BookingID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

var errReadOnly = fmt.Errorf("memory: write attempted in read-only unit")
