package admin

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	"roomledger/internal/app/policies"
	"roomledger/internal/app/uow"
	"roomledger/internal/clock"
	domainhotels "roomledger/internal/domain/hotels"
	domainpromo "roomledger/internal/domain/promo"
)

const (
	createHotelKey      = "admin.hotel.create"
	deactivateHotelKey  = "admin.hotel.deactivate"
	createRoomTypeKey   = "admin.room_type.create"
	deactivateRoomKey   = "admin.room_type.deactivate"
	createPromoCodeKey  = "admin.promo.create"
	defaultCurrencyCode = "EUR"
)

type managerOnly struct{}

func (managerOnly) AllowedRoles() []string { return []string{policies.RoleManager} }

type CreateHotelCommand struct {
	managerOnly
	Name         string
	Location     domainhotels.Location
	CheckInTime  string
	CheckOutTime string
	Rating       float64
	Amenities    []string
}

func (c CreateHotelCommand) Key() string { return createHotelKey }

type DeactivateHotelCommand struct {
	managerOnly
	HotelID string
}

func (c DeactivateHotelCommand) Key() string { return deactivateHotelKey }

type CreateRoomTypeCommand struct {
	managerOnly
	HotelID         string
	Name            string
	Currency        string
	BasePrice       int64
	BaseOccupancy   int
	MaxOccupancy    int
	TotalUnits      int
	MinNights       int
	ExtraAdultPrice int64
	ExtraChildPrice int64
	Amenities       []string
}

func (c CreateRoomTypeCommand) Key() string { return createRoomTypeKey }

type DeactivateRoomTypeCommand struct {
	managerOnly
	RoomTypeID string
}

func (c DeactivateRoomTypeCommand) Key() string { return deactivateRoomKey }

type CreatePromoCodeCommand struct {
	managerOnly
	Code          string
	DiscountType  domainpromo.DiscountType
	DiscountValue int64
	ValidFrom     time.Time
	ValidTo       time.Time
	UsageLimit    int
}

func (c CreatePromoCodeCommand) Key() string { return createPromoCodeKey }

// Handlers manages the catalog: hotels, room types and promo codes.
type Handlers struct {
	Clock           clock.Clock
	DefaultCurrency string
	Logger          *slog.Logger
}

func (h *Handlers) now() time.Time {
	if h.Clock == nil {
		return time.Now().UTC()
	}
	return h.Clock.Now()
}

func (h *Handlers) CreateHotel(ctx context.Context, cmd CreateHotelCommand) (dto.Hotel, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return dto.Hotel{}, err
	}
	hotel, err := domainhotels.NewHotel(domainhotels.CreateHotelParams{
		ID:           domainhotels.HotelID(uuid.NewString()),
		Name:         cmd.Name,
		Location:     cmd.Location,
		CheckInTime:  cmd.CheckInTime,
		CheckOutTime: cmd.CheckOutTime,
		Rating:       cmd.Rating,
		Amenities:    cmd.Amenities,
		Now:          h.now(),
	})
	if err != nil {
		return dto.Hotel{}, err
	}
	if err := unit.Hotels().SaveHotel(ctx, hotel); err != nil {
		return dto.Hotel{}, err
	}
	h.log("hotel created", "hotel_id", hotel.ID, "city", hotel.Location.City)
	return dto.MapHotel(hotel), nil
}

// DeactivateHotel takes a hotel off sale. Existing bookings are untouched.
func (h *Handlers) DeactivateHotel(ctx context.Context, cmd DeactivateHotelCommand) (dto.Hotel, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return dto.Hotel{}, err
	}
	hotel, err := unit.Hotels().HotelByID(ctx, domainhotels.HotelID(strings.TrimSpace(cmd.HotelID)))
	if err != nil {
		return dto.Hotel{}, err
	}
	if hotel.Active {
		hotel.Deactivate(h.now())
		if err := unit.Hotels().SaveHotel(ctx, hotel); err != nil {
			return dto.Hotel{}, err
		}
		h.log("hotel deactivated", "hotel_id", hotel.ID)
	}
	return dto.MapHotel(hotel), nil
}

func (h *Handlers) CreateRoomType(ctx context.Context, cmd CreateRoomTypeCommand) (dto.RoomType, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return dto.RoomType{}, err
	}
	hotel, err := unit.Hotels().HotelByID(ctx, domainhotels.HotelID(strings.TrimSpace(cmd.HotelID)))
	if err != nil {
		return dto.RoomType{}, err
	}
	if !hotel.Active {
		return dto.RoomType{}, domainhotels.ErrHotelInactive
	}
	currency := strings.TrimSpace(cmd.Currency)
	if currency == "" {
		currency = h.DefaultCurrency
	}
	if currency == "" {
		currency = defaultCurrencyCode
	}
	rt, err := domainhotels.NewRoomType(domainhotels.CreateRoomTypeParams{
		ID:              domainhotels.RoomTypeID(uuid.NewString()),
		HotelID:         hotel.ID,
		Name:            cmd.Name,
		Currency:        currency,
		BasePrice:       cmd.BasePrice,
		BaseOccupancy:   cmd.BaseOccupancy,
		MaxOccupancy:    cmd.MaxOccupancy,
		TotalUnits:      cmd.TotalUnits,
		MinNights:       cmd.MinNights,
		ExtraAdultPrice: cmd.ExtraAdultPrice,
		ExtraChildPrice: cmd.ExtraChildPrice,
		Amenities:       cmd.Amenities,
		Now:             h.now(),
	})
	if err != nil {
		return dto.RoomType{}, err
	}
	if err := unit.Hotels().SaveRoomType(ctx, rt); err != nil {
		return dto.RoomType{}, err
	}
	h.log("room type created", "room_type_id", rt.ID, "hotel_id", hotel.ID, "total_units", rt.TotalUnits)
	return dto.MapRoomType(rt), nil
}

func (h *Handlers) DeactivateRoomType(ctx context.Context, cmd DeactivateRoomTypeCommand) (dto.RoomType, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return dto.RoomType{}, err
	}
	rt, err := unit.Hotels().RoomTypeByID(ctx, domainhotels.RoomTypeID(strings.TrimSpace(cmd.RoomTypeID)))
	if err != nil {
		return dto.RoomType{}, err
	}
	if rt.Active {
		rt.Deactivate(h.now())
		if err := unit.Hotels().SaveRoomType(ctx, rt); err != nil {
			return dto.RoomType{}, err
		}
		h.log("room type deactivated", "room_type_id", rt.ID)
	}
	return dto.MapRoomType(rt), nil
}

func (h *Handlers) CreatePromoCode(ctx context.Context, cmd CreatePromoCodeCommand) (dto.PromoCode, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return dto.PromoCode{}, err
	}
	code, err := domainpromo.NewCode(domainpromo.CreateParams{
		Code:          cmd.Code,
		DiscountType:  cmd.DiscountType,
		DiscountValue: cmd.DiscountValue,
		ValidFrom:     cmd.ValidFrom,
		ValidTo:       cmd.ValidTo,
		UsageLimit:    cmd.UsageLimit,
		Now:           h.now(),
	})
	if err != nil {
		return dto.PromoCode{}, err
	}
	if err := unit.Promos().Create(ctx, code); err != nil {
		return dto.PromoCode{}, err
	}
	h.log("promo code created", "code", code.Code, "type", code.DiscountType)
	return dto.MapPromoCode(code), nil
}

func (h *Handlers) log(msg string, args ...any) {
	if h.Logger != nil {
		h.Logger.Info(msg, args...)
	}
}

// Register wires every catalog command onto bus.
func Register(bus *commands.InMemoryBus, h *Handlers) {
	commands.RegisterHandler(bus, createHotelKey, commands.HandlerFunc[CreateHotelCommand, dto.Hotel](h.CreateHotel))
	commands.RegisterHandler(bus, deactivateHotelKey, commands.HandlerFunc[DeactivateHotelCommand, dto.Hotel](h.DeactivateHotel))
	commands.RegisterHandler(bus, createRoomTypeKey, commands.HandlerFunc[CreateRoomTypeCommand, dto.RoomType](h.CreateRoomType))
	commands.RegisterHandler(bus, deactivateRoomKey, commands.HandlerFunc[DeactivateRoomTypeCommand, dto.RoomType](h.DeactivateRoomType))
	commands.RegisterHandler(bus, createPromoCodeKey, commands.HandlerFunc[CreatePromoCodeCommand, dto.PromoCode](h.CreatePromoCode))
}
