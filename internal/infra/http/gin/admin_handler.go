package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	adminapp "roomledger/internal/app/handlers/admin"
	domainhotels "roomledger/internal/domain/hotels"
	domainpromo "roomledger/internal/domain/promo"
	"roomledger/internal/domain/shared/daterange"
)

type AdminHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type createHotelRequest struct {
	Name         string   `json:"name"`
	Line1        string   `json:"line1"`
	City         string   `json:"city"`
	Country      string   `json:"country"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	CheckInTime  string   `json:"check_in_time"`
	CheckOutTime string   `json:"check_out_time"`
	Rating       float64  `json:"rating"`
	Amenities    []string `json:"amenities"`
}

type createRoomTypeRequest struct {
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

type createPromoRequest struct {
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"`
	DiscountValue int64  `json:"discount_value"`
	ValidFrom     string `json:"valid_from"`
	ValidTo       string `json:"valid_to"`
	UsageLimit    int    `json:"usage_limit"`
}

func (h AdminHandler) CreateHotel(c *gin.Context) {
	var req createHotelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := adminapp.CreateHotelCommand{
		Name: req.Name,
		Location: domainhotels.Location{
			Line1:   req.Line1,
			City:    req.City,
			Country: req.Country,
			Lat:     req.Lat,
			Lon:     req.Lon,
		},
		CheckInTime:  req.CheckInTime,
		CheckOutTime: req.CheckOutTime,
		Rating:       req.Rating,
		Amenities:    req.Amenities,
	}
	respond[adminapp.CreateHotelCommand, dto.Hotel](c, h, cmd, http.StatusCreated)
}

func (h AdminHandler) DeactivateHotel(c *gin.Context) {
	respond[adminapp.DeactivateHotelCommand, dto.Hotel](c, h, adminapp.DeactivateHotelCommand{HotelID: c.Param("id")}, http.StatusOK)
}

func (h AdminHandler) CreateRoomType(c *gin.Context) {
	var req createRoomTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := adminapp.CreateRoomTypeCommand{
		HotelID:         c.Param("id"),
		Name:            req.Name,
		Currency:        req.Currency,
		BasePrice:       req.BasePrice,
		BaseOccupancy:   req.BaseOccupancy,
		MaxOccupancy:    req.MaxOccupancy,
		TotalUnits:      req.TotalUnits,
		MinNights:       req.MinNights,
		ExtraAdultPrice: req.ExtraAdultPrice,
		ExtraChildPrice: req.ExtraChildPrice,
		Amenities:       req.Amenities,
	}
	respond[adminapp.CreateRoomTypeCommand, dto.RoomType](c, h, cmd, http.StatusCreated)
}

func (h AdminHandler) DeactivateRoomType(c *gin.Context) {
	respond[adminapp.DeactivateRoomTypeCommand, dto.RoomType](c, h, adminapp.DeactivateRoomTypeCommand{RoomTypeID: c.Param("id")}, http.StatusOK)
}

func (h AdminHandler) CreatePromoCode(c *gin.Context) {
	var req createPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	from, err := daterange.ParseDay(req.ValidFrom)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	to, err := daterange.ParseDay(req.ValidTo)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	cmd := adminapp.CreatePromoCodeCommand{
		Code:          req.Code,
		DiscountType:  domainpromo.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		ValidFrom:     from,
		ValidTo:       to,
		UsageLimit:    req.UsageLimit,
	}
	respond[adminapp.CreatePromoCodeCommand, dto.PromoCode](c, h, cmd, http.StatusCreated)
}

func respond[C commands.Command, R any](c *gin.Context, h AdminHandler, cmd C, status int) {
	result, err := commands.Dispatch[C, R](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(status, result)
}

var _ AdminHTTP = AdminHandler{}
