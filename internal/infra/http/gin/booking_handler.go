package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	bookingapp "roomledger/internal/app/handlers/booking"
	"roomledger/internal/app/queries"
	domainbooking "roomledger/internal/domain/booking"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	stayRequest
	BookingID      string       `json:"booking_id"`
	Guest          guestRequest `json:"guest"`
	PaymentPending bool         `json:"payment_pending"`
	Source         string       `json:"source"`
	ExternalRef    string       `json:"external_ref"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := req.toStay()
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	cmd := bookingapp.ReserveCommand{
		BookingID:       req.BookingID,
		Request:         s,
		Guest:           req.Guest.toGuest(),
		PaymentPending:  req.PaymentPending,
		Source:          domainbooking.Source(req.Source),
		ExternalRef:     req.ExternalRef,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.ReserveCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	result, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](c.Request.Context(), h.Queries, bookingapp.GetBookingQuery{BookingID: c.Param("id")})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	var req cancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	transition(c, h, bookingapp.CancelCommand{BookingID: c.Param("id"), Reason: req.Reason})
}

func (h BookingHandler) Confirm(c *gin.Context) {
	transition(c, h, bookingapp.ConfirmCommand{BookingID: c.Param("id")})
}

func (h BookingHandler) CheckIn(c *gin.Context) {
	transition(c, h, bookingapp.CheckInCommand{BookingID: c.Param("id")})
}

func (h BookingHandler) CheckOut(c *gin.Context) {
	transition(c, h, bookingapp.CheckOutCommand{BookingID: c.Param("id")})
}

func transition[C commands.Command](c *gin.Context, h BookingHandler, cmd C) {
	result, err := commands.Dispatch[C, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
