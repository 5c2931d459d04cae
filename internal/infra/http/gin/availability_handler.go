package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"roomledger/internal/app/dto"
	availabilityapp "roomledger/internal/app/handlers/availability"
	"roomledger/internal/app/queries"
	"roomledger/internal/domain/shared/daterange"
)

type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	var req stayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := req.toStay()
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	quote, err := queries.Ask[availabilityapp.CheckQuery, dto.Quote](c.Request.Context(), h.Queries, availabilityapp.CheckQuery{Request: s})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	dr, err := daterange.Parse(c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	query := availabilityapp.GetCalendarQuery{RoomTypeID: c.Param("id"), Range: dr}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
