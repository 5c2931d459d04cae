package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"roomledger/internal/app/dto"
	searchapp "roomledger/internal/app/handlers/search"
	"roomledger/internal/app/queries"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
)

type SearchHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h SearchHandler) Search(c *gin.Context) {
	dr, err := daterange.Parse(c.Query("check_in"), c.Query("check_out"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	q := searchapp.Query{
		City:      c.Query("city"),
		Country:   c.Query("country"),
		Range:     dr,
		Guests:    parseIntWithDefault(c.Query("guests"), 1),
		Units:     parseIntWithDefault(c.Query("units"), 1),
		Amenities: splitCSV(c.Query("amenities")),
		Limit:     parseIntWithDefault(c.Query("limit"), 0),
	}
	if q.PriceMin, err = optionalInt64(c, "price_min"); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	if q.PriceMax, err = optionalInt64(c, "price_max"); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	if q.Lat, err = optionalFloat(c, "lat"); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	if q.Lon, err = optionalFloat(c, "lon"); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	result, err := queries.Ask[searchapp.Query, dto.SearchResult](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func optionalInt64(c *gin.Context, key string) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer amount", errs.ErrValidation, key)
	}
	return v, nil
}

func optionalFloat(c *gin.Context, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", errs.ErrValidation, key)
	}
	return &v, nil
}

var _ SearchHTTP = SearchHandler{}
