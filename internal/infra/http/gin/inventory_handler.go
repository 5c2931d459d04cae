package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	inventoryapp "roomledger/internal/app/handlers/inventory"
	domaininventory "roomledger/internal/domain/inventory"
	"roomledger/internal/domain/shared/daterange"
)

type InventoryHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

// bulkRequest covers [from, to). Omitted fields leave the day untouched.
type bulkRequest struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Price        *int64 `json:"price"`
	ClearPrice   bool   `json:"clear_price"`
	UnitsDelta   *int   `json:"units_delta"`
	StopSell     *bool  `json:"stop_sell"`
	AllOrNothing bool   `json:"all_or_nothing"`
}

type rebuildRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h InventoryHandler) Bulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dr, err := daterange.Parse(req.From, req.To)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	cmd := inventoryapp.BulkUpdateCommand{
		RoomTypeID: c.Param("id"),
		Range:      dr,
		Update: domaininventory.Update{
			Price:      req.Price,
			ClearPrice: req.ClearPrice,
			UnitsDelta: req.UnitsDelta,
			StopSell:   req.StopSell,
		},
		AllOrNothing: req.AllOrNothing,
	}
	result, err := commands.Dispatch[inventoryapp.BulkUpdateCommand, dto.BulkResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h InventoryHandler) Rebuild(c *gin.Context) {
	var req rebuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dr, err := daterange.Parse(req.From, req.To)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	cmd := inventoryapp.RebuildCommand{RoomTypeID: c.Param("id"), Range: dr}
	result, err := commands.Dispatch[inventoryapp.RebuildCommand, dto.RebuildResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ InventoryHTTP = InventoryHandler{}
