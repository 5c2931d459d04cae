package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"roomledger/internal/app/commands"
	inventoryapp "roomledger/internal/app/handlers/inventory"
	"roomledger/internal/app/middleware"
	domaininventory "roomledger/internal/domain/inventory"
	domainpromo "roomledger/internal/domain/promo"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/infra/obs"
)

// retryAfterSeconds is suggested to callers that lost a lock race.
const retryAfterSeconds = 1

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError maps err to a status code and JSON body. Unclassified errors are
// logged in full and answered with a generic message.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var conflict *domaininventory.ConflictError
	var rejected *inventoryapp.RejectedError
	switch {
	case errors.As(err, &rejected):
		c.JSON(http.StatusConflict, gin.H{
			"error":  err.Error(),
			"code":   "bulk_rejected",
			"result": rejected.Result,
		})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, errorBody{
			Error: err.Error(),
			Code:  "unavailable",
			Details: map[string]any{
				"room_type_id": string(conflict.RoomTypeID),
				"date":         conflict.Date.Format(daterange.Layout),
				"requested":    conflict.Requested,
				"available":    conflict.Available,
				"stop_sell":    conflict.StopSell,
			},
		})
	case errors.Is(err, errs.ErrConcurrency):
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.JSON(http.StatusConflict, errorBody{Error: err.Error(), Code: "concurrency"})
	case errors.Is(err, errs.ErrInvalidTransition):
		c.JSON(http.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_transition"})
	case errors.Is(err, errs.ErrAlreadyExists), errors.Is(err, middleware.ErrIdempotencyKeyReused):
		c.JSON(http.StatusConflict, errorBody{Error: err.Error(), Code: "already_exists"})
	case errors.Is(err, domainpromo.ErrPromoCode):
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "promo_code"})
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation"})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, errs.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, errorBody{Error: "authentication required", Code: "unauthenticated"})
	case errors.Is(err, errs.ErrForbidden):
		c.JSON(http.StatusForbidden, errorBody{Error: err.Error(), Code: "forbidden"})
	case errors.Is(err, commands.ErrHandlerNotFound):
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: "operation unavailable", Code: "unavailable_operation"})
	default:
		if logger != nil {
			logger.Error("request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"request_id", obs.RequestIDFromContext(c.Request.Context()),
				"error", err,
			)
		}
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation"})
}
