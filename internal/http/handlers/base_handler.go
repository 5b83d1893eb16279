// README: Base handler utilities (JSON helpers, path params, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"

	"fulfil/internal/http/middleware"
	"fulfil/internal/modules/assignment"
	"fulfil/internal/modules/delivery"
	"fulfil/internal/modules/order"
	"fulfil/internal/modules/pricing"
	"fulfil/internal/modules/staff"
	"fulfil/internal/modules/voucher"
	"fulfil/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

var (
	notFoundErrors = []error{
		order.ErrNotFound,
		voucher.ErrNotFound,
		delivery.ErrNotFound,
		delivery.ErrOrderNotFound,
		delivery.ErrAgentNotFound,
		assignment.ErrOrderNotFound,
		staff.ErrNotFound,
	}
	badRequestErrors = []error{
		types.ErrInvalidID,
		order.ErrBadRequest,
		order.ErrInvalidState,
		order.ErrEmptyCart,
		order.ErrAlreadyDelivered,
		order.ErrInvalidBarcode,
		pricing.ErrBadRequest,
		voucher.ErrBadRequest,
		voucher.ErrVoucherUnavailable,
		delivery.ErrBadRequest,
		delivery.ErrInvalidState,
		assignment.ErrAddressNotGeocodable,
		assignment.ErrNoWarehouse,
		assignment.ErrNoStaffAvailable,
		assignment.ErrInvalidState,
		staff.ErrBadRequest,
	}
	conflictErrors = []error{
		order.ErrConflict,
		voucher.ErrConflict,
		delivery.ErrActiveDelivery,
		delivery.ErrConflict,
		assignment.ErrAssignmentInProgress,
		assignment.ErrConflict,
		staff.ErrConflict,
	}
)

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinels to a status. Anything unknown is a 500
// whose cause is attached to the gin context for the request logger.
func writeServiceError(c *gin.Context, err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			_ = c.Error(err)
			writeError(c, http.StatusBadRequest, "referenced record does not exist")
			return
		case pgUniqueViolation:
			_ = c.Error(err)
			writeError(c, http.StatusConflict, "record already exists")
			return
		}
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		writeError(c, status, "internal error")
		return
	}
	writeError(c, status, err.Error())
}

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

func statusFor(err error) int {
	switch {
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	case isAny(err, conflictErrors):
		return http.StatusConflict
	case isAny(err, badRequestErrors):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// pathID parses a positive numeric path parameter, writing a 400 on failure.
func pathID(c *gin.Context, name string) (types.ID, bool) {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func callerActor(c *gin.Context) order.Actor {
	return order.Actor{Type: middleware.CallerRole(c), ID: middleware.CallerUID(c)}
}
