// README: Voucher handlers.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"fulfil/internal/modules/voucher"
)

type VoucherService interface {
	Create(ctx context.Context, cmd voucher.CreateCommand) (*voucher.Voucher, error)
	Validate(ctx context.Context, code string) (*voucher.Voucher, error)
	Redeem(ctx context.Context, code string) (*voucher.Voucher, error)
}

type VoucherHandler struct {
	vouchers VoucherService
}

func NewVoucherHandler(vouchers VoucherService) *VoucherHandler {
	return &VoucherHandler{vouchers: vouchers}
}

type createVoucherRequest struct {
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	ExpiryDate         time.Time       `json:"expiryDate"`
	MaxUsage           int             `json:"maxUsage"`
}

func (h *VoucherHandler) Create(c *gin.Context) {
	var req createVoucherRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.vouchers.Create(c.Request.Context(), voucher.CreateCommand{
		Code:               strings.TrimSpace(req.Code),
		DiscountPercentage: req.DiscountPercentage,
		ExpiryDate:         req.ExpiryDate,
		MaxUsage:           req.MaxUsage,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, v)
}

// Validate answers 200 with the voucher only while it is usable.
func (h *VoucherHandler) Validate(c *gin.Context) {
	v, err := h.vouchers.Validate(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}

func (h *VoucherHandler) Use(c *gin.Context) {
	v, err := h.vouchers.Redeem(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}
