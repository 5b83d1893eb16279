// README: Voucher definition and redemption errors.
package voucher

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fulfil/internal/types"
)

var (
	ErrNotFound           = errors.New("voucher not found")
	ErrVoucherUnavailable = errors.New("voucher is expired, inactive or fully used")
	ErrConflict           = errors.New("voucher code already exists")
	ErrBadRequest         = errors.New("bad request")
)

// Voucher keeps UsageCount <= MaxUsage; it goes inactive once expired or exhausted.
type Voucher struct {
	ID                 types.ID        `json:"id"`
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	ExpiryDate         time.Time       `json:"expiryDate"`
	IsActive           bool            `json:"isActive"`
	UsageCount         int             `json:"usageCount"`
	MaxUsage           int             `json:"maxUsage"`
}

func (v *Voucher) Expired(now time.Time) bool {
	return !now.Before(v.ExpiryDate)
}

func (v *Voucher) Usable(now time.Time) bool {
	return v.IsActive && !v.Expired(now) && v.UsageCount < v.MaxUsage
}

type CreateCommand struct {
	Code               string
	DiscountPercentage decimal.Decimal
	ExpiryDate         time.Time
	MaxUsage           int
}
