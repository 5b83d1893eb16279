// README: Pricing inputs and the quoted order totals.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrBadRequest = errors.New("bad request")

// Line is one priced cart line. UnitPrice is the snapshot taken at checkout.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Quote satisfies Total == Subtotal - Discount + ShippingFee.
type Quote struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	ShippingFee decimal.Decimal `json:"shippingFee"`
	Total       decimal.Decimal `json:"total"`
}
