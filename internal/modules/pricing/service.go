// README: Pricing service computes order totals (subtotal, voucher discount, shipping fee).
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fulfil/internal/config"
	"fulfil/internal/types"
)

var hundred = decimal.NewFromInt(100)

type Service struct {
	shippingFee      decimal.Decimal
	freeShippingOver decimal.Decimal
}

func NewService(cfg config.PricingConfig) (*Service, error) {
	fee, err := decimal.NewFromString(cfg.ShippingFee)
	if err != nil {
		return nil, fmt.Errorf("shipping fee %q: %w", cfg.ShippingFee, err)
	}
	threshold, err := decimal.NewFromString(cfg.FreeShippingOver)
	if err != nil {
		return nil, fmt.Errorf("free shipping threshold %q: %w", cfg.FreeShippingOver, err)
	}
	if fee.IsNegative() || threshold.IsNegative() {
		return nil, fmt.Errorf("%w: negative pricing config", ErrBadRequest)
	}
	return &Service{shippingFee: types.RoundMoney(fee), freeShippingOver: threshold}, nil
}

// Quote prices lines with an optional voucher percentage (0 for none).
func (s *Service) Quote(lines []Line, discountPct decimal.Decimal) (Quote, error) {
	if discountPct.IsNegative() || discountPct.GreaterThan(hundred) {
		return Quote{}, fmt.Errorf("%w: discount percentage %s", ErrBadRequest, discountPct)
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			return Quote{}, fmt.Errorf("%w: invalid line", ErrBadRequest)
		}
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = types.RoundMoney(subtotal)
	discount := types.RoundMoney(subtotal.Mul(discountPct).Div(hundred))

	fee := s.shippingFee
	if s.freeShippingOver.IsPositive() && subtotal.GreaterThanOrEqual(s.freeShippingOver) {
		fee = decimal.Zero
	}
	return Quote{
		Subtotal:    subtotal,
		Discount:    discount,
		ShippingFee: fee,
		Total:       subtotal.Sub(discount).Add(fee),
	}, nil
}
