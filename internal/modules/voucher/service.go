// README: Voucher service: create, validate (auto-deactivating expired codes), redeem, release.
package voucher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service struct {
	store  Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Voucher, error) {
	code := strings.TrimSpace(cmd.Code)
	if code == "" || cmd.MaxUsage <= 0 {
		return nil, ErrBadRequest
	}
	if !cmd.DiscountPercentage.IsPositive() || cmd.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: discount percentage must be in (0, 100]", ErrBadRequest)
	}
	if !cmd.ExpiryDate.After(s.now()) {
		return nil, fmt.Errorf("%w: expiry date must be in the future", ErrBadRequest)
	}
	v := &Voucher{
		Code:               code,
		DiscountPercentage: cmd.DiscountPercentage,
		ExpiryDate:         cmd.ExpiryDate,
		IsActive:           true,
		MaxUsage:           cmd.MaxUsage,
	}
	if err := s.store.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) Get(ctx context.Context, code string) (*Voucher, error) {
	return s.store.GetByCode(ctx, code)
}

// Validate returns the voucher only if it can be redeemed right now.
func (s *Service) Validate(ctx context.Context, code string) (*Voucher, error) {
	v, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if v.IsActive && v.Expired(now) {
		s.deactivate(ctx, v)
	}
	if !v.Usable(now) {
		return nil, ErrVoucherUnavailable
	}
	return v, nil
}

// Redeem increments usage atomically. The voucher deactivates itself on the last use.
func (s *Service) Redeem(ctx context.Context, code string) (*Voucher, error) {
	now := s.now()
	v, ok, err := s.store.IncrementUsage(ctx, code, now)
	if err != nil {
		return nil, err
	}
	if ok {
		return v, nil
	}
	existing, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if existing.IsActive && existing.Expired(now) {
		s.deactivate(ctx, existing)
	}
	return nil, ErrVoucherUnavailable
}

// Release undoes a Redeem whose order was never persisted.
func (s *Service) Release(ctx context.Context, code string) error {
	return s.store.DecrementUsage(ctx, code, s.now())
}

func (s *Service) deactivate(ctx context.Context, v *Voucher) {
	if err := s.store.Deactivate(ctx, v.Code); err != nil {
		s.logger.Warn("voucher deactivate failed", zap.String("code", v.Code), zap.Error(err))
		return
	}
	v.IsActive = false
	s.logger.Info("voucher expired", zap.String("code", v.Code))
}
