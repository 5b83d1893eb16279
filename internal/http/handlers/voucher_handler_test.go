// README: Handler tests for voucher routes.
package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fulfilhttp "fulfil/internal/http"
	"fulfil/internal/modules/voucher"
)

type stubVouchers struct {
	created voucher.CreateCommand
	err     error
}

func (s *stubVouchers) Create(_ context.Context, cmd voucher.CreateCommand) (*voucher.Voucher, error) {
	s.created = cmd
	if s.err != nil {
		return nil, s.err
	}
	return &voucher.Voucher{ID: 1, Code: cmd.Code, IsActive: true, MaxUsage: cmd.MaxUsage}, nil
}

func (s *stubVouchers) Validate(_ context.Context, code string) (*voucher.Voucher, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &voucher.Voucher{Code: code, IsActive: true}, nil
}

func (s *stubVouchers) Redeem(_ context.Context, code string) (*voucher.Voucher, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &voucher.Voucher{Code: code, UsageCount: 1, MaxUsage: 1}, nil
}

func TestCreateVoucher(t *testing.T) {
	v := &stubVouchers{}
	r := buildTestRouter(makeVerifier("adm", "admin"), fulfilhttp.Services{Vouchers: v})
	w := doRequest(r, http.MethodPost, "/api/vouchers", map[string]any{
		"code":               "SAVE10",
		"discountPercentage": "10",
		"expiryDate":         "2030-01-01T00:00:00Z",
		"maxUsage":           5,
	}, "Bearer t")

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "SAVE10", v.created.Code)
	assert.True(t, decimal.NewFromInt(10).Equal(v.created.DiscountPercentage))
	assert.True(t, v.created.ExpiryDate.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestValidateVoucher_Unavailable(t *testing.T) {
	r := buildTestRouter(makeVerifier("c", "customer"), fulfilhttp.Services{Vouchers: &stubVouchers{err: voucher.ErrVoucherUnavailable}})
	w := doRequest(r, http.MethodGet, "/api/vouchers/OLD", nil, "Bearer t")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUseVoucher_NotFound(t *testing.T) {
	r := buildTestRouter(makeVerifier("c", "customer"), fulfilhttp.Services{Vouchers: &stubVouchers{err: voucher.ErrNotFound}})
	w := doRequest(r, http.MethodPost, "/api/vouchers/NOPE/use", nil, "Bearer t")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
