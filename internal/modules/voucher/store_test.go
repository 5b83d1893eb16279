package voucher

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfil/internal/testdb"
)

func TestStoreIncrementUsage(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testdb.Open(t))
	svc := NewService(store, nil)

	_, err := svc.Create(ctx, CreateCommand{
		Code:               "DB1",
		DiscountPercentage: decimal.RequireFromString("12.5"),
		ExpiryDate:         time.Now().Add(time.Hour),
		MaxUsage:           1,
	})
	require.NoError(t, err)

	v, err := svc.Redeem(ctx, "DB1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.UsageCount)
	assert.False(t, v.IsActive)
	assert.True(t, v.DiscountPercentage.Equal(decimal.RequireFromString("12.5")))

	_, err = svc.Redeem(ctx, "DB1")
	assert.ErrorIs(t, err, ErrVoucherUnavailable)

	require.NoError(t, svc.Release(ctx, "DB1"))
	v, err = svc.Validate(ctx, "DB1")
	require.NoError(t, err)
	assert.True(t, v.IsActive)
}
