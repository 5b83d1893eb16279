package order

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfil/internal/config"
	"fulfil/internal/modules/pricing"
	"fulfil/internal/testdb"
	"fulfil/internal/types"
)

func TestStoreCheckoutAndTransitions(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()

	customer := testdb.MustInsert(t, db, `INSERT INTO customers (name, email) VALUES ('Lim', 'lim@example.com') RETURNING id`)
	product := testdb.MustInsert(t, db, `INSERT INTO products (name, price) VALUES ('Runner', 149.90) RETURNING id`)
	_, err := db.Exec(ctx, `INSERT INTO cart_items (customer_id, product_id, quantity, size) VALUES ($1, $2, 2, 9.5)`, customer, product)
	require.NoError(t, err)

	pricer, err := pricing.NewService(config.PricingConfig{ShippingFee: "5.00", FreeShippingOver: "0"})
	require.NoError(t, err)
	svc := NewService(Deps{Store: NewStore(db), Pricing: pricer})

	o, err := svc.Checkout(ctx, CheckoutCommand{
		CustomerID:   types.ID(customer),
		ContactName:  "Lim",
		ContactEmail: "lim@example.com",
	})
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(types.MustMoney("304.80")), "total %s", o.Total)

	var cartRows int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM cart_items WHERE customer_id = $1`, customer).Scan(&cartRows))
	assert.Zero(t, cartRows)

	_, err = db.Exec(ctx, `UPDATE products SET price = 199.90 WHERE id = $1`, product)
	require.NoError(t, err)

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Price.Equal(types.MustMoney("149.90")), "price must be the checkout snapshot")
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Nil(t, got.FulfilmentStaffID)

	_, err = svc.Pack(ctx, StatusCommand{OrderID: o.ID, Actor: staffActor})
	require.NoError(t, err)
	_, err = svc.Pack(ctx, StatusCommand{OrderID: o.ID, Actor: staffActor})
	assert.ErrorIs(t, err, ErrInvalidState)

	code, err := FormatBarcode(o.ID)
	require.NoError(t, err)
	_, err = svc.ScanBarcode(ctx, ScanCommand{Barcode: code, Actor: agentActor})
	require.NoError(t, err)

	list, err := svc.ListByCustomer(ctx, types.ID(customer))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, StatusDelivered, list[0].Status)
	assert.Equal(t, 2, list[0].StatusVersion)

	var events int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM order_state_events WHERE order_id = $1`, o.ID).Scan(&events))
	assert.Equal(t, 3, events)

	require.NoError(t, svc.Delete(ctx, o.ID))
	_, err = svc.Get(ctx, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// cartGrowingStore adds a cart line right after the cart is read, the way a
// second browser tab would.
type cartGrowingStore struct {
	*Store
	add func()
}

func (s *cartGrowingStore) CartLines(ctx context.Context, customerID types.ID) ([]CartLine, error) {
	lines, err := s.Store.CartLines(ctx, customerID)
	if err == nil && s.add != nil {
		s.add()
	}
	return lines, err
}

func seedCart(t *testing.T, db *pgxpool.Pool) (customer, product int64) {
	t.Helper()
	customer = testdb.MustInsert(t, db, `INSERT INTO customers (name, email) VALUES ('Tan', 'tan@example.com') RETURNING id`)
	product = testdb.MustInsert(t, db, `INSERT INTO products (name, price) VALUES ('Trail', 99.00) RETURNING id`)
	_, err := db.Exec(context.Background(), `INSERT INTO cart_items (customer_id, product_id, quantity, size) VALUES ($1, $2, 1, 8)`, customer, product)
	require.NoError(t, err)
	return customer, product
}

func TestStoreCheckoutKeepsLinesAddedAfterRead(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	customer, product := seedCart(t, db)

	store := &cartGrowingStore{Store: NewStore(db), add: func() {
		_, err := db.Exec(ctx, `INSERT INTO cart_items (customer_id, product_id, quantity, size) VALUES ($1, $2, 3, 10)`, customer, product)
		require.NoError(t, err)
	}}
	pricer, err := pricing.NewService(config.PricingConfig{ShippingFee: "5.00", FreeShippingOver: "0"})
	require.NoError(t, err)
	svc := NewService(Deps{Store: store, Pricing: pricer})

	o, err := svc.Checkout(ctx, CheckoutCommand{CustomerID: types.ID(customer), ContactName: "Tan", ContactEmail: "tan@example.com"})
	require.NoError(t, err)
	require.Len(t, o.Items, 1)

	var qty int
	require.NoError(t, db.QueryRow(ctx,
		`SELECT quantity FROM cart_items WHERE customer_id = $1 AND size = 10`, customer).Scan(&qty))
	assert.Equal(t, 3, qty)
}

func TestStoreCheckoutSameCartTwice(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	customer, _ := seedCart(t, db)
	store := NewStore(db)

	lines, err := store.CartLines(ctx, types.ID(customer))
	require.NoError(t, err)
	newOrder := func() *Order {
		o := &Order{
			CustomerID: types.ID(customer), Status: StatusProcessing,
			Subtotal: types.MustMoney("99.00"), Discount: types.MustMoney("0"),
			ShippingFee: types.MustMoney("5.00"), Total: types.MustMoney("104.00"),
			ContactName: "Tan", ContactEmail: "tan@example.com",
		}
		for _, l := range lines {
			o.Items = append(o.Items, Item{ProductID: l.ProductID, Price: l.UnitPrice, Quantity: l.Quantity, Size: l.Size})
		}
		return o
	}

	require.NoError(t, store.CreateFromCart(ctx, newOrder()))
	assert.ErrorIs(t, store.CreateFromCart(ctx, newOrder()), ErrConflict)

	var orders int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id = $1`, customer).Scan(&orders))
	assert.Equal(t, 1, orders)
}

func TestStoreCheckoutRejectsForeignOrUnknownAddress(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	customer, _ := seedCart(t, db)
	other := testdb.MustInsert(t, db, `INSERT INTO customers (name, email) VALUES ('Ong', 'ong@example.com') RETURNING id`)
	otherAddr := testdb.MustInsert(t, db, `INSERT INTO addresses (customer_id, street, postal_code) VALUES ($1, '1 Jurong West', '640001') RETURNING id`, other)

	pricer, err := pricing.NewService(config.PricingConfig{ShippingFee: "5.00", FreeShippingOver: "0"})
	require.NoError(t, err)
	svc := NewService(Deps{Store: NewStore(db), Pricing: pricer})

	for _, addr := range []int64{otherAddr, 999999} {
		id := types.ID(addr)
		_, err := svc.Checkout(ctx, CheckoutCommand{
			CustomerID: types.ID(customer), ShippingAddressID: &id,
			ContactName: "Tan", ContactEmail: "tan@example.com",
		})
		assert.ErrorIs(t, err, ErrBadRequest)
	}

	var cartRows int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM cart_items WHERE customer_id = $1`, customer).Scan(&cartRows))
	assert.Equal(t, 1, cartRows)
}
