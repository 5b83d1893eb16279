package assignment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfil/internal/config"
	"fulfil/internal/testdb"
	"fulfil/internal/types"
)

func TestStoreAssignAndRelease(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()

	customer := testdb.MustInsert(t, db, `INSERT INTO customers (name, email) VALUES ('Ng', 'ng@example.com') RETURNING id`)
	addr := testdb.MustInsert(t, db, `INSERT INTO addresses (customer_id, street, postal_code) VALUES ($1, '1 Orchard Rd', '238800') RETURNING id`, customer)
	jurong := testdb.MustInsert(t, db, `INSERT INTO warehouses (name, address, postal_code, capacity) VALUES ('Jurong', '10 Jurong Ave', '600010', 100) RETURNING id`)
	staffA := testdb.MustInsert(t, db, `INSERT INTO staff (full_name, email, role) VALUES ('A', 'a@staff', 'fulfilment') RETURNING id`)
	staffB := testdb.MustInsert(t, db, `INSERT INTO staff (full_name, email, role) VALUES ('B', 'b@staff', 'fulfilment') RETURNING id`)
	fsA := testdb.MustInsert(t, db, `INSERT INTO fulfilment_staff (staff_id, warehouse_id, assigned_orders_count) VALUES ($1, $2, 4) RETURNING id`, staffA, jurong)
	fsB := testdb.MustInsert(t, db, `INSERT INTO fulfilment_staff (staff_id, warehouse_id, assigned_orders_count) VALUES ($1, $2, 0) RETURNING id`, staffB, jurong)
	orderID := testdb.MustInsert(t, db, `
		INSERT INTO orders (customer_id, order_status, subtotal, discount, shipping_fee, total, shipping_address_id)
		VALUES ($1, 'processing', 10, 0, 5, 15, $2) RETURNING id`, customer, addr)

	svc := NewService(NewStore(db), newGeo(), nil, config.AssignmentConfig{DistanceMode: "haversine", NormalizeKm: 50}, nil)

	res, err := svc.Assign(ctx, types.ID(orderID))
	require.NoError(t, err)
	assert.Equal(t, types.ID(fsB), res.FulfilmentStaffID)

	again, err := svc.Assign(ctx, types.ID(orderID))
	require.NoError(t, err)
	assert.True(t, again.AlreadyAssigned)

	countOf := func(id int64) int {
		var n int
		require.NoError(t, db.QueryRow(ctx, `SELECT assigned_orders_count FROM fulfilment_staff WHERE id = $1`, id).Scan(&n))
		return n
	}
	assert.Equal(t, 1, countOf(fsB))
	assert.Equal(t, 4, countOf(fsA))

	_, err = db.Exec(ctx, `UPDATE fulfilment_staff SET on_break = true WHERE id = $1`, fsB)
	require.NoError(t, err)
	moved, err := svc.Reassign(ctx, types.ID(orderID))
	require.NoError(t, err)
	assert.Equal(t, types.ID(fsA), moved.FulfilmentStaffID)
	assert.Equal(t, 0, countOf(fsB))
	assert.Equal(t, 5, countOf(fsA))

	require.NoError(t, svc.Release(ctx, types.ID(orderID)))
	require.NoError(t, svc.Release(ctx, types.ID(orderID)))
	assert.Equal(t, 4, countOf(fsA))

	var staffID *int64
	require.NoError(t, db.QueryRow(ctx, `SELECT fulfilment_staff_id FROM orders WHERE id = $1`, orderID).Scan(&staffID))
	assert.Nil(t, staffID)
}
