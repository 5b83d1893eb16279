// README: Assignment store backed by PostgreSQL; the commit locks the staff row and increments in SQL.
package assignment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fulfil/internal/types"
)

type Repository interface {
	LoadTarget(ctx context.Context, orderID types.ID) (*Target, error)
	Warehouses(ctx context.Context) ([]Warehouse, error)
	OnDutyStaff(ctx context.Context, warehouseID types.ID) ([]Candidate, error)
	// Commit sets the order's staff when it still holds previous (nil for an
	// unassigned order). A previous staff member is decremented in the same
	// transaction.
	Commit(ctx context.Context, orderID types.ID, previous *types.ID, fulfilmentStaffID types.ID) error
	// ReleaseOrder clears the order's staff and decrements that staff's counter (floored at 0).
	ReleaseOrder(ctx context.Context, orderID types.ID) (bool, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) LoadTarget(ctx context.Context, orderID types.ID) (*Target, error) {
	var t Target
	var street, postal *string
	err := s.db.QueryRow(ctx, `
		SELECT o.id, o.order_status, o.fulfilment_staff_id, a.street, a.postal_code
		FROM orders o
		LEFT JOIN addresses a ON a.id = o.shipping_address_id
		WHERE o.id = $1`, orderID,
	).Scan(&t.OrderID, &t.Status, &t.FulfilmentStaffID, &street, &postal)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if street != nil && postal != nil {
		t.HasAddress = true
		t.Street, t.PostalCode = *street, *postal
	}
	return &t, nil
}

func (s *Store) Warehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, address, postal_code FROM warehouses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Address, &w.PostalCode); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) OnDutyStaff(ctx context.Context, warehouseID types.ID) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, warehouse_id, assigned_orders_count
		FROM fulfilment_staff
		WHERE warehouse_id = $1 AND NOT on_break
		ORDER BY id`, warehouseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.FulfilmentStaffID, &c.WarehouseID, &c.AssignedOrdersCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) Commit(ctx context.Context, orderID types.ID, previous *types.ID, fulfilmentStaffID types.ID) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var onBreak bool
		err := tx.QueryRow(ctx, `
			SELECT on_break FROM fulfilment_staff WHERE id = $1 FOR UPDATE`, fulfilmentStaffID,
		).Scan(&onBreak)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && onBreak) {
			return errStaffUnavailable
		}
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE orders
			SET fulfilment_staff_id = $1
			WHERE id = $2 AND fulfilment_staff_id IS NOT DISTINCT FROM $3::bigint AND order_status = 'processing'`,
			fulfilmentStaffID, orderID, previous,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return ErrConflict
		}

		if previous != nil {
			if _, err := tx.Exec(ctx, `
				UPDATE fulfilment_staff
				SET assigned_orders_count = GREATEST(assigned_orders_count - 1, 0)
				WHERE id = $1`, *previous,
			); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE fulfilment_staff
			SET assigned_orders_count = assigned_orders_count + 1
			WHERE id = $1`, fulfilmentStaffID,
		)
		return err
	})
}

func (s *Store) ReleaseOrder(ctx context.Context, orderID types.ID) (bool, error) {
	released := false
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var staffID *types.ID
		err := tx.QueryRow(ctx, `
			SELECT fulfilment_staff_id FROM orders WHERE id = $1 FOR UPDATE`, orderID,
		).Scan(&staffID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if staffID == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			UPDATE fulfilment_staff
			SET assigned_orders_count = GREATEST(assigned_orders_count - 1, 0)
			WHERE id = $1`, *staffID,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE orders SET fulfilment_staff_id = NULL WHERE id = $1`, orderID); err != nil {
			return err
		}
		released = true
		return nil
	})
	return released, err
}
