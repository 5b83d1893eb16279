// README: Staff store backed by PostgreSQL.
package staff

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fulfil/internal/types"
)

type Repository interface {
	// Create inserts the staff row and its specialisation in one transaction.
	Create(ctx context.Context, s *Staff, cmd OnboardCommand) (*OnboardResult, error)
	SetOnBreak(ctx context.Context, staffID types.ID, onBreak bool) (bool, error)
	Workload(ctx context.Context) ([]Workload, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, st *Staff, cmd OnboardCommand) (*OnboardResult, error) {
	res := &OnboardResult{}
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO staff (full_name, email, role)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`,
			st.FullName, st.Email, string(st.Role),
		).Scan(&st.ID, &st.CreatedAt)
		if err != nil {
			return err
		}

		switch st.Role {
		case RoleFulfilment:
			var id types.ID
			err = tx.QueryRow(ctx, `
				INSERT INTO fulfilment_staff (staff_id, warehouse_id, assigned_area)
				VALUES ($1, $2, $3)
				RETURNING id`,
				st.ID, cmd.WarehouseID, cmd.AssignedArea,
			).Scan(&id)
			res.FulfilmentStaffID = &id
		case RoleDelivery:
			var id types.ID
			err = tx.QueryRow(ctx, `
				INSERT INTO delivery_agents (staff_id, vehicle_info)
				VALUES ($1, $2)
				RETURNING id`,
				st.ID, cmd.VehicleInfo,
			).Scan(&id)
			res.DeliveryAgentID = &id
		}
		return err
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return nil, ErrConflict
		case "23503":
			return nil, fmt.Errorf("%w: warehouse does not exist", ErrBadRequest)
		}
	}
	if err != nil {
		return nil, err
	}
	res.Staff = *st
	return res, nil
}

func (s *Store) SetOnBreak(ctx context.Context, staffID types.ID, onBreak bool) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE fulfilment_staff SET on_break = $1 WHERE staff_id = $2`, onBreak, staffID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Workload(ctx context.Context) ([]Workload, error) {
	rows, err := s.db.Query(ctx, `
		SELECT fs.id, s.id, s.full_name, fs.warehouse_id, COALESCE(w.name, ''),
		       fs.assigned_area, fs.assigned_orders_count, fs.on_break
		FROM fulfilment_staff fs
		JOIN staff s ON s.id = fs.staff_id
		LEFT JOIN warehouses w ON w.id = fs.warehouse_id
		ORDER BY w.name NULLS LAST, fs.assigned_orders_count DESC, fs.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Workload
	for rows.Next() {
		var w Workload
		if err := rows.Scan(&w.FulfilmentStaffID, &w.StaffID, &w.FullName, &w.WarehouseID, &w.WarehouseName,
			&w.AssignedArea, &w.AssignedOrdersCount, &w.OnBreak); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

