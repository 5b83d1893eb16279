// README: Delivery store backed by PostgreSQL; the deliveries table is the only agent-order link.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fulfil/internal/modules/order"
	"fulfil/internal/types"
)

type Repository interface {
	// OrderStatus returns ErrOrderNotFound for an unknown order.
	OrderStatus(ctx context.Context, orderID types.ID) (order.Status, error)
	GetAgent(ctx context.Context, agentID types.ID) (*Agent, error)
	ListAgents(ctx context.Context) ([]*Agent, error)
	SetAvailability(ctx context.Context, agentID types.ID, available bool) (bool, error)
	Create(ctx context.Context, d *Delivery) error
	Get(ctx context.Context, id types.ID) (*Delivery, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, actual *time.Time) (bool, error)
	ListByAgent(ctx context.Context, agentID types.ID) ([]*Delivery, error)
	AgentOrders(ctx context.Context, agentID types.ID) ([]AgentOrder, error)
	DeletePending(ctx context.Context, agentID, orderID types.ID) (bool, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const deliveryColumns = `id, order_id, delivery_agent_id, status, estimated_delivery_date,
	actual_delivery_date, tracking_id, created_at`

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.OrderID, &d.DeliveryAgentID, &d.Status, &d.EstimatedDeliveryDate,
		&d.ActualDeliveryDate, &d.TrackingID, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) OrderStatus(ctx context.Context, orderID types.ID) (order.Status, error) {
	var st order.Status
	err := s.db.QueryRow(ctx, `SELECT order_status FROM orders WHERE id = $1`, orderID).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	return st, err
}

func (s *Store) GetAgent(ctx context.Context, agentID types.ID) (*Agent, error) {
	var a Agent
	err := s.db.QueryRow(ctx, `
		SELECT id, staff_id, vehicle_info, is_available
		FROM delivery_agents WHERE id = $1`, agentID,
	).Scan(&a.ID, &a.StaffID, &a.VehicleInfo, &a.IsAvailable)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]*Agent, error) {
	rows, err := s.db.Query(ctx, `SELECT id, staff_id, vehicle_info, is_available FROM delivery_agents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.StaffID, &a.VehicleInfo, &a.IsAvailable); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *Store) SetAvailability(ctx context.Context, agentID types.ID, available bool) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE delivery_agents SET is_available = $1 WHERE id = $2`, available, agentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Create(ctx context.Context, d *Delivery) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO deliveries (order_id, delivery_agent_id, status, estimated_delivery_date, tracking_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		d.OrderID, d.DeliveryAgentID, string(d.Status), d.EstimatedDeliveryDate, d.TrackingID,
	).Scan(&d.ID, &d.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_deliveries_active_order" {
		return ErrActiveDelivery
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Delivery, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, actual *time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE deliveries
		SET status = $1,
		    actual_delivery_date = COALESCE($2, actual_delivery_date)
		WHERE id = $3 AND status = $4`,
		string(to), actual, id, string(from),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return false, ErrActiveDelivery
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListByAgent(ctx context.Context, agentID types.ID) ([]*Delivery, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE delivery_agent_id = $1
		ORDER BY id`, agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) AgentOrders(ctx context.Context, agentID types.ID) ([]AgentOrder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT o.id, o.order_status, d.id, d.status, d.tracking_id, d.estimated_delivery_date
		FROM deliveries d
		JOIN orders o ON o.id = d.order_id
		WHERE d.delivery_agent_id = $1
		  AND d.status IN ('pending', 'out_for_delivery')
		ORDER BY d.estimated_delivery_date, d.id`, agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentOrder
	for rows.Next() {
		var ao AgentOrder
		if err := rows.Scan(&ao.OrderID, &ao.OrderStatus, &ao.DeliveryID, &ao.DeliveryStatus, &ao.TrackingID, &ao.EstimatedDeliveryDate); err != nil {
			return nil, err
		}
		out = append(out, ao)
	}
	return out, rows.Err()
}

func (s *Store) DeletePending(ctx context.Context, agentID, orderID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM deliveries
		WHERE delivery_agent_id = $1 AND order_id = $2 AND status = 'pending'`,
		agentID, orderID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
