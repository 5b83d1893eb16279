// README: Delivery service: agent assignment, status tracking and agent performance.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfil/internal/modules/order"
	"fulfil/internal/types"
)

// OrderDeliverer moves the owning order to delivered once the parcel arrives.
type OrderDeliverer interface {
	MarkDelivered(ctx context.Context, orderID types.ID) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, v any) error
}

type Service struct {
	store     Repository
	orders    OrderDeliverer
	publisher Publisher
	etaDays   int
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store Repository, orders OrderDeliverer, publisher Publisher, etaDays int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if etaDays <= 0 {
		etaDays = defaultETADays
	}
	return &Service{
		store:     store,
		orders:    orders,
		publisher: publisher,
		etaDays:   etaDays,
		logger:    logger,
		now:       time.Now,
	}
}

type AssignCommand struct {
	OrderID types.ID
	AgentID types.ID
}

type UpdateStatusCommand struct {
	DeliveryID types.ID
	Status     Status
}

// StatusChanged is published after every persisted delivery status change.
type StatusChanged struct {
	Type       string    `json:"type"`
	DeliveryID types.ID  `json:"deliveryId"`
	OrderID    types.ID  `json:"orderId"`
	AgentID    types.ID  `json:"agentId"`
	TrackingID uuid.UUID `json:"trackingId"`
	FromStatus Status    `json:"fromStatus,omitempty"`
	ToStatus   Status    `json:"toStatus"`
	At         time.Time `json:"at"`
}

func (s *Service) AssignAgent(ctx context.Context, cmd AssignCommand) (*Delivery, error) {
	if cmd.OrderID <= 0 || cmd.AgentID <= 0 {
		return nil, ErrBadRequest
	}
	status, err := s.store.OrderStatus(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if status != order.StatusShipped {
		return nil, fmt.Errorf("%w: order %d is %s, not shipped", ErrInvalidState, int64(cmd.OrderID), status)
	}
	if _, err := s.store.GetAgent(ctx, cmd.AgentID); err != nil {
		return nil, err
	}

	now := s.now()
	d := &Delivery{
		OrderID:               cmd.OrderID,
		DeliveryAgentID:       cmd.AgentID,
		Status:                StatusPending,
		EstimatedDeliveryDate: now.AddDate(0, 0, s.etaDays),
		TrackingID:            uuid.New(),
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	s.publish(ctx, d, "", now)
	return d, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Delivery, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*Delivery, error) {
	if !cmd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrBadRequest, cmd.Status)
	}
	d, err := s.store.Get(ctx, cmd.DeliveryID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(d.Status, cmd.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, d.Status, cmd.Status)
	}

	now := s.now()
	var actual *time.Time
	if cmd.Status == StatusDelivered {
		actual = &now
	}
	ok, err := s.store.UpdateStatus(ctx, d.ID, d.Status, cmd.Status, actual)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	from := d.Status
	d.Status = cmd.Status
	if actual != nil {
		d.ActualDeliveryDate = actual
	}
	s.publish(ctx, d, from, now)

	if d.Status == StatusDelivered && s.orders != nil {
		if err := s.orders.MarkDelivered(ctx, d.OrderID); err != nil {
			s.logger.Warn("order not moved to delivered",
				zap.Int64("order_id", int64(d.OrderID)),
				zap.Int64("delivery_id", int64(d.ID)),
				zap.Error(err),
			)
		}
	}
	return d, nil
}

// AgentOrders lists the orders on the agent's pending or out-for-delivery deliveries.
func (s *Service) AgentOrders(ctx context.Context, agentID types.ID) ([]AgentOrder, error) {
	if _, err := s.store.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}
	out, err := s.store.AgentOrders(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []AgentOrder{}
	}
	return out, nil
}

// AddOrderToAgent is the agent-centric name for AssignAgent.
func (s *Service) AddOrderToAgent(ctx context.Context, agentID, orderID types.ID) (*Delivery, error) {
	return s.AssignAgent(ctx, AssignCommand{OrderID: orderID, AgentID: agentID})
}

// RemoveOrderFromAgent drops the agent's not-yet-dispatched delivery for the order.
func (s *Service) RemoveOrderFromAgent(ctx context.Context, agentID, orderID types.ID) error {
	if _, err := s.store.GetAgent(ctx, agentID); err != nil {
		return err
	}
	ok, err := s.store.DeletePending(ctx, agentID, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Performance(ctx context.Context, agentID types.ID) (Performance, error) {
	if _, err := s.store.GetAgent(ctx, agentID); err != nil {
		return Performance{}, err
	}
	deliveries, err := s.store.ListByAgent(ctx, agentID)
	if err != nil {
		return Performance{}, err
	}
	return ComputePerformance(agentID, deliveries), nil
}

// AllPerformance reports every agent, in id order.
func (s *Service) AllPerformance(ctx context.Context) ([]Performance, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Performance, 0, len(agents))
	for _, a := range agents {
		deliveries, err := s.store.ListByAgent(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ComputePerformance(a.ID, deliveries))
	}
	return out, nil
}

func (s *Service) SetAvailability(ctx context.Context, agentID types.ID, available bool) error {
	ok, err := s.store.SetAvailability(ctx, agentID, available)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAgentNotFound
	}
	return nil
}

func (s *Service) publish(ctx context.Context, d *Delivery, from Status, at time.Time) {
	if s.publisher == nil {
		return
	}
	msg := StatusChanged{
		Type:       "delivery.status_changed",
		DeliveryID: d.ID,
		OrderID:    d.OrderID,
		AgentID:    d.DeliveryAgentID,
		TrackingID: d.TrackingID,
		FromStatus: from,
		ToStatus:   d.Status,
		At:         at,
	}
	if err := s.publisher.Publish(ctx, "order:"+d.OrderID.String(), msg); err != nil {
		s.logger.Warn("publish delivery event failed", zap.Int64("delivery_id", int64(d.ID)), zap.Error(err))
	}
}
