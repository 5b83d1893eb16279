// README: Assignment service: nearest geocodable warehouse, then least-loaded on-duty staff.
package assignment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fulfil/internal/config"
	"fulfil/internal/modules/location"
	"fulfil/internal/modules/order"
	"fulfil/internal/types"
)

type Service struct {
	store  Repository
	geo    location.Geocoder
	locker Locker
	cfg    config.AssignmentConfig
	logger *zap.Logger
}

var _ order.Assigner = (*Service)(nil)

func NewService(store Repository, geo location.Geocoder, locker Locker, cfg config.AssignmentConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NormalizeKm <= 0 {
		cfg.NormalizeKm = defaultNormalizeKm
	}
	return &Service{store: store, geo: geo, locker: locker, cfg: cfg, logger: logger}
}

// Assign picks a fulfilment staff member for a processing order. An order
// that already has staff is returned unchanged with AlreadyAssigned set.
func (s *Service) Assign(ctx context.Context, orderID types.ID) (*Result, error) {
	unlock, err := s.lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.store.LoadTarget(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if t.FulfilmentStaffID != nil {
		return &Result{OrderID: orderID, FulfilmentStaffID: *t.FulfilmentStaffID, AlreadyAssigned: true}, nil
	}
	if t.Status != string(order.StatusProcessing) {
		return nil, ErrInvalidState
	}
	return s.assign(ctx, t)
}

// AssignOrder is the fire-and-check form used at checkout: failures are logged
// and leave the order processing and unassigned.
func (s *Service) AssignOrder(ctx context.Context, orderID types.ID) bool {
	res, err := s.Assign(ctx, orderID)
	if err != nil {
		s.logger.Warn("order assignment failed", zap.Int64("order_id", int64(orderID)), zap.Error(err))
		return false
	}
	s.logger.Info("order assigned",
		zap.Int64("order_id", int64(orderID)),
		zap.Int64("fulfilment_staff_id", int64(res.FulfilmentStaffID)),
		zap.Float64("distance_km", res.DistanceKm),
		zap.Float64("score", res.Score),
		zap.Bool("already_assigned", res.AlreadyAssigned),
	)
	return true
}

// Reassign runs the heuristic again for an order. The current staff member
// keeps the order until the new choice is committed, so a failed reassign
// leaves the assignment and both counters untouched.
func (s *Service) Reassign(ctx context.Context, orderID types.ID) (*Result, error) {
	unlock, err := s.lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.store.LoadTarget(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if t.Status != string(order.StatusProcessing) {
		return nil, ErrInvalidState
	}
	return s.assign(ctx, t)
}

// Release gives back the workload held by an order that is cancelled or deleted.
func (s *Service) Release(ctx context.Context, orderID types.ID) error {
	released, err := s.store.ReleaseOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if released {
		s.logger.Info("order workload released", zap.Int64("order_id", int64(orderID)))
	}
	return nil
}

func (s *Service) assign(ctx context.Context, t *Target) (*Result, error) {
	if !t.HasAddress {
		return nil, ErrAddressNotGeocodable
	}
	dest, err := s.geo.Geocode(ctx, t.Address())
	if err != nil {
		s.logger.Warn("shipping address geocode failed", zap.Int64("order_id", int64(t.OrderID)), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAddressNotGeocodable, err)
	}

	ranked, err := s.rankWarehouses(ctx, dest)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		res, err := s.pickAndCommit(ctx, t, ranked)
		if errors.Is(err, errStaffUnavailable) {
			continue
		}
		return res, err
	}
	return nil, ErrNoStaffAvailable
}

func (s *Service) rankWarehouses(ctx context.Context, dest types.Point) ([]rankedWarehouse, error) {
	warehouses, err := s.store.Warehouses(ctx)
	if err != nil {
		return nil, err
	}
	ranked := make([]rankedWarehouse, 0, len(warehouses))
	for _, w := range warehouses {
		p, err := s.geo.Geocode(ctx, w.FullAddress())
		if err != nil {
			s.logger.Warn("warehouse geocode failed, skipping",
				zap.Int64("warehouse_id", int64(w.ID)), zap.String("warehouse", w.Name), zap.Error(err))
			continue
		}
		ranked = append(ranked, rankedWarehouse{Warehouse: w, DistanceKm: s.distance(ctx, dest, p)})
	}
	if len(ranked) == 0 {
		return nil, ErrNoWarehouse
	}
	location.SortByDistance(ranked, func(r rankedWarehouse) float64 { return r.DistanceKm })
	return ranked, nil
}

func (s *Service) distance(ctx context.Context, from, to types.Point) float64 {
	if s.cfg.DistanceMode == "road" {
		km, err := s.geo.RouteDistanceKm(ctx, from, to)
		if err == nil {
			return km
		}
		s.logger.Warn("road distance failed, using great-circle", zap.Error(err))
	}
	return location.HaversineKm(from, to)
}

// pickAndCommit stops at the first warehouse with on-duty staff, even if a
// farther one would score higher.
func (s *Service) pickAndCommit(ctx context.Context, t *Target, ranked []rankedWarehouse) (*Result, error) {
	orderID := t.OrderID
	for _, w := range ranked {
		cands, err := s.store.OnDutyStaff(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		// The current holder's counter still includes this order.
		if t.FulfilmentStaffID != nil {
			for i := range cands {
				if cands[i].FulfilmentStaffID == *t.FulfilmentStaffID && cands[i].AssignedOrdersCount > 0 {
					cands[i].AssignedOrdersCount--
				}
			}
		}
		best, score, ok := PickStaff(cands, w.DistanceKm, s.cfg.NormalizeKm)
		if !ok {
			continue
		}
		if err := s.store.Commit(ctx, orderID, t.FulfilmentStaffID, best.FulfilmentStaffID); err != nil {
			return nil, err
		}
		return &Result{
			OrderID:           orderID,
			FulfilmentStaffID: best.FulfilmentStaffID,
			WarehouseID:       w.ID,
			DistanceKm:        w.DistanceKm,
			Score:             score,
		}, nil
	}
	return nil, ErrNoStaffAvailable
}

func (s *Service) lock(ctx context.Context, orderID types.ID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, ok, err := s.locker.Acquire(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("assignment lock: %w", err)
	}
	if !ok {
		return nil, ErrAssignmentInProgress
	}
	return release, nil
}
