// README: Order service implements checkout and every status transition through one choke point.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fulfil/internal/modules/pricing"
	"fulfil/internal/modules/voucher"
	"fulfil/internal/types"
)

type Pricer interface {
	Quote(lines []pricing.Line, discountPct decimal.Decimal) (pricing.Quote, error)
}

type VoucherRedeemer interface {
	Redeem(ctx context.Context, code string) (*voucher.Voucher, error)
	Release(ctx context.Context, code string) error
}

// Assigner picks and releases the fulfilment staff member that owns an order.
type Assigner interface {
	AssignOrder(ctx context.Context, orderID types.ID) bool
	Release(ctx context.Context, orderID types.ID) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, v any) error
}

type Deps struct {
	Store     Repository
	Pricing   Pricer
	Vouchers  VoucherRedeemer
	Assigner  Assigner
	Publisher Publisher
	Logger    *zap.Logger
}

type Service struct {
	store     Repository
	pricing   Pricer
	vouchers  VoucherRedeemer
	assigner  Assigner
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     d.Store,
		pricing:   d.Pricing,
		vouchers:  d.Vouchers,
		assigner:  d.Assigner,
		publisher: d.Publisher,
		logger:    logger,
		now:       time.Now,
	}
}

type CheckoutCommand struct {
	CustomerID        types.ID
	ShippingAddressID *types.ID
	ContactName       string
	ContactPhone      string
	ContactEmail      string
	VoucherCode       string
	PaymentReference  string
}

type StatusCommand struct {
	OrderID types.ID
	Actor   Actor
}

type UpdateStatusCommand struct {
	OrderID types.ID
	Target  Status
	Actor   Actor
}

type ScanCommand struct {
	Barcode string
	Actor   Actor
}

// StateChanged is published for every persisted transition.
type StateChanged struct {
	Type       string    `json:"type"`
	OrderID    types.ID  `json:"orderId"`
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	ActorType  string    `json:"actorType"`
	At         time.Time `json:"at"`
}

var (
	minSize = decimal.NewFromInt(MinShoeSize)
	maxSize = decimal.NewFromInt(MaxShoeSize)
)

func (s *Service) Checkout(ctx context.Context, cmd CheckoutCommand) (*Order, error) {
	if cmd.CustomerID <= 0 {
		return nil, fmt.Errorf("%w: customer is required", ErrBadRequest)
	}
	if strings.TrimSpace(cmd.ContactName) == "" || strings.TrimSpace(cmd.ContactEmail) == "" {
		return nil, fmt.Errorf("%w: contact name and email are required", ErrBadRequest)
	}
	lines, err := s.store.CartLines(ctx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	priced := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		if l.Size.LessThan(minSize) || l.Size.GreaterThan(maxSize) {
			return nil, fmt.Errorf("%w: size %s outside %d..%d", ErrBadRequest, l.Size, MinShoeSize, MaxShoeSize)
		}
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrBadRequest)
		}
		priced = append(priced, pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}

	pct := decimal.Zero
	var voucherID *types.ID
	code := strings.TrimSpace(cmd.VoucherCode)
	if code != "" {
		v, err := s.vouchers.Redeem(ctx, code)
		if err != nil {
			return nil, err
		}
		pct = v.DiscountPercentage
		voucherID = types.IDPtr(v.ID)
	}

	quote, err := s.pricing.Quote(priced, pct)
	if err != nil {
		s.releaseVoucher(ctx, code)
		return nil, err
	}

	o := &Order{
		CustomerID:        cmd.CustomerID,
		Status:            StatusProcessing,
		Subtotal:          quote.Subtotal,
		Discount:          quote.Discount,
		ShippingFee:       quote.ShippingFee,
		Total:             quote.Total,
		ShippingAddressID: cmd.ShippingAddressID,
		ContactName:       strings.TrimSpace(cmd.ContactName),
		ContactPhone:      strings.TrimSpace(cmd.ContactPhone),
		ContactEmail:      strings.TrimSpace(cmd.ContactEmail),
		VoucherID:         voucherID,
		PaymentReference:  cmd.PaymentReference,
		Items:             make([]Item, 0, len(lines)),
	}
	for _, l := range lines {
		o.Items = append(o.Items, Item{
			ProductID: l.ProductID,
			Price:     l.UnitPrice,
			Quantity:  l.Quantity,
			Size:      l.Size,
		})
	}
	if err := s.store.CreateFromCart(ctx, o); err != nil {
		s.releaseVoucher(ctx, code)
		return nil, err
	}

	customer := cmd.CustomerID.String()
	s.record(ctx, o.ID, StatusNone, StatusProcessing, Actor{Type: "customer", ID: customer})

	if s.assigner != nil && s.assigner.AssignOrder(ctx, o.ID) {
		if fresh, err := s.store.Get(ctx, o.ID); err == nil {
			o = fresh
		}
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID types.ID) ([]*Order, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

// Pack moves a processing order to shipped.
func (s *Service) Pack(ctx context.Context, cmd StatusCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, StatusShipped, cmd.Actor, nil)
}

// Unpack returns a shipped order to processing.
func (s *Service) Unpack(ctx context.Context, cmd StatusCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, StatusProcessing, cmd.Actor, nil)
}

func (s *Service) Deliver(ctx context.Context, cmd StatusCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, StatusDelivered, cmd.Actor, func(o *Order) error {
		if o.Status == StatusDelivered {
			return ErrAlreadyDelivered
		}
		return nil
	})
}

func (s *Service) ScanBarcode(ctx context.Context, cmd ScanCommand) (*Order, error) {
	id, err := ParseBarcode(strings.TrimSpace(cmd.Barcode))
	if err != nil {
		return nil, err
	}
	return s.Deliver(ctx, StatusCommand{OrderID: id, Actor: cmd.Actor})
}

func (s *Service) Cancel(ctx context.Context, cmd StatusCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, StatusCancelled, cmd.Actor, nil)
}

// UpdateStatus is the generic entry point; it obeys the same transition table.
func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*Order, error) {
	if !cmd.Target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrBadRequest, cmd.Target)
	}
	if cmd.Target == StatusDelivered {
		return s.Deliver(ctx, StatusCommand{OrderID: cmd.OrderID, Actor: cmd.Actor})
	}
	return s.transition(ctx, cmd.OrderID, cmd.Target, cmd.Actor, nil)
}

// MarkDelivered is used by delivery tracking once the parcel is handed over.
func (s *Service) MarkDelivered(ctx context.Context, id types.ID) error {
	_, err := s.Deliver(ctx, StatusCommand{OrderID: id, Actor: SystemActor})
	return err
}

// Delete hard-deletes the order and its items. Workload held by a live order is released first.
func (s *Service) Delete(ctx context.Context, id types.ID) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !o.Status.Terminal() && o.FulfilmentStaffID != nil {
		s.releaseWorkload(ctx, o.ID)
	}
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) transition(ctx context.Context, id types.ID, to Status, actor Actor, guard func(*Order) error) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(o); err != nil {
			return nil, err
		}
	}
	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, o.Status, to)
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, to, o.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	from := o.Status
	o.Status = to
	o.StatusVersion++
	s.record(ctx, o.ID, from, to, actor)

	if to == StatusCancelled && o.FulfilmentStaffID != nil {
		s.releaseWorkload(ctx, o.ID)
	}
	return o, nil
}

func (s *Service) record(ctx context.Context, id types.ID, from, to Status, actor Actor) {
	now := s.now()
	e := &Event{
		OrderID:    id,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actor.Type,
		CreatedAt:  now,
	}
	if actor.ID != "" {
		actorID := actor.ID
		e.ActorID = &actorID
	}
	if err := s.store.AppendEvent(ctx, e); err != nil {
		s.logger.Warn("append order event failed", zap.Int64("order_id", int64(id)), zap.Error(err))
	}
	if s.publisher == nil {
		return
	}
	msg := StateChanged{
		Type:       "order.status_changed",
		OrderID:    id,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actor.Type,
		At:         now,
	}
	if err := s.publisher.Publish(ctx, "order:"+id.String(), msg); err != nil {
		s.logger.Warn("publish order event failed", zap.Int64("order_id", int64(id)), zap.Error(err))
	}
}

func (s *Service) releaseVoucher(ctx context.Context, code string) {
	if code == "" {
		return
	}
	if err := s.vouchers.Release(ctx, code); err != nil {
		s.logger.Error("voucher release failed", zap.String("code", code), zap.Error(err))
	}
}

func (s *Service) releaseWorkload(ctx context.Context, id types.ID) {
	if s.assigner == nil {
		return
	}
	if err := s.assigner.Release(ctx, id); err != nil {
		s.logger.Error("release staff workload failed", zap.Int64("order_id", int64(id)), zap.Error(err))
	}
}
