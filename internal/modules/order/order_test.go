// README: Order service tests (transition table, checkout, pack/unpack/deliver/scan, concurrency).
package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfil/internal/config"
	"fulfil/internal/modules/pricing"
	"fulfil/internal/modules/voucher"
	"fulfil/internal/types"
)

// TestCanTransition verifies the state machine transition table without a database.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusProcessing, StatusShipped, true},
		{StatusShipped, StatusProcessing, true},
		{StatusShipped, StatusDelivered, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusCancelled, true},
		// skipping states
		{StatusProcessing, StatusDelivered, false},
		// self loops
		{StatusProcessing, StatusProcessing, false},
		{StatusShipped, StatusShipped, false},
		// terminal states have no outgoing transitions
		{StatusDelivered, StatusShipped, false},
		{StatusDelivered, StatusProcessing, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusCancelled, StatusShipped, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseBarcode(t *testing.T) {
	cases := []struct {
		in   string
		want types.ID
		ok   bool
	}{
		{"BTAOL000000042", 42, true},
		{"BTAOL123456789", 123456789, true},
		{"BTAOL00000042", 0, false},
		{"BTAOL0000000042", 0, false},
		{"btaol000000042", 0, false},
		{"XBTAOL000000042", 0, false},
		{"BTAOL000000000", 0, false},
		{"BTAOL00000004a", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseBarcode(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Errorf("ParseBarcode(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidBarcode) {
			t.Errorf("ParseBarcode(%q) err = %v, want ErrInvalidBarcode", tc.in, err)
		}
	}
	if got, err := FormatBarcode(42); err != nil || got != "BTAOL000000042" {
		t.Errorf("FormatBarcode(42) = %s, %v", got, err)
	}
}

func TestFormatBarcodeNineDigitCeiling(t *testing.T) {
	code, err := FormatBarcode(MaxBarcodeID)
	require.NoError(t, err)
	id, err := ParseBarcode(code)
	require.NoError(t, err)
	assert.Equal(t, MaxBarcodeID, id)

	for _, id := range []types.ID{MaxBarcodeID + 1, 0} {
		_, err := FormatBarcode(id)
		assert.ErrorIs(t, err, ErrInvalidBarcode, "id %d", id)
	}
}

func TestPackUnpackDeliverHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.seedOrder(StatusProcessing, nil)

	_, err := f.svc.Pack(ctx, StatusCommand{OrderID: id, Actor: staffActor})
	require.NoError(t, err)
	f.assertStatus(id, StatusShipped)

	_, err = f.svc.Unpack(ctx, StatusCommand{OrderID: id, Actor: staffActor})
	require.NoError(t, err)
	f.assertStatus(id, StatusProcessing)

	_, err = f.svc.Pack(ctx, StatusCommand{OrderID: id, Actor: staffActor})
	require.NoError(t, err)
	o, err := f.svc.Deliver(ctx, StatusCommand{OrderID: id, Actor: agentActor})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.Equal(t, 4, o.StatusVersion)

	events := f.repo.eventsFor(id)
	require.Len(t, events, 4)
	assert.Equal(t, StatusShipped, events[3].FromStatus)
	assert.Equal(t, StatusDelivered, events[3].ToStatus)
	assert.Len(t, f.pub.messages(), 4)
}

func TestPackRequiresProcessing(t *testing.T) {
	f := newFixture(t)
	for _, st := range []Status{StatusShipped, StatusDelivered, StatusCancelled} {
		id := f.seedOrder(st, nil)
		_, err := f.svc.Pack(context.Background(), StatusCommand{OrderID: id, Actor: staffActor})
		assert.ErrorIs(t, err, ErrInvalidState, "pack from %s", st)
		f.assertStatus(id, st)
	}
}

func TestUnpackRequiresShipped(t *testing.T) {
	f := newFixture(t)
	for _, st := range []Status{StatusProcessing, StatusDelivered, StatusCancelled} {
		id := f.seedOrder(st, nil)
		_, err := f.svc.Unpack(context.Background(), StatusCommand{OrderID: id, Actor: staffActor})
		assert.ErrorIs(t, err, ErrInvalidState, "unpack from %s", st)
		f.assertStatus(id, st)
	}
}

func TestDeliverTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	id := f.seedOrder(StatusDelivered, nil)
	_, err := f.svc.Deliver(context.Background(), StatusCommand{OrderID: id, Actor: agentActor})
	assert.ErrorIs(t, err, ErrAlreadyDelivered)
	assert.Empty(t, f.repo.eventsFor(id))
}

func TestScanBarcode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.nextID = 41
	id := f.seedOrder(StatusShipped, nil)
	require.Equal(t, types.ID(42), id)

	o, err := f.svc.ScanBarcode(ctx, ScanCommand{Barcode: "BTAOL000000042", Actor: agentActor})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)

	_, err = f.svc.ScanBarcode(ctx, ScanCommand{Barcode: "BTAOL000000042", Actor: agentActor})
	assert.ErrorIs(t, err, ErrAlreadyDelivered)
	assert.Len(t, f.repo.eventsFor(id), 1, "second scan must not double-process")

	_, err = f.svc.ScanBarcode(ctx, ScanCommand{Barcode: "BTAOL42", Actor: agentActor})
	assert.ErrorIs(t, err, ErrInvalidBarcode)

	_, err = f.svc.ScanBarcode(ctx, ScanCommand{Barcode: "BTAOL000000999", Actor: agentActor})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusUsesTransitionTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.seedOrder(StatusProcessing, nil)
	_, err := f.svc.UpdateStatus(ctx, UpdateStatusCommand{OrderID: id, Target: StatusDelivered, Actor: staffActor})
	assert.ErrorIs(t, err, ErrInvalidState)
	f.assertStatus(id, StatusProcessing)

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusCommand{OrderID: id, Target: "lost", Actor: staffActor})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusCommand{OrderID: id, Target: StatusShipped, Actor: staffActor})
	require.NoError(t, err)
	f.assertStatus(id, StatusShipped)
}

func TestCancelReleasesWorkload(t *testing.T) {
	f := newFixture(t)
	staff := types.ID(7)
	id := f.seedOrder(StatusProcessing, &staff)

	_, err := f.svc.Cancel(context.Background(), StatusCommand{OrderID: id, Actor: customerActor})
	require.NoError(t, err)
	f.assertStatus(id, StatusCancelled)
	assert.Equal(t, []types.ID{id}, f.assigner.released)

	_, err = f.svc.Cancel(context.Background(), StatusCommand{OrderID: id, Actor: customerActor})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDeleteReleasesLiveOrder(t *testing.T) {
	f := newFixture(t)
	staff := types.ID(7)
	live := f.seedOrder(StatusShipped, &staff)
	done := f.seedOrder(StatusDelivered, &staff)

	require.NoError(t, f.svc.Delete(context.Background(), live))
	require.NoError(t, f.svc.Delete(context.Background(), done))
	assert.Equal(t, []types.ID{live}, f.assigner.released)

	_, err := f.svc.Get(context.Background(), live)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), live), ErrNotFound)
}

func TestCheckoutCreatesProcessingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := types.ID(3)
	f.repo.carts[1] = []CartLine{
		{ProductID: 10, Quantity: 2, Size: decimal.RequireFromString("9.5"), UnitPrice: types.MustMoney("120.00")},
		{ProductID: 11, Quantity: 1, Size: decimal.NewFromInt(7), UnitPrice: types.MustMoney("60.00")},
	}
	f.vouchers.pct["TENOFF"] = decimal.NewFromInt(10)

	o, err := f.svc.Checkout(ctx, CheckoutCommand{
		CustomerID:        1,
		ShippingAddressID: &addr,
		ContactName:       "Tan Ah Kow",
		ContactEmail:      "tan@example.com",
		VoucherCode:       "TENOFF",
		PaymentReference:  "pay_123",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusProcessing, o.Status)
	assert.True(t, o.Subtotal.Equal(types.MustMoney("300")), "subtotal %s", o.Subtotal)
	assert.True(t, o.Discount.Equal(types.MustMoney("30")), "discount %s", o.Discount)
	assert.True(t, o.ShippingFee.Equal(types.MustMoney("5")), "fee %s", o.ShippingFee)
	assert.True(t, o.Total.Equal(types.MustMoney("275")), "total %s", o.Total)
	require.Len(t, o.Items, 2)
	assert.True(t, o.Items[0].Price.Equal(types.MustMoney("120")))
	assert.Empty(t, f.repo.carts[1], "cart must be cleared")
	assert.Equal(t, []types.ID{o.ID}, f.assigner.assigned)
	require.NotNil(t, o.FulfilmentStaffID, "assigned order should be reloaded")

	events := f.repo.eventsFor(o.ID)
	require.Len(t, events, 1)
	assert.Equal(t, StatusNone, events[0].FromStatus)
	assert.Equal(t, StatusProcessing, events[0].ToStatus)
}

func TestCheckoutAssignmentFailureLeavesOrderUnassigned(t *testing.T) {
	f := newFixture(t)
	f.assigner.fail = true
	f.repo.carts[1] = []CartLine{{ProductID: 10, Quantity: 1, Size: decimal.NewFromInt(8), UnitPrice: types.MustMoney("50")}}

	o, err := f.svc.Checkout(context.Background(), CheckoutCommand{CustomerID: 1, ContactName: "A", ContactEmail: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, o.Status)
	assert.Nil(t, o.FulfilmentStaffID)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, CheckoutCommand{CustomerID: 1, ContactName: "A", ContactEmail: "a@b.c"})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.svc.Checkout(ctx, CheckoutCommand{CustomerID: 1, ContactEmail: "a@b.c"})
	assert.ErrorIs(t, err, ErrBadRequest)

	f.repo.carts[2] = []CartLine{{ProductID: 10, Quantity: 1, Size: decimal.RequireFromString("12.5"), UnitPrice: types.MustMoney("50")}}
	_, err = f.svc.Checkout(ctx, CheckoutCommand{CustomerID: 2, ContactName: "A", ContactEmail: "a@b.c"})
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Len(t, f.repo.carts[2], 1, "cart untouched on rejection")
}

func TestCheckoutReleasesVoucherWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	f.repo.failCreate = errors.New("db down")
	f.repo.carts[1] = []CartLine{{ProductID: 10, Quantity: 1, Size: decimal.NewFromInt(8), UnitPrice: types.MustMoney("50")}}
	f.vouchers.pct["ONCE"] = decimal.NewFromInt(5)

	_, err := f.svc.Checkout(context.Background(), CheckoutCommand{CustomerID: 1, ContactName: "A", ContactEmail: "a@b.c", VoucherCode: "ONCE"})
	require.Error(t, err)
	assert.Equal(t, []string{"ONCE"}, f.vouchers.released)
}

func TestCheckoutUnusableVoucher(t *testing.T) {
	f := newFixture(t)
	f.repo.carts[1] = []CartLine{{ProductID: 10, Quantity: 1, Size: decimal.NewFromInt(8), UnitPrice: types.MustMoney("50")}}

	_, err := f.svc.Checkout(context.Background(), CheckoutCommand{CustomerID: 1, ContactName: "A", ContactEmail: "a@b.c", VoucherCode: "GONE"})
	assert.ErrorIs(t, err, voucher.ErrVoucherUnavailable)
	assert.Len(t, f.repo.carts[1], 1)
}

// TestConcurrentPackSameOrder checks the status_version guard: exactly one pack wins.
func TestConcurrentPackSameOrder(t *testing.T) {
	f := newFixture(t)
	id := f.seedOrder(StatusProcessing, nil)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Pack(context.Background(), StatusCommand{OrderID: id, Actor: staffActor})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidState) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, success)
	assert.Len(t, f.repo.eventsFor(id), 1)
}

// ---------------------------------------------------------------------------
// fixtures
// ---------------------------------------------------------------------------

var (
	staffActor    = Actor{Type: "staff", ID: "uid_staff"}
	agentActor    = Actor{Type: "delivery_agent", ID: "uid_agent"}
	customerActor = Actor{Type: "customer", ID: "uid_customer"}
)

type fixture struct {
	t        *testing.T
	svc      *Service
	repo     *memRepo
	vouchers *fakeVouchers
	assigner *fakeAssigner
	pub      *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pricer, err := pricing.NewService(config.PricingConfig{ShippingFee: "5.00", FreeShippingOver: "0"})
	require.NoError(t, err)
	f := &fixture{
		t:        t,
		repo:     newMemRepo(),
		vouchers: &fakeVouchers{pct: map[string]decimal.Decimal{}},
		pub:      &fakePublisher{},
	}
	f.assigner = &fakeAssigner{repo: f.repo}
	f.svc = NewService(Deps{
		Store:     f.repo,
		Pricing:   pricer,
		Vouchers:  f.vouchers,
		Assigner:  f.assigner,
		Publisher: f.pub,
	})
	return f
}

func (f *fixture) seedOrder(st Status, staff *types.ID) types.ID {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	f.repo.nextID++
	id := types.ID(f.repo.nextID)
	f.repo.orders[id] = &Order{ID: id, CustomerID: 1, Status: st, FulfilmentStaffID: staff}
	return id
}

func (f *fixture) assertStatus(id types.ID, want Status) {
	f.t.Helper()
	o, err := f.svc.Get(context.Background(), id)
	require.NoError(f.t, err)
	require.Equal(f.t, want, o.Status)
}

type memRepo struct {
	mu         sync.Mutex
	nextID     int64
	orders     map[types.ID]*Order
	carts      map[types.ID][]CartLine
	events     []Event
	failCreate error
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[types.ID]*Order{}, carts: map[types.ID][]CartLine{}}
}

func (m *memRepo) CartLines(_ context.Context, customerID types.ID) ([]CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CartLine(nil), m.carts[customerID]...), nil
}

func (m *memRepo) CreateFromCart(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	m.nextID++
	o.ID = types.ID(m.nextID)
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		o.Items[i].ID = types.ID(i + 1)
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	m.orders[o.ID] = &cp
	delete(m.carts, o.CustomerID)
	return nil
}

func (m *memRepo) Get(_ context.Context, id types.ID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	return &cp, nil
}

func (m *memRepo) ListByCustomer(_ context.Context, customerID types.ID) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from || o.StatusVersion != version {
		return false, nil
	}
	o.Status = to
	o.StatusVersion++
	return true, nil
}

func (m *memRepo) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, *e)
	return nil
}

func (m *memRepo) Delete(_ context.Context, id types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return false, nil
	}
	delete(m.orders, id)
	return true, nil
}

func (m *memRepo) eventsFor(id types.ID) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.OrderID == id {
			out = append(out, e)
		}
	}
	return out
}

type fakeVouchers struct {
	mu       sync.Mutex
	pct      map[string]decimal.Decimal
	released []string
}

func (v *fakeVouchers) Redeem(_ context.Context, code string) (*voucher.Voucher, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	pct, ok := v.pct[code]
	if !ok {
		return nil, voucher.ErrVoucherUnavailable
	}
	return &voucher.Voucher{ID: 99, Code: code, DiscountPercentage: pct, IsActive: true, UsageCount: 1, MaxUsage: 10}, nil
}

func (v *fakeVouchers) Release(_ context.Context, code string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.released = append(v.released, code)
	return nil
}

type fakeAssigner struct {
	mu       sync.Mutex
	repo     *memRepo
	fail     bool
	assigned []types.ID
	released []types.ID
}

func (a *fakeAssigner) AssignOrder(_ context.Context, id types.ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return false
	}
	a.assigned = append(a.assigned, id)
	a.repo.mu.Lock()
	staff := types.ID(1)
	a.repo.orders[id].FulfilmentStaffID = &staff
	a.repo.mu.Unlock()
	return true
}

func (a *fakeAssigner) Release(_ context.Context, id types.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released = append(a.released, id)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []any
}

func (p *fakePublisher) Publish(_ context.Context, _ string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, v)
	return nil
}

func (p *fakePublisher) messages() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.msgs...)
}
