package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/cart"
	"github.com/Skotchmaster/grocery_web/internal/db"
	"github.com/Skotchmaster/grocery_web/internal/events"
	"github.com/Skotchmaster/grocery_web/internal/session"
)

type fakeBackend struct {
	mu         sync.Mutex
	created    []apiclient.CreateOrderRequest
	initiated  int
	verifyErr  error
	initErr    error
	createErr  error
	verifyArgs []string
	// verifyFn, when set, decides each verify call instead of verifyErr
	verifyFn  func(ctx context.Context) error
	verifyCtx []error
}

func (f *fakeBackend) CreateOrder(_ context.Context, _ apiclient.Credentials, r apiclient.CreateOrderRequest) (*apiclient.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, r)
	return &apiclient.Order{ID: fmt.Sprintf("order-%d", len(f.created)), Total: r.Total, PaymentMethod: r.PaymentMethod}, nil
}

func (f *fakeBackend) InitiateKhalti(_ context.Context, _ apiclient.Credentials, orderID string, _ float64) (*apiclient.PaymentInitiation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return nil, f.initErr
	}
	f.initiated++
	return &apiclient.PaymentInitiation{PaymentURL: "https://pay.example.com/" + orderID, Pidx: "pidx-" + orderID}, nil
}

func (f *fakeBackend) VerifyKhalti(ctx context.Context, _ apiclient.Credentials, pidx, orderID string) error {
	f.mu.Lock()
	f.verifyArgs = append(f.verifyArgs, pidx, orderID)
	fn, err := f.verifyFn, f.verifyErr
	f.mu.Unlock()
	if fn != nil {
		err = fn(ctx)
	}
	f.mu.Lock()
	f.verifyCtx = append(f.verifyCtx, ctx.Err())
	f.mu.Unlock()
	return err
}

func (f *fakeBackend) verifyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.verifyArgs) / 2
}

type fakeCart struct {
	mu      sync.Mutex
	items   []apiclient.CartItem
	cleared int
}

func (f *fakeCart) snapshot() cart.Cart {
	c := cart.Cart{Items: append([]apiclient.CartItem{}, f.items...), Count: len(f.items)}
	for _, it := range f.items {
		c.Total += it.Subtotal()
	}
	return c
}

func (f *fakeCart) Fetch(context.Context, apiclient.Credentials) (cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot(), nil
}

func (f *fakeCart) Clear(context.Context, apiclient.Credentials) (cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	f.cleared++
	return f.snapshot(), nil
}

type recorder struct {
	mu    sync.Mutex
	types []string
}

func (r *recorder) Publish(_ context.Context, _, _ string, ev any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, ev.(events.Event).Type)
	return nil
}

func (r *recorder) Close() error { return nil }

// stalled never reaches a broker; it waits out the caller's deadline.
type stalled struct{}

func (stalled) Publish(ctx context.Context, _, _ string, _ any) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalled) Close() error { return nil }

type fixture struct {
	svc    *Service
	api    *fakeBackend
	cart   *fakeCart
	events *recorder
	store  session.Store
	cred   apiclient.Credentials
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.Open(context.Background(), db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	repo, err := NewGormRepo(gdb)
	require.NoError(t, err)

	f := &fixture{
		api: &fakeBackend{},
		cart: &fakeCart{items: []apiclient.CartItem{
			{Product: apiclient.Product{ID: "p1", Price: 120}, Quantity: 2},
			{Product: apiclient.Product{ID: "p2", Price: 60}, Quantity: 1},
		}},
		events: &recorder{},
		store:  session.NewMemoryStore(),
		cred:   apiclient.Credentials{Role: apiclient.RoleUser, Token: "tok", DeviceID: "dev-1"},
	}
	f.svc = NewService(f.api, f.cart, repo, f.store, f.events, events.NewTopics("test"), FeeRule{FreeCity: "kathmandu", Fee: 100}, nil)
	return f
}

func validRequest(method string) Request {
	return Request{
		Shipping: ShippingInfo{FullName: "Asha", Phone: "9800000000", Address: "Thamel"},
		Location: "kathmandu",
		Method:   method,
	}
}

func TestFeeRule(t *testing.T) {
	t.Parallel()

	f := FeeRule{FreeCity: "kathmandu", Fee: 100}
	assert.Zero(t, f.For("Kathmandu"))
	assert.Zero(t, f.For(" kathmandu "))
	assert.InDelta(t, 100, f.For("pokhara"), 0.001)
}

func TestSubmit_COD(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Submit(ctx, f.cred, validRequest(MethodCOD))
	require.NoError(t, err)

	assert.Equal(t, StateConfirmed, out.State)
	assert.Equal(t, OrdersPath, out.Redirect)
	require.NotNil(t, out.Order)
	assert.Equal(t, apiclient.OrderPending, out.Order.Status)
	assert.Equal(t, 1, f.cart.cleared)

	require.Len(t, f.api.created, 1)
	assert.InDelta(t, 300, f.api.created[0].Total, 0.001)
	assert.Equal(t, MethodCOD, f.api.created[0].PaymentMethod)
	assert.Len(t, f.api.created[0].Items, 2)

	assert.Equal(t, []string{events.TypeOrderPlaced}, f.events.types)
	assert.Equal(t, "Asha", f.svc.ShippingInfo(ctx, f.cred.DeviceID).FullName)
}

func TestSubmit_DeliveryFeeOutsideFreeCity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := validRequest(MethodCOD)
	req.Location = "pokhara"
	_, err := f.svc.Submit(context.Background(), f.cred, req)
	require.NoError(t, err)

	require.Len(t, f.api.created, 1)
	assert.InDelta(t, 400, f.api.created[0].Total, 0.001)
	assert.Equal(t, "pokhara", f.api.created[0].City)
}

func TestSubmit_SameKeyCreatesOneOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	req := validRequest(MethodCOD)
	req.IdempotencyKey = "key-1"

	first, err := f.svc.Submit(ctx, f.cred, req)
	require.NoError(t, err)

	second, err := f.svc.Submit(ctx, f.cred, req)
	require.NoError(t, err)

	assert.Len(t, f.api.created, 1)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.AttemptID, second.AttemptID)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, OrdersPath, second.Redirect)
}

func TestSubmit_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mut  func(*Request)
	}{
		{name: "missing name", mut: func(r *Request) { r.Shipping.FullName = " " }},
		{name: "missing phone", mut: func(r *Request) { r.Shipping.Phone = "" }},
		{name: "missing address", mut: func(r *Request) { r.Shipping.Address = "" }},
		{name: "unknown method", mut: func(r *Request) { r.Method = "card" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			req := validRequest(MethodCOD)
			tt.mut(&req)

			_, err := f.svc.Submit(context.Background(), f.cred, req)
			require.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, f.api.created)
		})
	}
}

func TestSubmit_EmptyCart(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.cart.items = nil

	_, err := f.svc.Submit(context.Background(), f.cred, validRequest(MethodCOD))
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, f.api.created)
}

func TestSubmit_CreateOrderFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.api.createErr = &apiclient.APIError{Status: 400, Message: "out of stock"}

	req := validRequest(MethodCOD)
	req.IdempotencyKey = "key-fail"
	_, err := f.svc.Submit(context.Background(), f.cred, req)
	require.Error(t, err)
	assert.Zero(t, f.cart.cleared)

	a, err := f.svc.Repo.ByKey(context.Background(), f.cred.DeviceID, "key-fail")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, a.State)
	assert.Contains(t, a.FailureReason, "out of stock")
}

func TestKhalti_VerifySuccess(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Submit(ctx, f.cred, validRequest(MethodKhalti))
	require.NoError(t, err)
	assert.Equal(t, StateInitiated, out.State)
	assert.Equal(t, "https://pay.example.com/"+out.OrderID, out.Redirect)
	assert.Zero(t, f.cart.cleared, "cart stays until payment is verified")

	done, err := f.svc.Verify(ctx, f.cred, "pidx-"+out.OrderID, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, done.State)
	assert.Equal(t, OrdersPath, done.Redirect)
	assert.Equal(t, 1, f.cart.cleared)
	assert.Equal(t, []string{events.TypeOrderPlaced, events.TypePaymentConfirmed}, f.events.types)

	again, err := f.svc.Verify(ctx, f.cred, "pidx-"+out.OrderID, out.OrderID)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Len(t, f.api.verifyArgs, 2, "confirmed payments are not verified twice")
}

func TestKhalti_VerifyFailureKeepsCart(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Submit(ctx, f.cred, validRequest(MethodKhalti))
	require.NoError(t, err)

	f.api.verifyErr = &apiclient.APIError{Status: 400, Message: "payment not completed"}
	res, err := f.svc.Verify(ctx, f.cred, "pidx", out.OrderID)
	require.Error(t, err)

	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, res.Redirect)
	assert.NotEmpty(t, res.Message)
	assert.Zero(t, f.cart.cleared)
	assert.Len(t, f.cart.items, 2)

	a, err := f.svc.Repo.ByOrderID(ctx, f.cred.DeviceID, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, a.State)
	assert.Equal(t, "payment not completed", a.FailureReason)
	assert.Equal(t, "payment not completed", res.Message)
	assert.Contains(t, f.events.types, events.TypePaymentFailed)
}

func TestKhalti_InitiateFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.api.initErr = errors.New("gateway down")

	req := validRequest(MethodKhalti)
	req.IdempotencyKey = "key-init"
	_, err := f.svc.Submit(context.Background(), f.cred, req)
	require.Error(t, err)

	a, err := f.svc.Repo.ByKey(context.Background(), f.cred.DeviceID, "key-init")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, a.State)
	assert.NotEmpty(t, a.OrderID)
}

func TestVerify_MissingParams(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out, err := f.svc.Verify(context.Background(), f.cred, "", "order-1")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Missing payment information", out.Message)
	assert.Empty(t, f.api.verifyArgs)
}

func TestVerify_UnknownOrderFallsBackToBackend(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out, err := f.svc.Verify(context.Background(), f.cred, "pidx-x", "order-x")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, out.State)
	assert.Equal(t, []string{"pidx-x", "order-x"}, f.api.verifyArgs)
	assert.Equal(t, 1, f.cart.cleared)
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	assert.True(t, CanTransition(StateCreated, StateConfirmed))
	assert.True(t, CanTransition(StateInitiated, StatePendingVerification))
	assert.False(t, CanTransition(StateConfirmed, StateFailed))
	assert.False(t, CanTransition(StateFailed, StateConfirmed))
	assert.False(t, CanTransition(StateCreated, StatePendingVerification))
	assert.True(t, CanTransition(StateFailed, StatePendingVerification))
}

func TestRepo_TransitionIsCompareAndSet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a := &Attempt{ID: "a-1", DeviceID: "d", IdempotencyKey: "k", Method: MethodKhalti, State: StateCreated, Amount: 10}
	require.NoError(t, f.svc.Repo.Create(ctx, a))

	require.NoError(t, f.svc.Repo.Transition(ctx, "a-1", StateCreated, StateInitiated, nil))
	err := f.svc.Repo.Transition(ctx, "a-1", StateCreated, StateFailed, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)

	list, err := f.svc.Repo.ListByDevice(ctx, "d", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, StateInitiated, list[0].State)
}

func TestSubmit_MissingLocationChargesWhatWasQuoted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Quote(ctx, f.cred, "")
	require.NoError(t, err)

	req := validRequest(MethodCOD)
	req.Location = ""
	req.Shipping.City = "Lalitpur"
	out, err := f.svc.Submit(ctx, f.cred, req)
	require.NoError(t, err)

	require.Len(t, f.api.created, 1)
	assert.InDelta(t, q.Total, f.api.created[0].Total, 0.001)
	assert.InDelta(t, q.Total, out.Order.Total, 0.001)
	assert.Equal(t, "Lalitpur", f.api.created[0].City)
}

func TestVerify_RetriesAfterFailedVerification(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Submit(ctx, f.cred, validRequest(MethodKhalti))
	require.NoError(t, err)

	f.api.verifyErr = fmt.Errorf("do request: %w", apiclient.ErrNetwork)
	first, err := f.svc.Verify(ctx, f.cred, "pidx-"+out.OrderID, out.OrderID)
	require.ErrorIs(t, err, apiclient.ErrNetwork)
	assert.Equal(t, StateFailed, first.State)
	assert.Equal(t, "Payment verification failed", first.Message)

	f.api.verifyErr = nil
	second, err := f.svc.Verify(ctx, f.cred, "pidx-"+out.OrderID, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, second.State)
	assert.False(t, second.Replayed)
	assert.Equal(t, OrdersPath, second.Redirect)
	assert.Equal(t, 2, f.api.verifyCalls())
	assert.Equal(t, 1, f.cart.cleared)

	a, err := f.svc.Repo.ByOrderID(ctx, f.cred.DeviceID, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, a.State)
	assert.Empty(t, a.FailureReason)
}

func TestVerify_FailedBeforePaymentPageIsNotRetried(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.api.initErr = errors.New("gateway down")

	req := validRequest(MethodKhalti)
	req.IdempotencyKey = "key-init"
	_, err := f.svc.Submit(ctx, f.cred, req)
	require.Error(t, err)
	a, err := f.svc.Repo.ByKey(ctx, f.cred.DeviceID, "key-init")
	require.NoError(t, err)

	out, err := f.svc.Verify(ctx, f.cred, "pidx", a.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, out.State)
	assert.True(t, out.Replayed)
	assert.Empty(t, out.Redirect)
	assert.Equal(t, "Failed to start payment", out.Message)
	assert.Zero(t, f.api.verifyCalls())
}

func TestVerify_OutlivesCancelledRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out, err := f.svc.Submit(context.Background(), f.cred, validRequest(MethodKhalti))
	require.NoError(t, err)

	reqCtx, cancel := context.WithCancel(context.Background())
	f.api.verifyFn = func(context.Context) error {
		cancel()
		return fmt.Errorf("do request: %w", apiclient.ErrNetwork)
	}
	_, err = f.svc.Verify(reqCtx, f.cred, "pidx-"+out.OrderID, out.OrderID)
	require.Error(t, err)

	a, err := f.svc.Repo.ByOrderID(context.Background(), f.cred.DeviceID, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, a.State, "failure is recorded after the request is gone")

	f.api.verifyFn = nil
	done, err := f.svc.Verify(context.Background(), f.cred, "pidx-"+out.OrderID, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, done.State)
	assert.Equal(t, 2, f.api.verifyCalls())
	assert.Equal(t, []error{nil, nil}, f.api.verifyCtx)
}

func TestVerify_ReclaimsStalePendingVerification(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Submit(ctx, f.cred, validRequest(MethodKhalti))
	require.NoError(t, err)
	require.NoError(t, f.svc.Repo.Transition(ctx, out.AttemptID, StateInitiated, StatePendingVerification, nil))

	_, err = f.svc.Verify(ctx, f.cred, "pidx-"+out.OrderID, out.OrderID)
	require.ErrorIs(t, err, ErrInProgress)
	assert.Zero(t, f.api.verifyCalls())

	f.svc.now = func() time.Time { return time.Now().Add(staleVerification + time.Minute) }
	done, err := f.svc.Verify(ctx, f.cred, "pidx-"+out.OrderID, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, done.State)
	assert.Equal(t, 1, f.api.verifyCalls())
	assert.Equal(t, 1, f.cart.cleared)
}

func TestAttempts_ScopedToDevice(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	other := apiclient.Credentials{Role: apiclient.RoleUser, Token: "tok-2", DeviceID: "dev-2"}

	req := validRequest(MethodKhalti)
	req.IdempotencyKey = "shared-key"
	mine, err := f.svc.Submit(ctx, f.cred, req)
	require.NoError(t, err)

	theirs, err := f.svc.Submit(ctx, other, req)
	require.NoError(t, err)
	assert.False(t, theirs.Replayed)
	assert.NotEqual(t, mine.AttemptID, theirs.AttemptID)
	assert.NotEqual(t, mine.Redirect, theirs.Redirect)
	assert.Len(t, f.api.created, 2)

	f.api.verifyErr = &apiclient.APIError{Status: 400, Message: "payment not completed"}
	res, err := f.svc.Verify(ctx, other, "pidx", mine.OrderID)
	require.Error(t, err)
	assert.Empty(t, res.AttemptID)

	a, err := f.svc.Repo.ByOrderID(ctx, f.cred.DeviceID, mine.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StateInitiated, a.State)

	_, err = f.svc.Repo.ByOrderID(ctx, other.DeviceID, mine.OrderID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFailureReason_HidesBackendDetail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "backend message", err: &apiclient.APIError{Status: 400, Path: "/payment/khalti/verify", Message: "payment expired"}, want: "payment expired"},
		{name: "no message", err: &apiclient.APIError{Status: 502, Path: "/payment/khalti/verify"}, want: "Payment verification failed"},
		{name: "transport", err: fmt.Errorf("do request /payment/khalti/verify: %w", apiclient.ErrNetwork), want: "Payment verification failed"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			ctx := context.Background()

			out, err := f.svc.Submit(ctx, f.cred, validRequest(MethodKhalti))
			require.NoError(t, err)

			f.api.verifyErr = tt.err
			res, err := f.svc.Verify(ctx, f.cred, "pidx", out.OrderID)
			require.Error(t, err)
			assert.Equal(t, tt.want, res.Message)

			a, err := f.svc.Repo.ByOrderID(ctx, f.cred.DeviceID, out.OrderID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.FailureReason)
			assert.NotContains(t, a.FailureReason, "/payment")
		})
	}
}

func TestPublish_StalledBrokerDoesNotHoldCheckout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.svc.Events = stalled{}
	f.svc.PublishTimeout = 20 * time.Millisecond

	start := time.Now()
	out, err := f.svc.Submit(context.Background(), f.cred, validRequest(MethodCOD))
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, out.State)
	assert.Less(t, time.Since(start), time.Second)
}
