package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/cart"
	"github.com/Skotchmaster/grocery_web/internal/events"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/session"
)

var (
	ErrValidation = errors.New("validation")
	ErrEmptyCart  = errors.New("your cart is empty")
	// ErrInProgress means an earlier submission with the same key, or a
	// verification for the same order, has not finished yet.
	ErrInProgress = errors.New("checkout already in progress")
)

const OrdersPath = "/orders"

const (
	// a verification left pending longer than this is assumed abandoned
	staleVerification = 2 * time.Minute
	verifyTimeout     = 30 * time.Second
	publishTimeout    = 500 * time.Millisecond
)

type Backend interface {
	CreateOrder(ctx context.Context, cred apiclient.Credentials, r apiclient.CreateOrderRequest) (*apiclient.Order, error)
	InitiateKhalti(ctx context.Context, cred apiclient.Credentials, orderID string, amount float64) (*apiclient.PaymentInitiation, error)
	VerifyKhalti(ctx context.Context, cred apiclient.Credentials, pidx, orderID string) error
}

type Cart interface {
	Fetch(ctx context.Context, cred apiclient.Credentials) (cart.Cart, error)
	Clear(ctx context.Context, cred apiclient.Credentials) (cart.Cart, error)
}

type FeeRule struct {
	FreeCity string
	Fee      float64
}

func (f FeeRule) For(location string) float64 {
	if strings.EqualFold(strings.TrimSpace(location), f.FreeCity) {
		return 0
	}
	return f.Fee
}

type Request struct {
	Shipping       ShippingInfo
	Location       string
	Method         string
	IdempotencyKey string
}

type Quote struct {
	Cart           cart.Cart    `json:"cart"`
	Location       string       `json:"location"`
	DeliveryFee    float64      `json:"deliveryFee"`
	Total          float64      `json:"total"`
	Shipping       ShippingInfo `json:"shipping"`
	IdempotencyKey string       `json:"idempotencyKey"`
}

type Outcome struct {
	AttemptID string           `json:"attemptId"`
	State     State            `json:"state"`
	Order     *apiclient.Order `json:"order,omitempty"`
	OrderID   string           `json:"orderId,omitempty"`
	Redirect  string           `json:"redirect,omitempty"`
	Message   string           `json:"message,omitempty"`
	Replayed  bool             `json:"replayed,omitempty"`
}

type Service struct {
	API    Backend
	Cart   Cart
	Repo   *GormRepo
	Store  session.Store
	Events events.Publisher
	Topics events.Topics
	Fees   FeeRule
	// PublishTimeout bounds each event publish on the request path.
	PublishTimeout time.Duration
	log            *slog.Logger
	now            func() time.Time
}

func NewService(api Backend, c Cart, repo *GormRepo, store session.Store, pub events.Publisher, topics events.Topics, fees FeeRule, log *slog.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		API: api, Cart: c, Repo: repo, Store: store, Events: pub, Topics: topics, Fees: fees,
		PublishTimeout: publishTimeout,
		log:            log.With("component", "checkout"),
		now:            time.Now,
	}
}

func (s *Service) ShippingInfo(ctx context.Context, deviceID string) ShippingInfo {
	var info ShippingInfo
	raw, ok, err := s.Store.Get(ctx, deviceID, session.KeyShippingInfo)
	if err != nil || !ok {
		return info
	}
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		s.log.Warn("shipping_info_decode_error", "device_id", deviceID, "error", err)
	}
	return info
}

func (s *Service) saveShippingInfo(ctx context.Context, deviceID string, info ShippingInfo) {
	b, err := json.Marshal(info)
	if err == nil {
		err = s.Store.Set(ctx, deviceID, session.KeyShippingInfo, string(b))
	}
	if err != nil {
		s.log.Warn("shipping_info_save_error", "device_id", deviceID, "error", err)
	}
}

func (s *Service) Quote(ctx context.Context, cred apiclient.Credentials, location string) (Quote, error) {
	c, err := s.Cart.Fetch(ctx, cred)
	if err != nil {
		return Quote{}, err
	}
	if location == "" {
		location = s.Fees.FreeCity
	}
	fee := s.Fees.For(location)
	return Quote{
		Cart:           c,
		Location:       location,
		DeliveryFee:    fee,
		Total:          c.Total + fee,
		Shipping:       s.ShippingInfo(ctx, cred.DeviceID),
		IdempotencyKey: uuid.NewString(),
	}, nil
}

func validate(r *Request) error {
	r.Shipping.FullName = strings.TrimSpace(r.Shipping.FullName)
	r.Shipping.Phone = strings.TrimSpace(r.Shipping.Phone)
	r.Shipping.Address = strings.TrimSpace(r.Shipping.Address)
	if r.Shipping.FullName == "" || r.Shipping.Phone == "" || r.Shipping.Address == "" {
		return fmt.Errorf("please fill in required shipping information: %w", ErrValidation)
	}
	r.Method = strings.ToLower(strings.TrimSpace(r.Method))
	if r.Method != MethodCOD && r.Method != MethodKhalti {
		return fmt.Errorf("unknown payment method %q: %w", r.Method, ErrValidation)
	}
	return nil
}

func outcomeOf(a *Attempt) (Outcome, error) {
	o := Outcome{AttemptID: a.ID, State: a.State, OrderID: a.OrderID}
	switch a.State {
	case StateConfirmed:
		o.Redirect = OrdersPath
	case StateInitiated:
		o.Redirect = a.PaymentURL
	case StateFailed:
		o.Message = a.FailureReason
	default:
		return o, ErrInProgress
	}
	return o, nil
}

func (s *Service) replay(ctx context.Context, deviceID, key string) (Outcome, bool, error) {
	a, err := s.Repo.ByKey(ctx, deviceID, key)
	if errors.Is(err, ErrNotFound) {
		return Outcome{}, false, nil
	}
	if err != nil {
		return Outcome{}, false, fmt.Errorf("lookup attempt: %w", err)
	}
	o, err := outcomeOf(a)
	o.Replayed = true
	return o, true, err
}

func (s *Service) publish(ctx context.Context, topic string, ev events.Event) {
	ev.At = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.PublishTimeout)
	defer cancel()
	if err := s.Events.Publish(ctx, topic, ev.OrderID, ev); err != nil {
		s.log.Warn("event_publish_error", "type", ev.Type, "order_id", ev.OrderID, "error", err)
	}
}

// reasonOf is the customer-facing text for err: the backend's own message
// when it sent one, fallback otherwise.
func reasonOf(err error, fallback string) string {
	if apiErr, ok := apiclient.AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func (s *Service) fail(ctx context.Context, a *Attempt, from State, reason string) {
	if err := s.Repo.Transition(ctx, a.ID, from, StateFailed, map[string]any{"failure_reason": reason}); err != nil {
		s.log.Error("attempt_fail_error", "attempt_id", a.ID, "error", err)
	}
	s.publish(ctx, s.Topics.Payments, events.Event{
		Type: events.TypePaymentFailed, OrderID: a.OrderID, DeviceID: a.DeviceID, Method: a.Method, Amount: a.Amount, Reason: reason,
	})
}

// Submit creates the order and starts payment. A request carrying an
// idempotency key that was already used returns the earlier outcome and
// creates nothing.
func (s *Service) Submit(ctx context.Context, cred apiclient.Credentials, r Request) (Outcome, error) {
	l := s.log.With("device_id", cred.DeviceID, "method", r.Method)

	if err := validate(&r); err != nil {
		return Outcome{}, err
	}
	if r.IdempotencyKey == "" {
		r.IdempotencyKey = uuid.NewString()
	}

	if o, found, err := s.replay(ctx, cred.DeviceID, r.IdempotencyKey); found {
		l.Info("checkout replayed", "attempt_id", o.AttemptID, "state", o.State)
		return o, err
	} else if err != nil {
		return Outcome{}, err
	}

	s.saveShippingInfo(ctx, cred.DeviceID, r.Shipping)

	c, err := s.Cart.Fetch(ctx, cred)
	if err != nil {
		return Outcome{}, err
	}
	if c.Empty() {
		return Outcome{}, ErrEmptyCart
	}

	location := r.Location
	if location == "" {
		location = s.Fees.FreeCity
	}
	city := r.Shipping.City
	if city == "" {
		city = location
	}
	fee := s.Fees.For(location)
	total := c.Total + fee

	a := &Attempt{
		ID:             uuid.NewString(),
		DeviceID:       cred.DeviceID,
		IdempotencyKey: r.IdempotencyKey,
		Method:         r.Method,
		State:          StateCreated,
		Amount:         total,
		DeliveryFee:    fee,
	}
	if err := s.Repo.Create(ctx, a); err != nil {
		// a concurrent submit with the same key won the insert
		if o, found, rerr := s.replay(ctx, cred.DeviceID, r.IdempotencyKey); found {
			return o, rerr
		}
		return Outcome{}, fmt.Errorf("create attempt: %w", err)
	}

	items := make([]apiclient.CreateOrderItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, apiclient.CreateOrderItem{Product: it.Product.ID, Quantity: it.Quantity, Price: it.Product.Price})
	}
	order, err := s.API.CreateOrder(ctx, cred, apiclient.CreateOrderRequest{
		Items:           items,
		ShippingAddress: r.Shipping.Address,
		Phone:           r.Shipping.Phone,
		City:            city,
		Total:           total,
		PaymentMethod:   r.Method,
	})
	if err != nil {
		l.Warn("create_order_error", "attempt_id", a.ID, "error", err)
		s.fail(ctx, a, StateCreated, reasonOf(err, "Failed to place order"))
		return Outcome{}, err
	}
	if order.Status == "" {
		order.Status = apiclient.OrderPending
	}
	a.OrderID = order.ID

	s.publish(ctx, s.Topics.Orders, events.Event{
		Type: events.TypeOrderPlaced, OrderID: order.ID, DeviceID: cred.DeviceID, Method: r.Method, Amount: total,
	})

	if r.Method == MethodCOD {
		if err := s.Repo.Transition(ctx, a.ID, StateCreated, StateConfirmed, map[string]any{"order_id": order.ID}); err != nil {
			return Outcome{}, fmt.Errorf("confirm attempt: %w", err)
		}
		if _, err := s.Cart.Clear(ctx, cred); err != nil {
			l.Warn("clear_cart_error", "order_id", order.ID, "error", err)
		}
		l.Info("order placed", "order_id", order.ID, "amount", total)
		return Outcome{AttemptID: a.ID, State: StateConfirmed, Order: order, OrderID: order.ID, Redirect: OrdersPath}, nil
	}

	if err := s.Repo.SetOrderID(ctx, a.ID, order.ID); err != nil {
		return Outcome{}, fmt.Errorf("record order id: %w", err)
	}

	init, err := s.API.InitiateKhalti(ctx, cred, order.ID, total)
	if err != nil {
		l.Warn("initiate_payment_error", "order_id", order.ID, "error", err)
		s.fail(ctx, a, StateCreated, reasonOf(err, "Failed to start payment"))
		return Outcome{}, err
	}
	if err := s.Repo.Transition(ctx, a.ID, StateCreated, StateInitiated, map[string]any{
		"payment_url": init.PaymentURL,
		"pidx":        init.Pidx,
	}); err != nil {
		return Outcome{}, fmt.Errorf("mark initiated: %w", err)
	}

	l.Info("payment initiated", "order_id", order.ID, "amount", total)
	return Outcome{AttemptID: a.ID, State: StateInitiated, Order: order, OrderID: order.ID, Redirect: init.PaymentURL}, nil
}

// Verify handles the payment provider's return. On success the cart is
// cleared and the outcome redirects to the order list; on failure the cart
// is left alone and no redirect is set. A failed verification may be retried
// on a later visit, as may one left pending for longer than
// staleVerification.
func (s *Service) Verify(ctx context.Context, cred apiclient.Credentials, pidx, orderID string) (Outcome, error) {
	l := s.log.With("device_id", cred.DeviceID, "order_id", orderID)

	if pidx == "" || orderID == "" {
		return Outcome{State: StateFailed, Message: "Missing payment information"},
			fmt.Errorf("missing payment information: %w", ErrValidation)
	}

	// the outcome must be recorded even if the browser goes away mid-verify
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), verifyTimeout)
	defer cancel()

	a, err := s.Repo.ByOrderID(ctx, cred.DeviceID, orderID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Outcome{}, fmt.Errorf("lookup attempt: %w", err)
	}
	if a == nil {
		// payment started outside this service or on another device;
		// verify without local state
		if err := s.API.VerifyKhalti(ctx, cred, pidx, orderID); err != nil {
			return Outcome{State: StateFailed, OrderID: orderID, Message: reasonOf(err, "Payment verification failed")}, err
		}
		s.clearCart(ctx, cred, l)
		return Outcome{State: StateConfirmed, OrderID: orderID, Redirect: OrdersPath}, nil
	}

	fields := map[string]any{"pidx": pidx, "failure_reason": ""}
	switch {
	case a.State == StateConfirmed, a.State == StateFailed && !a.Reverifiable():
		o, err := outcomeOf(a)
		o.Replayed = true
		return o, err
	case a.State == StatePendingVerification:
		err = s.Repo.Reclaim(ctx, a.ID, s.now().Add(-staleVerification), fields)
	default:
		err = s.Repo.Transition(ctx, a.ID, a.State, StatePendingVerification, fields)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return Outcome{AttemptID: a.ID, State: a.State, OrderID: orderID}, ErrInProgress
		}
		return Outcome{}, fmt.Errorf("mark pending verification: %w", err)
	}

	if err := s.API.VerifyKhalti(ctx, cred, pidx, orderID); err != nil {
		l.Warn("verify_payment_error", "attempt_id", a.ID, "error", err)
		reason := reasonOf(err, "Payment verification failed")
		s.fail(ctx, a, StatePendingVerification, reason)
		return Outcome{AttemptID: a.ID, State: StateFailed, OrderID: orderID, Message: reason}, err
	}

	if err := s.Repo.Transition(ctx, a.ID, StatePendingVerification, StateConfirmed, nil); err != nil {
		return Outcome{}, fmt.Errorf("confirm attempt: %w", err)
	}
	s.clearCart(ctx, cred, l)
	s.publish(ctx, s.Topics.Payments, events.Event{
		Type: events.TypePaymentConfirmed, OrderID: orderID, DeviceID: cred.DeviceID, Method: a.Method, Amount: a.Amount,
	})

	l.Info("payment confirmed", "attempt_id", a.ID)
	return Outcome{AttemptID: a.ID, State: StateConfirmed, OrderID: orderID, Redirect: OrdersPath}, nil
}

func (s *Service) clearCart(ctx context.Context, cred apiclient.Credentials, l *slog.Logger) {
	if _, err := s.Cart.Clear(ctx, cred); err != nil {
		l.Warn("clear_cart_error", "error", err)
	}
}

func (s *Service) History(ctx context.Context, deviceID string) ([]Attempt, error) {
	return s.Repo.ListByDevice(ctx, deviceID, 20)
}
