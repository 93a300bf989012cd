// Package checkout turns a cart into a submitted order.
//
// A Checkout moves Idle -> Submitting -> Succeeded|Failed and can start again
// from either terminal state. Begin and Settle are split so the owner can run
// the network call off its own goroutine; Run chains them for callers that can
// block. Like cart.Engine, a Checkout belongs to one goroutine.
package checkout

import (
	"context"
	"encoding/json"

	"github.com/example/citizenportal/pkg/cart"
	"github.com/example/citizenportal/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Submitter sends an order to the order service. A structured refusal comes
// back as an ack with Success false; err is reserved for transport failures.
type Submitter interface {
	SubmitOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderAck, error)
}

// Store writes the empty cart and the receipt in one atomic step.
type Store interface {
	CommitCheckout(ctx context.Context, clientID string, emptyCart []byte, receipt models.Receipt) error
}

// Result is the observable outcome of one checkout attempt.
type Result struct {
	State   State           `json:"state"`
	Receipt *models.Receipt `json:"receipt,omitempty"`
	Err     error           `json:"-"`
	Message string          `json:"message,omitempty"`
}

type Checkout struct {
	clientID string
	cart     *cart.Engine
	store    Store
	logger   *zap.Logger
	newKey   func() string

	state    State
	inFlight bool
	pending  *models.OrderRequest
	receipt  *models.Receipt
	lastErr  error
}

func New(clientID string, engine *cart.Engine, store Store, logger *zap.Logger) *Checkout {
	return &Checkout{
		clientID: clientID,
		cart:     engine,
		store:    store,
		logger:   logger.With(zap.String("client_id", clientID)),
		newKey:   uuid.NewString,
		state:    StateIdle,
	}
}

// Begin validates the cart, sets the in-flight guard and returns the order to
// submit. It never performs I/O.
func (c *Checkout) Begin(userID string) (*models.OrderRequest, error) {
	if c.inFlight {
		return nil, ErrCheckoutInProgress
	}
	if c.cart.Len() == 0 {
		c.state = StateFailed
		c.lastErr = ErrEmptyCart
		return nil, ErrEmptyCart
	}

	if userID == "" {
		userID = models.GuestUserID
	}

	snap := c.cart.Snapshot()
	items := make([]models.OrderItem, len(snap.Items))
	for i, it := range snap.Items {
		items[i] = models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		}
	}

	req := &models.OrderRequest{
		UserID:         userID,
		Items:          items,
		TotalAmount:    snap.Total,
		PaymentMethod:  models.PaymentMethodCOD,
		IdempotencyKey: c.newKey(),
	}

	c.inFlight = true
	c.state = StateSubmitting
	c.pending = req
	c.lastErr = nil

	c.logger.Info("Submitting order",
		zap.String("user_id", userID),
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.Int("item_count", len(items)),
		zap.Float64("total_amount", snap.Total))

	return req, nil
}

// Settle applies the submission outcome. On success the cart is cleared and
// the receipt stored in one commit before the state becomes Succeeded; on any
// failure the cart is left as it was.
func (c *Checkout) Settle(ctx context.Context, ack *models.OrderAck, err error) Result {
	if !c.inFlight {
		return Result{State: c.state, Err: ErrNotSubmitting}
	}
	req := c.pending
	c.inFlight = false
	c.pending = nil

	switch {
	case err != nil:
		return c.fail(&TransportError{Err: err})
	case ack == nil:
		return c.fail(&TransportError{Err: errEmptyAck})
	case !ack.Success:
		return c.fail(&OrderRejectedError{Reason: ack.Error})
	}

	receipt := models.Receipt{
		OrderID:       ack.OrderID,
		TotalAmount:   ack.TotalAmount,
		PaymentStatus: models.OrderStatusCompleted,
	}
	commitErr := c.cart.ClearAtomically(ctx, func(ctx context.Context, emptyCart []byte) error {
		return c.store.CommitCheckout(ctx, c.clientID, emptyCart, receipt)
	})
	if commitErr != nil {
		c.logger.Error("Order placed but local state was not persisted",
			zap.String("order_id", ack.OrderID), zap.Error(commitErr))
	}

	c.state = StateSucceeded
	c.receipt = &receipt

	c.logger.Info("Order placed",
		zap.String("order_id", ack.OrderID),
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.Float64("total_amount", ack.TotalAmount))

	return Result{State: StateSucceeded, Receipt: &receipt}
}

// Run performs a whole checkout on the calling goroutine.
func (c *Checkout) Run(ctx context.Context, userID string, submitter Submitter) Result {
	req, err := c.Begin(userID)
	if err != nil {
		return Result{State: c.state, Err: err, Message: UserMessage(err)}
	}
	ack, err := submitter.SubmitOrder(ctx, req)
	return c.Settle(ctx, ack, err)
}

func (c *Checkout) fail(err error) Result {
	c.state = StateFailed
	c.lastErr = err
	c.logger.Warn("Checkout failed", zap.Error(err))
	return Result{State: StateFailed, Err: err, Message: UserMessage(err)}
}

func (c *Checkout) State() State {
	return c.state
}

func (c *Checkout) InFlight() bool {
	return c.inFlight
}

// Receipt returns the receipt of the last successful checkout, if any.
func (c *Checkout) Receipt() *models.Receipt {
	if c.receipt == nil {
		return nil
	}
	r := *c.receipt
	return &r
}

// LastError returns the error of the last failed attempt.
func (c *Checkout) LastError() error {
	return c.lastErr
}
