// Package session hosts one actor per storefront client. The actor owns the
// client's cart and checkout, so every mutation of them runs on its mailbox
// one message at a time. Order submission is the only call made off the
// mailbox; its outcome is delivered back as a message.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/citizenportal/pkg/cart"
	"github.com/example/citizenportal/pkg/checkout"
	"github.com/example/citizenportal/pkg/metrics"
	"github.com/example/citizenportal/pkg/models"
	"go.uber.org/zap"
)

// Store is the persistence a session needs: the cart, the atomic checkout
// commit and the receipt of the last order.
type Store interface {
	cart.Store
	checkout.Store
	LoadReceipt(ctx context.Context, clientID string) (*models.Receipt, error)
}

type SessionActor struct {
	clientID      string
	store         Store
	submitter     checkout.Submitter
	submitTimeout time.Duration
	idleTimeout   time.Duration
	logger        *zap.Logger
	onStopped     func(clientID string, pid *actor.PID)

	engine   *cart.Engine
	checkout *checkout.Checkout
	waiting  *actor.PID
}

func (a *SessionActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a.engine = cart.NewEngine(a.clientID, a.store, a.logger)
		a.checkout = checkout.New(a.clientID, a.engine, a.store, a.logger)
		a.engine.Load(context.Background())
		if a.idleTimeout > 0 {
			ctx.SetReceiveTimeout(a.idleTimeout)
		}
		metrics.ActiveSessions.Inc()
		a.logger.Debug("Session started", zap.Int("items", a.engine.Len()))

	case *AddItem:
		a.mutate(ctx, func(c context.Context) error { return a.engine.Add(c, msg.Item) })

	case *ChangeQuantity:
		a.mutate(ctx, func(c context.Context) error { return a.engine.ChangeQuantity(c, msg.Index, msg.Delta) })

	case *RemoveItem:
		a.mutate(ctx, func(c context.Context) error { return a.engine.Remove(c, msg.Index) })

	case *ApplyCommand:
		a.mutate(ctx, func(c context.Context) error { return a.engine.Apply(c, msg.Command) })

	case *ClearCart:
		a.mutate(ctx, a.engine.Clear)

	case *GetCart:
		ctx.Respond(&CartReply{Cart: a.engine.Snapshot()})

	case *Checkout:
		a.beginCheckout(ctx, msg)

	case *orderSettled:
		res := a.checkout.Settle(context.Background(), msg.ack, msg.err)
		metrics.CheckoutsTotal.WithLabelValues(outcome(res)).Inc()
		if a.waiting != nil {
			ctx.Send(a.waiting, &CheckoutReply{Result: res, Cart: a.engine.Snapshot()})
			a.waiting = nil
		}

	case *GetReceipt:
		a.receipt(ctx)

	case *actor.ReceiveTimeout:
		if a.checkout.InFlight() {
			return
		}
		a.logger.Debug("Session idle, stopping")
		ctx.Stop(ctx.Self())

	case *actor.Stopped:
		metrics.ActiveSessions.Dec()
		if a.onStopped != nil {
			a.onStopped(a.clientID, ctx.Self())
		}
	}
}

// mutate applies a cart change unless an order for the current cart is in
// flight, since a successful order clears the whole cart.
func (a *SessionActor) mutate(ctx actor.Context, fn func(context.Context) error) {
	if a.checkout.InFlight() {
		ctx.Respond(&CartReply{Cart: a.engine.Snapshot(), Err: checkout.ErrCheckoutInProgress})
		return
	}
	err := fn(context.Background())
	if err != nil {
		a.logger.Warn("Cart update failed", zap.Error(err))
	}
	ctx.Respond(&CartReply{Cart: a.engine.Snapshot(), Err: err})
}

func (a *SessionActor) beginCheckout(ctx actor.Context, msg *Checkout) {
	req, err := a.checkout.Begin(msg.UserID)
	if err != nil {
		res := checkout.Result{State: a.checkout.State(), Err: err, Message: checkout.UserMessage(err)}
		if errors.Is(err, checkout.ErrEmptyCart) {
			metrics.CheckoutsTotal.WithLabelValues(outcome(res)).Inc()
		}
		ctx.Respond(&CheckoutReply{Result: res, Cart: a.engine.Snapshot()})
		return
	}

	a.waiting = ctx.Sender()

	root := ctx.ActorSystem().Root
	self := ctx.Self()
	submitter := a.submitter
	timeout := a.submitTimeout
	go func() {
		subCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ack, err := submitter.SubmitOrder(subCtx, req)
		root.Send(self, &orderSettled{ack: ack, err: err})
	}()
}

func (a *SessionActor) receipt(ctx actor.Context) {
	if r := a.checkout.Receipt(); r != nil {
		ctx.Respond(&ReceiptReply{Receipt: r})
		return
	}
	r, err := a.store.LoadReceipt(context.Background(), a.clientID)
	ctx.Respond(&ReceiptReply{Receipt: r, Err: err})
}

func outcome(res checkout.Result) string {
	var rejected *checkout.OrderRejectedError
	var transport *checkout.TransportError
	switch {
	case res.State == checkout.StateSucceeded:
		return "succeeded"
	case errors.Is(res.Err, checkout.ErrEmptyCart):
		return "empty_cart"
	case errors.As(res.Err, &rejected):
		return "rejected"
	case errors.As(res.Err, &transport):
		return "transport_error"
	default:
		return "failed"
	}
}
