package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/citizenportal/pkg/cart"
	"github.com/example/citizenportal/pkg/checkout"
	"github.com/example/citizenportal/pkg/models"
	"go.uber.org/zap"
)

type Options struct {
	RequestTimeout time.Duration
	SubmitTimeout  time.Duration
	// IdleTimeout stops a session that received no message for that long. Zero keeps sessions forever.
	IdleTimeout time.Duration
}

// Registry spawns one SessionActor per client id and forwards requests to it.
type Registry struct {
	system    *actor.ActorSystem
	store     Store
	submitter checkout.Submitter
	opts      Options
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*actor.PID
}

func NewRegistry(system *actor.ActorSystem, store Store, submitter checkout.Submitter, opts Options, logger *zap.Logger) *Registry {
	return &Registry{
		system:    system,
		store:     store,
		submitter: submitter,
		opts:      opts,
		logger:    logger,
		sessions:  make(map[string]*actor.PID),
	}
}

func (r *Registry) pid(clientID string) (*actor.PID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pid, ok := r.sessions[clientID]; ok {
		return pid, nil
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return &SessionActor{
			clientID:      clientID,
			store:         r.store,
			submitter:     r.submitter,
			submitTimeout: r.opts.SubmitTimeout,
			idleTimeout:   r.opts.IdleTimeout,
			logger:        r.logger.Named("session").With(zap.String("client_id", clientID)),
			onStopped:     r.forget,
		}
	})

	pid, err := r.system.Root.SpawnNamed(props, "session/"+clientID)
	if err != nil && !errors.Is(err, actor.ErrNameExists) {
		return nil, fmt.Errorf("failed to spawn session: %w", err)
	}
	r.sessions[clientID] = pid
	return pid, nil
}

func (r *Registry) forget(clientID string, pid *actor.PID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[clientID]; ok && cur.Equal(pid) {
		delete(r.sessions, clientID)
	}
}

// request sends msg to the client's session, respawning it once if the
// session stopped between lookup and delivery.
func (r *Registry) request(clientID string, msg interface{}, timeout time.Duration) (interface{}, error) {
	for attempt := 0; ; attempt++ {
		pid, err := r.pid(clientID)
		if err != nil {
			return nil, err
		}

		res, err := r.system.Root.RequestFuture(pid, msg, timeout).Result()
		if errors.Is(err, actor.ErrDeadLetter) && attempt == 0 {
			r.forget(clientID, pid)
			continue
		}
		return res, err
	}
}

func (r *Registry) cartRequest(clientID string, msg interface{}) (models.CartSnapshot, error) {
	res, err := r.request(clientID, msg, r.opts.RequestTimeout)
	if err != nil {
		return models.CartSnapshot{}, fmt.Errorf("session request failed: %w", err)
	}
	reply, ok := res.(*CartReply)
	if !ok {
		return models.CartSnapshot{}, fmt.Errorf("unexpected session reply %T", res)
	}
	return reply.Cart, reply.Err
}

func (r *Registry) Cart(clientID string) (models.CartSnapshot, error) {
	return r.cartRequest(clientID, &GetCart{})
}

func (r *Registry) AddItem(clientID string, item models.LineItem) (models.CartSnapshot, error) {
	return r.cartRequest(clientID, &AddItem{Item: item})
}

func (r *Registry) ChangeQuantity(clientID string, index, delta int) (models.CartSnapshot, error) {
	return r.cartRequest(clientID, &ChangeQuantity{Index: index, Delta: delta})
}

func (r *Registry) RemoveItem(clientID string, index int) (models.CartSnapshot, error) {
	return r.cartRequest(clientID, &RemoveItem{Index: index})
}

func (r *Registry) Apply(clientID string, cmd cart.Command) (models.CartSnapshot, error) {
	return r.cartRequest(clientID, &ApplyCommand{Command: cmd})
}

func (r *Registry) Clear(clientID string) (models.CartSnapshot, error) {
	return r.cartRequest(clientID, &ClearCart{})
}

// Checkout waits for the order service to answer, so its timeout covers the
// submission timeout as well.
func (r *Registry) Checkout(clientID, userID string) (*CheckoutReply, error) {
	res, err := r.request(clientID, &Checkout{UserID: userID}, r.opts.SubmitTimeout+r.opts.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("session request failed: %w", err)
	}
	reply, ok := res.(*CheckoutReply)
	if !ok {
		return nil, fmt.Errorf("unexpected session reply %T", res)
	}
	return reply, nil
}

func (r *Registry) Receipt(clientID string) (*models.Receipt, error) {
	res, err := r.request(clientID, &GetReceipt{}, r.opts.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("session request failed: %w", err)
	}
	reply, ok := res.(*ReceiptReply)
	if !ok {
		return nil, fmt.Errorf("unexpected session reply %T", res)
	}
	return reply.Receipt, reply.Err
}

// Shutdown stops every live session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	pids := make([]*actor.PID, 0, len(r.sessions))
	for _, pid := range r.sessions {
		pids = append(pids, pid)
	}
	r.mu.Unlock()

	for _, pid := range pids {
		if err := r.system.Root.StopFuture(pid).Wait(); err != nil {
			r.logger.Warn("Failed to stop session", zap.String("pid", pid.Id), zap.Error(err))
		}
	}
}
