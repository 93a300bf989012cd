// Package cart holds the shopping cart of one storefront client.
//
// An Engine is owned by a single goroutine (the client's session actor) and is
// not safe for concurrent use. Every mutation writes the whole cart to the Store
// before it returns; if the write fails the mutation is rolled back so the
// in-memory cart never drifts from the persisted one.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/citizenportal/pkg/models"
	"go.uber.org/zap"
)

var ErrInvalidItem = errors.New("cart: invalid line item")

// Store persists the encoded cart of a client under a fixed key.
type Store interface {
	// LoadCart returns nil data and a nil error when nothing is stored.
	LoadCart(ctx context.Context, clientID string) ([]byte, error)
	SaveCart(ctx context.Context, clientID string, data []byte) error
}

// CommitFunc persists an already encoded empty cart together with whatever
// else must become visible in the same write.
type CommitFunc func(ctx context.Context, emptyCart []byte) error

type Engine struct {
	clientID string
	store    Store
	logger   *zap.Logger
	items    []models.LineItem
}

func NewEngine(clientID string, store Store, logger *zap.Logger) *Engine {
	return &Engine{
		clientID: clientID,
		store:    store,
		logger:   logger.With(zap.String("client_id", clientID)),
		items:    []models.LineItem{},
	}
}

// Load replaces the in-memory cart with the persisted one. Missing, unreadable
// or malformed data leaves an empty cart.
func (e *Engine) Load(ctx context.Context) {
	e.items = []models.LineItem{}

	data, err := e.store.LoadCart(ctx, e.clientID)
	if err != nil {
		e.logger.Warn("Failed to load cart, starting empty", zap.Error(err))
		return
	}
	if len(data) == 0 {
		return
	}

	items, err := Decode(data)
	if err != nil {
		e.logger.Warn("Discarding malformed cart", zap.Error(err))
		return
	}
	e.items = items
}

// Add merges item into the cart. An existing line with the same product id
// gets its quantity increased; otherwise the item is appended.
func (e *Engine) Add(ctx context.Context, item models.LineItem) error {
	if err := validate(item); err != nil {
		return err
	}

	next := e.clone()
	if i := indexOf(next, item.ProductID); i >= 0 {
		if next[i].Quantity > models.MaxQuantity-item.Quantity {
			return ErrInvalidItem
		}
		next[i].Quantity += item.Quantity
	} else {
		next = append(next, item)
	}
	return e.commit(ctx, next)
}

// ChangeQuantity adds delta to the quantity of the line at index. A line whose
// quantity drops to zero or below is removed. An out of range index is a no-op
// and a result above models.MaxQuantity is rejected.
func (e *Engine) ChangeQuantity(ctx context.Context, index, delta int) error {
	if index < 0 || index >= len(e.items) {
		return nil
	}
	if delta > models.MaxQuantity-e.items[index].Quantity {
		return ErrInvalidItem
	}

	next := e.clone()
	next[index].Quantity += delta
	if next[index].Quantity <= 0 {
		next = removeAt(next, index)
	}
	return e.commit(ctx, next)
}

// Remove deletes the line at index. An out of range index is a no-op.
func (e *Engine) Remove(ctx context.Context, index int) error {
	if index < 0 || index >= len(e.items) {
		return nil
	}
	return e.commit(ctx, removeAt(e.clone(), index))
}

// Apply runs a product-keyed command. Unknown products are ignored.
func (e *Engine) Apply(ctx context.Context, cmd Command) error {
	index := indexOf(e.items, cmd.ProductID)
	if index < 0 {
		return nil
	}

	switch cmd.Op {
	case OpIncrement:
		return e.ChangeQuantity(ctx, index, 1)
	case OpDecrement:
		return e.ChangeQuantity(ctx, index, -1)
	case OpRemove:
		return e.Remove(ctx, index)
	default:
		return fmt.Errorf("cart: unknown command %q", cmd.Op)
	}
}

func (e *Engine) Clear(ctx context.Context) error {
	return e.commit(ctx, []models.LineItem{})
}

// ClearAtomically empties the cart through commit instead of the Store, so the
// caller can write the empty cart together with related state. The in-memory
// cart is emptied even when commit fails. The empty cart is then saved on its
// own so a later Load does not bring the old lines back; the returned error
// still reports the failed commit.
func (e *Engine) ClearAtomically(ctx context.Context, commit CommitFunc) error {
	data, err := Encode(nil)
	if err != nil {
		return err
	}
	err = commit(ctx, data)
	e.items = []models.LineItem{}
	if err != nil {
		if saveErr := e.store.SaveCart(ctx, e.clientID, data); saveErr != nil {
			e.logger.Error("Failed to save empty cart after commit failure", zap.Error(saveErr))
		}
	}
	return err
}

// Snapshot returns a copy of the cart with a freshly computed total.
func (e *Engine) Snapshot() models.CartSnapshot {
	items := e.clone()
	var total float64
	for _, it := range items {
		total += it.Subtotal()
	}
	return models.CartSnapshot{Items: items, Total: total}
}

func (e *Engine) Len() int {
	return len(e.items)
}

func (e *Engine) commit(ctx context.Context, next []models.LineItem) error {
	data, err := Encode(next)
	if err != nil {
		return err
	}
	if err := e.store.SaveCart(ctx, e.clientID, data); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	e.items = next
	return nil
}

func (e *Engine) clone() []models.LineItem {
	out := make([]models.LineItem, len(e.items))
	copy(out, e.items)
	return out
}

// Encode serializes items in the persisted cart format.
func Encode(items []models.LineItem) ([]byte, error) {
	if items == nil {
		items = []models.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart: %w", err)
	}
	return data, nil
}

// Decode parses a persisted cart. Any invalid line makes the whole cart invalid;
// duplicate product ids are merged in first-seen order.
func Decode(data []byte) ([]models.LineItem, error) {
	var raw []models.LineItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}

	items := make([]models.LineItem, 0, len(raw))
	for _, it := range raw {
		if err := validate(it); err != nil {
			return nil, err
		}
		if i := indexOf(items, it.ProductID); i >= 0 {
			if items[i].Quantity > models.MaxQuantity-it.Quantity {
				return nil, ErrInvalidItem
			}
			items[i].Quantity += it.Quantity
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func validate(item models.LineItem) error {
	if item.ProductID == "" || item.UnitPrice <= 0 || item.Quantity < 1 || item.Quantity > models.MaxQuantity {
		return ErrInvalidItem
	}
	return nil
}

func indexOf(items []models.LineItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func removeAt(items []models.LineItem, index int) []models.LineItem {
	return append(items[:index], items[index+1:]...)
}
