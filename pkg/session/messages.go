package session

import (
	"github.com/example/citizenportal/pkg/cart"
	"github.com/example/citizenportal/pkg/checkout"
	"github.com/example/citizenportal/pkg/models"
)

// Requests handled by a SessionActor. Cart requests are answered with a
// *CartReply, Checkout with a *CheckoutReply and GetReceipt with a
// *ReceiptReply.

type AddItem struct {
	Item models.LineItem
}

type ChangeQuantity struct {
	Index int
	Delta int
}

type RemoveItem struct {
	Index int
}

type ApplyCommand struct {
	Command cart.Command
}

type ClearCart struct{}

type GetCart struct{}

type Checkout struct {
	UserID string
}

type GetReceipt struct{}

type CartReply struct {
	Cart models.CartSnapshot
	Err  error
}

type CheckoutReply struct {
	Result checkout.Result
	Cart   models.CartSnapshot
}

type ReceiptReply struct {
	Receipt *models.Receipt
	Err     error
}

// orderSettled carries the order service's answer back onto the actor.
type orderSettled struct {
	ack *models.OrderAck
	err error
}
