package models

// MaxQuantity bounds the quantity of a single cart line.
const MaxQuantity = 999

// LineItem is one product in a cart. ProductID is unique within a cart.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"price"`
	ImageRef  string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

// Subtotal is UnitPrice * Quantity.
func (li LineItem) Subtotal() float64 {
	return li.UnitPrice * float64(li.Quantity)
}

// CartSnapshot is a read-only copy of a cart for rendering.
type CartSnapshot struct {
	Items []LineItem `json:"items"`
	Total float64    `json:"total"`
}
