package cart

// Op names a product-keyed cart command.
type Op string

const (
	OpIncrement Op = "increment"
	OpDecrement Op = "decrement"
	OpRemove    Op = "remove"
)

// Command targets a line by product id rather than by position.
type Command struct {
	Op        Op     `json:"op" binding:"required,oneof=increment decrement remove"`
	ProductID string `json:"product_id" binding:"required"`
}
