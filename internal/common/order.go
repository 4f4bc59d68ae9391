package common

import "fmt"

// Order is the mutable per-order state held by the book. A live order is
// owned jointly by the id index and its price-level queue; once Remaining
// reaches zero it is retired and must not appear in either.
type Order struct {
	ID        OrderId
	Side      Side
	Type      OrderType
	Price     Price
	Initial   Quantity // Total volume requested
	Remaining Quantity // Volume still resting
}

func NewOrder(orderType OrderType, id OrderId, side Side, price Price, quantity Quantity) *Order {
	return &Order{
		ID:        id,
		Side:      side,
		Type:      orderType,
		Price:     price,
		Initial:   quantity,
		Remaining: quantity,
	}
}

// NewMarketOrder creates an order with no limit price. Admission rewrites
// it to GoodTillCancel at the worst opposite price before matching.
func NewMarketOrder(id OrderId, side Side, quantity Quantity) *Order {
	return NewOrder(Market, id, side, InvalidPrice, quantity)
}

func (o *Order) FilledQuantity() Quantity {
	return o.Initial - o.Remaining
}

func (o *Order) IsFilled() bool {
	return o.Remaining == 0
}

// Fill consumes quantity from the order's remaining volume. Filling past
// the remaining quantity is a programmer error and poisons the engine.
func (o *Order) Fill(quantity Quantity) {
	if quantity > o.Remaining {
		panic(fmt.Sprintf("order %d cannot be filled for more than its remaining quantity", o.ID))
	}
	o.Remaining -= quantity
}

// ToGoodTillCancel rewrites a market order in place, pinning it to the
// given limit price. Only market orders may be rewritten.
func (o *Order) ToGoodTillCancel(price Price) {
	if o.Type != Market {
		panic(fmt.Sprintf("order %d is not a market order and cannot have its price adjusted", o.ID))
	}
	o.Price = price
	o.Type = GoodTillCancel
}

func (o *Order) String() string {
	return fmt.Sprintf(
		`ID:        %d
Side:      %v
Type:      %v
Price:     %d
Quantity:  %d (Total: %d)`,
		o.ID,
		o.Side,
		o.Type,
		o.Price,
		o.Remaining,
		o.Initial,
	)
}
