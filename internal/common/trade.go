package common

import "fmt"

// TradeLeg records one side's view of a match: the resting or incoming
// order's id, the price that order held, and the matched quantity.
type TradeLeg struct {
	OrderID  OrderId
	Price    Price
	Quantity Quantity
}

// Trade accounts for the two orders that matched. It is a value record
// owned by the caller; it holds no reference back into the book.
type Trade struct {
	Bid TradeLeg
	Ask TradeLeg
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`Bid: [id: %d, price: %d, qty: %d]
Ask: [id: %d, price: %d, qty: %d]`,
		t.Bid.OrderID,
		t.Bid.Price,
		t.Bid.Quantity,
		t.Ask.OrderID,
		t.Ask.Price,
		t.Ask.Quantity,
	)
}
