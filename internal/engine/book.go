package engine

import (
	"github.com/tidwall/btree"

	"github.com/TUTULEMAN/Orderbook/internal/common"
)

// levelNode is one resting order's slot in a price level queue. Nodes are
// doubly linked so removal by handle is O(1) regardless of queue depth.
type levelNode struct {
	order *common.Order
	prev  *levelNode
	next  *levelNode
}

// priceLevel is the FIFO queue of orders resting at one price. All orders
// in the queue share side and price; the level is deleted from its ladder
// the moment the queue empties.
type priceLevel struct {
	price common.Price
	head  *levelNode
	tail  *levelNode
}

// pushBack appends an order at the tail of the level queue and returns its
// node. The node stays valid as a position handle until the order is
// removed.
func (l *priceLevel) pushBack(order *common.Order) *levelNode {
	node := &levelNode{order: order}
	if l.head == nil {
		l.head = node
		l.tail = node
	} else {
		node.prev = l.tail
		l.tail.next = node
		l.tail = node
	}
	return node
}

func (l *priceLevel) remove(node *levelNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
}

func (l *priceLevel) empty() bool {
	return l.head == nil
}

type ladder = btree.BTreeG[*priceLevel]

// newBids builds the bid ladder. Sorted greatest first, so the best bid is
// the tree minimum.
func newBids() *ladder {
	return btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price > b.price
	})
}

// newAsks builds the ask ladder. Sorted least first, so the best ask is
// the tree minimum.
func newAsks() *ladder {
	return btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price < b.price
	})
}

// levelAction tags the statistics update paired with a book mutation.
type levelAction int

const (
	levelActionAdd levelAction = iota
	levelActionRemove
	levelActionMatch
)

// levelData caches the aggregate remaining quantity and live order count
// at one price. The book is single-instrument, so bid and ask volume never
// coexist at a price once matching has returned.
type levelData struct {
	quantity common.Quantity
	count    common.Quantity
}
