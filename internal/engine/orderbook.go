package engine

import (
	"sync"

	tomb "gopkg.in/tomb.v2"

	"github.com/TUTULEMAN/Orderbook/internal/common"
)

// orderEntry ties a live order to its queue position handle. Every live
// order appears exactly once in the index and exactly once in exactly one
// ladder's queue.
type orderEntry struct {
	order *common.Order
	node  *levelNode
}

// Orderbook is the in-memory matching engine for a single instrument. It
// accepts, cancels and modifies orders, continuously matches crossing bids
// against asks under price-time priority, and keeps per-price aggregates
// so fill-or-kill admission never has to walk individual orders.
//
// A single mutex guards all book state; every public operation holds it
// for its whole duration, so each call is atomic to outside observers.
type Orderbook struct {
	mu sync.Mutex

	// Price levels to orders sat on the price level, sorted by time added
	// as they will be push-back'd.
	bids *ladder
	asks *ladder

	// Cross-index from order id to (order, queue position).
	orders map[common.OrderId]orderEntry

	// Per-price aggregates across both sides.
	levels map[common.Price]*levelData

	clock      Clock
	sessionEnd int

	t      *tomb.Tomb
	closed bool
}

func NewOrderbook() *Orderbook {
	return NewOrderbookWithClock(systemClock{}, DefaultSessionEndHour)
}

// NewOrderbookWithClock builds a book whose expiry schedule is driven by
// the given clock and local session-end hour, and starts the good-for-day
// pruner.
func NewOrderbookWithClock(clock Clock, sessionEndHour int) *Orderbook {
	ob := &Orderbook{
		bids:       newBids(),
		asks:       newAsks(),
		orders:     make(map[common.OrderId]orderEntry),
		levels:     make(map[common.Price]*levelData),
		clock:      clock,
		sessionEnd: sessionEndHour,
		t:          &tomb.Tomb{},
	}
	ob.t.Go(ob.pruneGoodForDayOrders)
	return ob
}

// Close signals shutdown, wakes the pruner and joins it. Operations
// submitted after Close return empty and do not mutate the book.
func (ob *Orderbook) Close() error {
	ob.mu.Lock()
	if ob.closed {
		ob.mu.Unlock()
		return nil
	}
	ob.closed = true
	ob.mu.Unlock()

	ob.t.Kill(nil)
	return ob.t.Wait()
}

// AddOrder admits an order into the book and runs the matching loop,
// returning the tape it produced. A nil tape means the order rested
// without crossing or was rejected at admission: duplicate id, a market
// order against an empty opposite side, a fill-and-kill with no crossable
// level, or a fill-or-kill that cannot be fully satisfied.
func (ob *Orderbook) AddOrder(order *common.Order) []common.Trade {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if ob.closed {
		return nil
	}
	return ob.addOrder(order)
}

func (ob *Orderbook) addOrder(order *common.Order) []common.Trade {
	if order.Remaining == 0 {
		return nil
	}
	if _, ok := ob.orders[order.ID]; ok {
		return nil
	}

	if order.Type == common.Market {
		// A market order is pinned to the worst opposite price; whatever
		// survives the sweep rests as good-till-cancel.
		worst, ok := ob.worstOppositePrice(order.Side)
		if !ok {
			return nil
		}
		order.ToGoodTillCancel(worst)
	}

	if order.Type == common.FillAndKill && !ob.canMatch(order.Side, order.Price) {
		return nil
	}
	if order.Type == common.FillOrKill && !ob.canFullyFill(order.Side, order.Price, order.Remaining) {
		return nil
	}

	side := ob.sideLadder(order.Side)
	level, ok := side.GetMut(&priceLevel{price: order.Price})
	if !ok {
		level = &priceLevel{price: order.Price}
		side.Set(level)
	}
	node := level.pushBack(order)
	ob.orders[order.ID] = orderEntry{order: order, node: node}
	ob.updateLevel(order.Price, order.Remaining, levelActionAdd)

	return ob.match()
}

// CancelOrder removes the order from the book. Cancelling an unknown id is
// a no-op.
func (ob *Orderbook) CancelOrder(id common.OrderId) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if ob.closed {
		return
	}
	ob.cancelOrder(id)
}

// CancelOrders cancels each id under a single serialization scope.
func (ob *Orderbook) CancelOrders(ids []common.OrderId) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if ob.closed {
		return
	}
	for _, id := range ids {
		ob.cancelOrder(id)
	}
}

// ModifyOrder cancels the existing order and re-adds it with the supplied
// side, price and quantity, preserving the original id and type. The
// replacement joins the back of its level queue, so queue priority is
// forfeited. Unknown ids are a no-op with an empty tape.
func (ob *Orderbook) ModifyOrder(id common.OrderId, side common.Side, price common.Price, quantity common.Quantity) []common.Trade {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if ob.closed {
		return nil
	}
	entry, ok := ob.orders[id]
	if !ok {
		return nil
	}
	orderType := entry.order.Type
	ob.cancelOrder(id)
	return ob.addOrder(common.NewOrder(orderType, id, side, price, quantity))
}

// Size reports the number of live orders in the book.
func (ob *Orderbook) Size() int {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return len(ob.orders)
}

// GetOrderInfos returns a consistent aggregate snapshot of both sides:
// bids in descending price order, asks in ascending price order.
func (ob *Orderbook) GetOrderInfos() common.BookLevels {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	infos := common.BookLevels{
		Bids: make([]common.LevelInfo, 0, ob.bids.Len()),
		Asks: make([]common.LevelInfo, 0, ob.asks.Len()),
	}
	ob.bids.Scan(func(level *priceLevel) bool {
		infos.Bids = append(infos.Bids, levelInfo(level))
		return true
	})
	ob.asks.Scan(func(level *priceLevel) bool {
		infos.Asks = append(infos.Asks, levelInfo(level))
		return true
	})
	return infos
}

func levelInfo(level *priceLevel) common.LevelInfo {
	var quantity common.Quantity
	for node := level.head; node != nil; node = node.next {
		quantity += node.order.Remaining
	}
	return common.LevelInfo{Price: level.price, Quantity: quantity}
}

// match consumes the top of book price levels while they cross (i.e. best
// bid >= best ask). Within a level orders fill strictly in arrival order;
// across levels the best price wins. Each trade leg reports its own
// resting price, so a bid crossing a cheaper ask produces legs at two
// prices.
func (ob *Orderbook) match() []common.Trade {
	var trades []common.Trade

	for {
		bestBid, ok := ob.bids.MinMut()
		if !ok {
			break
		}
		bestAsk, ok := ob.asks.MinMut()
		if !ok {
			break
		}
		if bestBid.price < bestAsk.price {
			break
		}

		bid := bestBid.head.order
		ask := bestAsk.head.order
		quantity := min(bid.Remaining, ask.Remaining)
		bid.Fill(quantity)
		ask.Fill(quantity)

		trades = append(trades, common.Trade{
			Bid: common.TradeLeg{OrderID: bid.ID, Price: bid.Price, Quantity: quantity},
			Ask: common.TradeLeg{OrderID: ask.ID, Price: ask.Price, Quantity: quantity},
		})

		if bid.IsFilled() {
			bestBid.remove(bestBid.head)
			delete(ob.orders, bid.ID)
			ob.updateLevel(bid.Price, quantity, levelActionRemove)
		} else {
			ob.updateLevel(bid.Price, quantity, levelActionMatch)
		}
		if ask.IsFilled() {
			bestAsk.remove(bestAsk.head)
			delete(ob.orders, ask.ID)
			ob.updateLevel(ask.Price, quantity, levelActionRemove)
		} else {
			ob.updateLevel(ask.Price, quantity, levelActionMatch)
		}

		if bestBid.empty() {
			ob.bids.Delete(bestBid)
		}
		if bestAsk.empty() {
			ob.asks.Delete(bestAsk)
		}
	}

	// A fill-and-kill order still at the top of the book did not fully
	// match during its arrival wave; immediate-or-cancel kills it now.
	if level, ok := ob.bids.Min(); ok {
		if head := level.head.order; head.Type == common.FillAndKill {
			ob.cancelOrder(head.ID)
		}
	}
	if level, ok := ob.asks.Min(); ok {
		if head := level.head.order; head.Type == common.FillAndKill {
			ob.cancelOrder(head.ID)
		}
	}

	return trades
}

func (ob *Orderbook) cancelOrder(id common.OrderId) {
	entry, ok := ob.orders[id]
	if !ok {
		return
	}
	delete(ob.orders, id)

	order := entry.order
	side := ob.sideLadder(order.Side)
	if level, ok := side.GetMut(&priceLevel{price: order.Price}); ok {
		level.remove(entry.node)
		if level.empty() {
			side.Delete(level)
		}
	}
	ob.updateLevel(order.Price, order.Remaining, levelActionRemove)
}

// canMatch reports whether any opposite level could cross an order at the
// given limit price.
func (ob *Orderbook) canMatch(side common.Side, price common.Price) bool {
	if side == common.Buy {
		bestAsk, ok := ob.asks.Min()
		return ok && price >= bestAsk.price
	}
	bestBid, ok := ob.bids.Min()
	return ok && price <= bestBid.price
}

// canFullyFill reports whether the opposing side holds enough volume at
// acceptable prices to satisfy the full quantity right now. It walks the
// per-level aggregates best price first, so the cost is bounded by the
// number of acceptable levels rather than the number of resting orders.
func (ob *Orderbook) canFullyFill(side common.Side, price common.Price, quantity common.Quantity) bool {
	if !ob.canMatch(side, price) {
		return false
	}

	opposite := ob.asks
	if side == common.Sell {
		opposite = ob.bids
	}
	opposite.Scan(func(level *priceLevel) bool {
		if (side == common.Buy && level.price > price) ||
			(side == common.Sell && level.price < price) {
			return false
		}
		data := ob.levels[level.price]
		if data.quantity >= quantity {
			quantity = 0
			return false
		}
		quantity -= data.quantity
		return true
	})
	return quantity == 0
}

// worstOppositePrice returns the price a market order pins to: the highest
// ask for a buy, the lowest bid for a sell. Both ladders keep their best
// price at the tree minimum, so the worst is the maximum.
func (ob *Orderbook) worstOppositePrice(side common.Side) (common.Price, bool) {
	opposite := ob.asks
	if side == common.Sell {
		opposite = ob.bids
	}
	level, ok := opposite.Max()
	if !ok {
		return common.InvalidPrice, false
	}
	return level.price, true
}

func (ob *Orderbook) sideLadder(side common.Side) *ladder {
	if side == common.Buy {
		return ob.bids
	}
	return ob.asks
}

// updateLevel keeps the per-price aggregates in lock step with a book
// mutation. A match leaves the order count untouched; the entry is erased
// once no live order references the price.
func (ob *Orderbook) updateLevel(price common.Price, quantity common.Quantity, action levelAction) {
	data, ok := ob.levels[price]
	if !ok {
		data = &levelData{}
		ob.levels[price] = data
	}
	switch action {
	case levelActionAdd:
		data.count++
		data.quantity += quantity
	case levelActionRemove:
		data.count--
		data.quantity -= quantity
	case levelActionMatch:
		data.quantity -= quantity
	}
	if data.count == 0 {
		delete(ob.levels, price)
	}
}
