package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/TUTULEMAN/Orderbook/internal/common"
	"github.com/TUTULEMAN/Orderbook/internal/engine"
)

// --- Setup & Helpers --------------------------------------------------------

// quietClock keeps the session boundary hours away so the pruner never
// interferes with a foreground test.
type quietClock struct{}

func (quietClock) Now() time.Time {
	return time.Date(2026, time.March, 2, 9, 0, 0, 0, time.Local)
}

func createTestOrderbook(t *testing.T) *engine.Orderbook {
	t.Helper()
	book := engine.NewOrderbookWithClock(quietClock{}, engine.DefaultSessionEndHour)
	t.Cleanup(func() {
		assert.NoError(t, book.Close())
	})
	return book
}

func limit(id OrderId, side Side, price Price, quantity Quantity) *Order {
	return NewOrder(GoodTillCancel, id, side, price, quantity)
}

func level(price Price, quantity Quantity) LevelInfo {
	return LevelInfo{Price: price, Quantity: quantity}
}

func trade(bidID OrderId, bidPrice Price, askID OrderId, askPrice Price, quantity Quantity) Trade {
	return Trade{
		Bid: TradeLeg{OrderID: bidID, Price: bidPrice, Quantity: quantity},
		Ask: TradeLeg{OrderID: askID, Price: askPrice, Quantity: quantity},
	}
}

// --- Tests ------------------------------------------------------------------

func TestAddOrder_RestingLimit(t *testing.T) {
	book := createTestOrderbook(t)

	// A non-crossing limit rests without producing trades.
	trades := book.AddOrder(limit(1, Buy, 100, 10))

	assert.Empty(t, trades)
	assert.Equal(t, 1, book.Size())

	infos := book.GetOrderInfos()
	assert.Equal(t, []LevelInfo{level(100, 10)}, infos.Bids)
	assert.Empty(t, infos.Asks)
}

func TestCancelOrder_RemovesRestingOrder(t *testing.T) {
	book := createTestOrderbook(t)

	assert.Empty(t, book.AddOrder(limit(1, Buy, 100, 10)))
	book.CancelOrder(1)

	assert.Equal(t, 0, book.Size())
	infos := book.GetOrderInfos()
	assert.Empty(t, infos.Bids)
	assert.Empty(t, infos.Asks)
}

func TestCancelOrder_Idempotent(t *testing.T) {
	book := createTestOrderbook(t)

	// 1. Setup: two resting bids.
	assert.Empty(t, book.AddOrder(limit(1, Buy, 100, 10)))
	assert.Empty(t, book.AddOrder(limit(2, Buy, 99, 5)))

	// 2. Cancelling the same id twice observes the same state as once.
	book.CancelOrder(1)
	after := book.GetOrderInfos()
	book.CancelOrder(1)

	assert.Equal(t, after, book.GetOrderInfos())
	assert.Equal(t, 1, book.Size())
}

func TestCancelOrder_UnknownIDIsNoOp(t *testing.T) {
	book := createTestOrderbook(t)

	assert.Empty(t, book.AddOrder(limit(1, Buy, 100, 10)))
	before := book.GetOrderInfos()

	book.CancelOrder(42)

	assert.Equal(t, before, book.GetOrderInfos())
	assert.Equal(t, 1, book.Size())
}

func TestAddThenCancel_RestoresBook(t *testing.T) {
	book := createTestOrderbook(t)

	// 1. Setup: a small resting book.
	assert.Empty(t, book.AddOrder(limit(1, Buy, 99, 10)))
	assert.Empty(t, book.AddOrder(limit(2, Sell, 101, 5)))
	before := book.GetOrderInfos()

	// 2. A non-crossing limit added and cancelled leaves no residue.
	assert.Empty(t, book.AddOrder(limit(3, Buy, 98, 7)))
	book.CancelOrder(3)

	assert.Equal(t, before, book.GetOrderInfos())
	assert.Equal(t, 2, book.Size())
}

func TestAddOrder_PartialFill(t *testing.T) {
	book := createTestOrderbook(t)

	// 1. Resting bid of 10, incoming ask of 4 at the same price.
	assert.Empty(t, book.AddOrder(limit(1, Buy, 100, 10)))
	trades := book.AddOrder(limit(2, Sell, 100, 4))

	// 2. One trade for the crossing quantity; the bid keeps the residual.
	assert.Equal(t, []Trade{trade(1, 100, 2, 100, 4)}, trades)
	assert.Equal(t, 1, book.Size())

	infos := book.GetOrderInfos()
	assert.Equal(t, []LevelInfo{level(100, 6)}, infos.Bids)
	assert.Empty(t, infos.Asks)
}

func TestAddOrder_FillAndKillSweepsFIFO(t *testing.T) {
	book := createTestOrderbook(t)

	// 1. Two resting bids at the same price, FIFO by arrival.
	assert.Empty(t, book.AddOrder(limit(1, Buy, 100, 5)))
	assert.Empty(t, book.AddOrder(limit(2, Buy, 100, 5)))

	// 2. An 8-lot fill-and-kill ask consumes the head order first.
	trades := book.AddOrder(NewOrder(FillAndKill, 3, Sell, 100, 8))

	assert.Equal(t, []Trade{
		trade(1, 100, 3, 100, 5),
		trade(2, 100, 3, 100, 3),
	}, trades)

	// 3. Order 3 is fully consumed; order 2 keeps its residual.
	assert.Equal(t, 1, book.Size())
	infos := book.GetOrderInfos()
	assert.Equal(t, []LevelInfo{level(100, 2)}, infos.Bids)
	assert.Empty(t, infos.Asks)
}

func TestAddOrder_FillAndKillResidueCancelled(t *testing.T) {
	book := createTestOrderbook(t)

	// 1. Only 4 lots available against an 8-lot fill-and-kill buy.
	assert.Empty(t, book.AddOrder(limit(1, Sell, 100, 4)))
	trades := book.AddOrder(NewOrder(FillAndKill, 2, Buy, 100, 8))

	// 2. The immediate match happens; the residual never rests.
	assert.Equal(t, []Trade{trade(2, 100, 1, 100, 4)}, trades)
	assert.Equal(t, 0, book.Size())

	infos := book.GetOrderInfos()
	assert.Empty(t, infos.Bids)
	assert.Empty(t, infos.Asks)
}

func TestAddOrder_FillAndKillRejectedWithoutCross(t *testing.T) {
	book := createTestOrderbook(t)

	// No ask at or below the limit, so the order is rejected outright.
	assert.Empty(t, book.AddOrder(limit(1, Sell, 101, 5)))
	trades := book.AddOrder(NewOrder(FillAndKill, 2, Buy, 100, 5))

	assert.Empty(t, trades)
	assert.Equal(t, 1, book.Size())
	infos := book.GetOrderInfos()
	assert.Empty(t, infos.Bids)
	assert.Equal(t, []LevelInfo{level(101, 5)}, infos.Asks)
}

func TestAddOrder_FillOrKillRejectedOnThinBook(t *testing.T) {
	book := createTestOrderbook(t)

	// 1. Only 5 lots rest at or under the limit.
	assert.Empty(t, book.AddOrder(limit(1, Sell, 101, 5)))

	// 2. A 10-lot fill-or-kill cannot fully fill; nothing trades.
	trades := book.AddOrder(NewOrder(FillOrKill, 2, Buy, 101, 10))

	assert.Empty(t, trades)
	assert.Equal(t, 1, book.Size())
	infos := book.GetOrderInfos()
	assert.Empty(t, infos.Bids)
	assert.Equal(t, []LevelInfo{level(101, 5)}, infos.Asks)
}

func TestAddOrder_FillOrKillSweepsTwoLevels(t *testing.T) {
	book := createTestOrderbook(t)

	// 1. 10 lots rest across two acceptable levels.
	assert.Empty(t, book.AddOrder(limit(1, Sell, 101, 5)))
	assert.Empty(t, book.AddOrder(limit(2, Sell, 102, 5)))

	// 2. The fill-or-kill is admitted and drains both levels. Each leg
	// reports its own resting price, so the bid legs sit at 102.
	trades := book.AddOrder(NewOrder(FillOrKill, 3, Buy, 102, 10))

	assert.Equal(t, []Trade{
		trade(3, 102, 1, 101, 5),
		trade(3, 102, 2, 102, 5),
	}, trades)

	assert.Equal(t, 0, book.Size())
	infos := book.GetOrderInfos()
	assert.Empty(t, infos.Bids)
	assert.Empty(t, infos.Asks)
}

func TestAddOrder_FillOrKillAtomicity(t *testing.T) {
	book := createTestOrderbook(t)

	assert.Empty(t, book.AddOrder(limit(1, Sell, 100, 3)))
	assert.Empty(t, book.AddOrder(limit(2, Sell, 101, 3)))

	// An admitted fill-or-kill trades exactly its initial quantity.
	trades := book.AddOrder(NewOrder(FillOrKill, 3, Buy, 101, 6))

	var total Quantity
	for _, trade := range trades {
		total += trade.Bid.Quantity
	}
	assert.Equal(t, Quantity(6), total)
	assert.Equal(t, 0, book.Size())
}

func TestAddOrder_DuplicateIDRejected(t *testing.T) {
	book := createTestOrderbook(t)

	assert.Empty(t, book.AddOrder(limit(1, Buy, 100, 10)))
	before := book.GetOrderInfos()

	// A second order under a live id is a no-op with an empty tape, even
	// if it would otherwise cross.
	trades := book.AddOrder(limit(1, Sell, 100, 10))

	assert.Empty(t, trades)
	assert.Equal(t, 1, book.Size())
	assert.Equal(t, before, book.GetOrderInfos())
}

func TestAddOrder_MarketSweepsAndRests(t *testing.T) {
	book := createTestOrderbook(t)

	// 1. Asks at two levels.
	assert.Empty(t, book.AddOrder(limit(1, Sell, 101, 5)))
	assert.Empty(t, book.AddOrder(limit(2, Sell, 103, 5)))

	// 2. A 12-lot market buy pins to the worst ask (103) and sweeps.
	trades := book.AddOrder(NewMarketOrder(3, Buy, 12))

	assert.Equal(t, []Trade{
		trade(3, 103, 1, 101, 5),
		trade(3, 103, 2, 103, 5),
	}, trades)

	// 3. The residual rests as good-till-cancel at the pinned price.
	assert.Equal(t, 1, book.Size())
	infos := book.GetOrderInfos()
	assert.Equal(t, []LevelInfo{level(103, 2)}, infos.Bids)
	assert.Empty(t, infos.Asks)
}

func TestAddOrder_MarketRejectedOnEmptyOppositeSide(t *testing.T) {
	book := createTestOrderbook(t)

	trades := book.AddOrder(NewMarketOrder(1, Buy, 10))

	assert.Empty(t, trades)
	assert.Equal(t, 0, book.Size())
}

func TestModifyOrder_LosesQueuePriority(t *testing.T) {
	book := createTestOrderbook(t)

	// 1. Two bids at the same level; order 1 holds queue priority.
	assert.Empty(t, book.AddOrder(limit(1, Buy, 100, 5)))
	assert.Empty(t, book.AddOrder(limit(2, Buy, 100, 5)))

	// 2. Modifying order 1 re-adds it behind order 2.
	assert.Empty(t, book.ModifyOrder(1, Buy, 100, 6))

	// 3. An incoming ask now fills order 2 first.
	trades := book.AddOrder(limit(3, Sell, 100, 5))

	assert.Equal(t, []Trade{trade(2, 100, 3, 100, 5)}, trades)
	infos := book.GetOrderInfos()
	assert.Equal(t, []LevelInfo{level(100, 6)}, infos.Bids)
}

func TestModifyOrder_RepriceTriggersMatch(t *testing.T) {
	book := createTestOrderbook(t)

	// 1. A bid resting away from the ask.
	assert.Empty(t, book.AddOrder(limit(1, Buy, 99, 5)))
	assert.Empty(t, book.AddOrder(limit(2, Sell, 101, 5)))

	// 2. Repricing the bid across the spread produces the tape of the
	// re-add; the id is preserved.
	trades := book.ModifyOrder(1, Buy, 101, 5)

	assert.Equal(t, []Trade{trade(1, 101, 2, 101, 5)}, trades)
	assert.Equal(t, 0, book.Size())
}

func TestModifyOrder_UnknownIDIsNoOp(t *testing.T) {
	book := createTestOrderbook(t)

	assert.Empty(t, book.AddOrder(limit(1, Buy, 100, 10)))
	before := book.GetOrderInfos()

	trades := book.ModifyOrder(42, Buy, 100, 5)

	assert.Empty(t, trades)
	assert.Equal(t, before, book.GetOrderInfos())
	assert.Equal(t, 1, book.Size())
}

func TestOrderbook_ClosedRejectsOperations(t *testing.T) {
	book := engine.NewOrderbookWithClock(quietClock{}, engine.DefaultSessionEndHour)
	assert.NoError(t, book.Close())

	assert.Empty(t, book.AddOrder(limit(1, Buy, 100, 10)))
	assert.Empty(t, book.ModifyOrder(1, Buy, 100, 5))
	book.CancelOrder(1)

	assert.Equal(t, 0, book.Size())
}

func TestMatch_QuantityConservation(t *testing.T) {
	book := createTestOrderbook(t)

	// 1. A mixed sequence of orders, some crossing, some resting.
	orders := []*Order{
		limit(1, Buy, 100, 10),
		limit(2, Buy, 99, 4),
		limit(3, Sell, 100, 6),
		limit(4, Sell, 99, 10),
		NewOrder(FillAndKill, 5, Buy, 99, 3),
		limit(6, Buy, 98, 2),
	}

	var traded Quantity
	for _, order := range orders {
		for _, trade := range book.AddOrder(order) {
			traded += trade.Bid.Quantity + trade.Ask.Quantity
		}
	}

	// 2. Every lot filled on some order shows up on exactly one bid leg
	// and one ask leg of the tape.
	var filled Quantity
	for _, order := range orders {
		filled += order.FilledQuantity()
	}
	assert.Equal(t, filled, traded)
}
