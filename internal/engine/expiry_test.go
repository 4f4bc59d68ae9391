package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/TUTULEMAN/Orderbook/internal/common"
	"github.com/TUTULEMAN/Orderbook/internal/engine"
)

// nearSessionEndClock reports a time just shy of the session boundary so
// the pruner's next deadline lands milliseconds away instead of hours.
type nearSessionEndClock struct{}

func (nearSessionEndClock) Now() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 15, 59, 59, int(900*time.Millisecond), now.Location())
}

func TestPruneGoodForDayOrders(t *testing.T) {
	book := engine.NewOrderbookWithClock(nearSessionEndClock{}, engine.DefaultSessionEndHour)
	t.Cleanup(func() {
		assert.NoError(t, book.Close())
	})

	// 1. A good-for-day order and a good-till-cancel order rest together.
	assert.Empty(t, book.AddOrder(NewOrder(GoodForDay, 1, Buy, 100, 10)))
	assert.Empty(t, book.AddOrder(NewOrder(GoodTillCancel, 2, Buy, 99, 5)))
	assert.Equal(t, 2, book.Size())

	// 2. The session boundary passes; only the good-for-day order goes.
	assert.Eventually(t, func() bool {
		return book.Size() == 1
	}, 2*time.Second, 10*time.Millisecond)

	infos := book.GetOrderInfos()
	assert.Equal(t, []LevelInfo{{Price: 99, Quantity: 5}}, infos.Bids)
	assert.Empty(t, infos.Asks)
}

func TestClose_JoinsPruner(t *testing.T) {
	book := engine.NewOrderbookWithClock(quietClock{}, engine.DefaultSessionEndHour)

	done := make(chan error, 1)
	go func() { done <- book.Close() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown did not join the expiry task")
	}
}
