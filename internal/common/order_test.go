package common_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/TUTULEMAN/Orderbook/internal/common"
)

func TestOrderFill(t *testing.T) {
	order := NewOrder(GoodTillCancel, 1, Buy, 100, 10)

	order.Fill(4)
	assert.Equal(t, Quantity(6), order.Remaining)
	assert.Equal(t, Quantity(4), order.FilledQuantity())
	assert.False(t, order.IsFilled())

	order.Fill(6)
	assert.True(t, order.IsFilled())
}

func TestOrderFill_BeyondRemainingPanics(t *testing.T) {
	order := NewOrder(GoodTillCancel, 1, Buy, 100, 10)

	assert.Panics(t, func() { order.Fill(11) })
}

func TestToGoodTillCancel(t *testing.T) {
	order := NewMarketOrder(1, Sell, 10)
	assert.Equal(t, InvalidPrice, order.Price)

	order.ToGoodTillCancel(97)
	assert.Equal(t, Price(97), order.Price)
	assert.Equal(t, GoodTillCancel, order.Type)
}

func TestToGoodTillCancel_NonMarketPanics(t *testing.T) {
	order := NewOrder(GoodTillCancel, 1, Sell, 100, 10)

	assert.Panics(t, func() { order.ToGoodTillCancel(97) })
}
