package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/TUTULEMAN/Orderbook/internal/common"
)

// Reporter receives completed trades and client-addressed errors. The
// access layer implements it.
type Reporter interface {
	ReportTrade(trade common.Trade) error
	ReportError(client string, err error) error
}

// Engine fronts the order book for the access layer: it applies client
// operations and fans the resulting tape out to the reporter.
type Engine struct {
	book     *Orderbook
	reporter Reporter
}

func New() *Engine {
	return &Engine{book: NewOrderbook()}
}

func (e *Engine) SetReporter(reporter Reporter) {
	e.reporter = reporter
}

func (e *Engine) Book() *Orderbook {
	return e.book
}

// Submit places an order and reports every trade it produced. An empty
// tape means the order either rested without crossing or was rejected at
// admission.
func (e *Engine) Submit(order *common.Order) []common.Trade {
	trades := e.book.AddOrder(order)
	e.report(trades)
	return trades
}

func (e *Engine) Cancel(id common.OrderId) {
	e.book.CancelOrder(id)
}

func (e *Engine) Modify(id common.OrderId, side common.Side, price common.Price, quantity common.Quantity) []common.Trade {
	trades := e.book.ModifyOrder(id, side, price, quantity)
	e.report(trades)
	return trades
}

func (e *Engine) Close() error {
	return e.book.Close()
}

func (e *Engine) report(trades []common.Trade) {
	if e.reporter == nil {
		return
	}
	for _, trade := range trades {
		if err := e.reporter.ReportTrade(trade); err != nil {
			log.Error().Err(err).Msg("unable to report trade")
		}
	}
}
