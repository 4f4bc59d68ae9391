package net

import (
	"encoding/binary"
	"errors"

	"github.com/TUTULEMAN/Orderbook/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrInvalidOrderType   = errors.New("invalid order type")
	ErrInvalidSide        = errors.New("invalid side")
	ErrZeroQuantity       = errors.New("quantity must be positive")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	ModifyOrder
)

type ReportMessageType int

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants
const (
	BaseMessageHeaderLen        = 2
	NewOrderMessageHeaderLen    = 4 + 2 + 1 + 4 + 4 + 1
	CancelOrderMessageHeaderLen = 4
	ModifyOrderMessageHeaderLen = 4 + 1 + 4 + 4
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, ErrMessageTooShort
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case NewOrder:
		return parseNewOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	case ModifyOrder:
		return parseModifyOrder(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

func parseSide(b byte) (common.Side, error) {
	side := common.Side(b)
	if side != common.Buy && side != common.Sell {
		return side, ErrInvalidSide
	}
	return side, nil
}

type NewOrderMessage struct {
	BaseMessage
	OrderID     common.OrderId   // 4 bytes
	OrderType   common.OrderType // 2 bytes
	Side        common.Side      // 1 byte
	Price       common.Price     // 4 bytes
	Quantity    common.Quantity  // 4 bytes
	UsernameLen uint8            // 1 byte
	Username    string           // n bytes
}

// Order converts the wire message into the domain order. The price field
// is ignored for market orders; they are pinned to the worst opposite
// price at admission.
func (m *NewOrderMessage) Order() (*common.Order, error) {
	if m.Quantity == 0 {
		return nil, ErrZeroQuantity
	}
	switch m.OrderType {
	case common.Market:
		return common.NewMarketOrder(m.OrderID, m.Side, m.Quantity), nil
	case common.GoodTillCancel, common.FillAndKill, common.FillOrKill, common.GoodForDay:
		return common.NewOrder(m.OrderType, m.OrderID, m.Side, m.Price, m.Quantity), nil
	default:
		return nil, ErrInvalidOrderType
	}
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.OrderID = common.OrderId(binary.BigEndian.Uint32(msg[0:4]))
	m.OrderType = common.OrderType(binary.BigEndian.Uint16(msg[4:6]))

	side, err := parseSide(msg[6])
	if err != nil {
		return NewOrderMessage{}, err
	}
	m.Side = side

	m.Price = common.Price(binary.BigEndian.Uint32(msg[7:11]))
	m.Quantity = common.Quantity(binary.BigEndian.Uint32(msg[11:15]))
	m.UsernameLen = msg[15]

	if len(msg) < NewOrderMessageHeaderLen+int(m.UsernameLen) {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Username = string(msg[16 : 16+m.UsernameLen])

	return m, nil
}

type CancelOrderMessage struct {
	BaseMessage
	OrderID common.OrderId // 4 bytes
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}

	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m.OrderID = common.OrderId(binary.BigEndian.Uint32(msg[0:4]))

	return m, nil
}

type ModifyOrderMessage struct {
	BaseMessage
	OrderID  common.OrderId  // 4 bytes
	Side     common.Side     // 1 byte
	Price    common.Price    // 4 bytes
	Quantity common.Quantity // 4 bytes
}

func parseModifyOrder(msg []byte) (ModifyOrderMessage, error) {
	m := ModifyOrderMessage{BaseMessage: BaseMessage{TypeOf: ModifyOrder}}

	if len(msg) < ModifyOrderMessageHeaderLen {
		return ModifyOrderMessage{}, ErrMessageTooShort
	}
	m.OrderID = common.OrderId(binary.BigEndian.Uint32(msg[0:4]))

	side, err := parseSide(msg[4])
	if err != nil {
		return ModifyOrderMessage{}, err
	}
	m.Side = side

	m.Price = common.Price(binary.BigEndian.Uint32(msg[5:9]))
	m.Quantity = common.Quantity(binary.BigEndian.Uint32(msg[9:13]))

	return m, nil
}

// Report is the execution or error notification sent back to a client.
type Report struct {
	MessageType ReportMessageType // 1 byte
	Side        common.Side       // 1 byte
	OrderID     common.OrderId    // 4 bytes
	Price       common.Price      // 4 bytes
	Quantity    common.Quantity   // 4 bytes
	ErrStrLen   uint16            // 2 bytes
	Err         string            // n bytes
}

const ReportFixedHeaderLen = 1 + 1 + 4 + 4 + 4 + 2

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() []byte {
	buf := make([]byte, ReportFixedHeaderLen+len(r.Err))
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint32(buf[2:6], uint32(r.OrderID))
	binary.BigEndian.PutUint32(buf[6:10], uint32(r.Price))
	binary.BigEndian.PutUint32(buf[10:14], uint32(r.Quantity))
	binary.BigEndian.PutUint16(buf[14:16], r.ErrStrLen)
	copy(buf[ReportFixedHeaderLen:], r.Err)
	return buf
}

// generateWireTradeReports builds the two execution reports a trade
// produces, one addressed to each leg's owner.
func generateWireTradeReports(trade common.Trade) (bid []byte, ask []byte) {
	bidReport := Report{
		MessageType: ExecutionReport,
		Side:        common.Buy,
		OrderID:     trade.Bid.OrderID,
		Price:       trade.Bid.Price,
		Quantity:    trade.Bid.Quantity,
	}
	askReport := Report{
		MessageType: ExecutionReport,
		Side:        common.Sell,
		OrderID:     trade.Ask.OrderID,
		Price:       trade.Ask.Price,
		Quantity:    trade.Ask.Quantity,
	}
	return bidReport.Serialize(), askReport.Serialize()
}

func generateWireErrorReport(err error) []byte {
	errStr := err.Error()
	report := Report{
		MessageType: ErrorReport,
		ErrStrLen:   uint16(len(errStr)),
		Err:         errStr,
	}
	return report.Serialize()
}
