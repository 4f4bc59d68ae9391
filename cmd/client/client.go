package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/TUTULEMAN/Orderbook/internal/common"
	obnet "github.com/TUTULEMAN/Orderbook/internal/net"
)

func main() {
	// 1. CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	owner := flag.String("owner", "", "Owner username (compulsory)")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'modify']")

	// Order Parameters
	id := flag.Uint("id", 1, "Order id (client chosen, unique per live order)")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "gtc", "Order type: 'gtc', 'fak', 'fok', 'gfd' or 'market'")
	price := flag.Int("price", 100, "Limit price in ticks")
	qty := flag.Uint("qty", 10, "Quantity")

	flag.Parse()

	// Validation
	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	side, err := parseSide(*sideStr)
	if err != nil {
		log.Fatal(err)
	}
	orderType, err := parseOrderType(*typeStr)
	if err != nil {
		log.Fatal(err)
	}

	// Connect to Server
	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s as '%s'\n", *serverAddr, *owner)

	// Start Listening for Reports (Async)
	go readReports(conn)

	// Execute Action
	switch strings.ToLower(*action) {
	case "place":
		err := sendPlaceOrder(conn, *owner, common.OrderId(*id), orderType, side, common.Price(*price), common.Quantity(*qty))
		if err != nil {
			log.Fatalf("Failed to place order: %v", err)
		}
		fmt.Printf("-> Sent %s %s Order: id %d, %d @ %d\n",
			strings.ToUpper(*sideStr), orderType, *id, *qty, *price)

	case "cancel":
		if err := sendCancelOrder(conn, common.OrderId(*id)); err != nil {
			log.Fatalf("Failed to send cancel request: %v", err)
		}
		fmt.Printf("-> Sent Cancel Request for id %d\n", *id)

	case "modify":
		err := sendModifyOrder(conn, common.OrderId(*id), side, common.Price(*price), common.Quantity(*qty))
		if err != nil {
			log.Fatalf("Failed to send modify request: %v", err)
		}
		fmt.Printf("-> Sent Modify Request for id %d: %s %d @ %d\n", *id, *sideStr, *qty, *price)

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	// Keep the client alive to receive execution reports
	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

func parseSide(input string) (common.Side, error) {
	switch strings.ToLower(input) {
	case "buy":
		return common.Buy, nil
	case "sell":
		return common.Sell, nil
	}
	return common.Buy, fmt.Errorf("unknown side: %s", input)
}

func parseOrderType(input string) (common.OrderType, error) {
	switch strings.ToLower(input) {
	case "gtc":
		return common.GoodTillCancel, nil
	case "fak", "ioc":
		return common.FillAndKill, nil
	case "fok":
		return common.FillOrKill, nil
	case "gfd":
		return common.GoodForDay, nil
	case "market":
		return common.Market, nil
	}
	return common.GoodTillCancel, fmt.Errorf("unknown order type: %s", input)
}

// sendPlaceOrder constructs and sends the NewOrder message
func sendPlaceOrder(conn net.Conn, owner string, id common.OrderId, orderType common.OrderType, side common.Side, price common.Price, qty common.Quantity) error {
	usernameLen := len(owner)
	totalLen := obnet.BaseMessageHeaderLen + obnet.NewOrderMessageHeaderLen + usernameLen

	buf := make([]byte, totalLen)

	// 1. Header (TypeOf = NewOrder)
	binary.BigEndian.PutUint16(buf[0:2], uint16(obnet.NewOrder))

	// 2. Body
	binary.BigEndian.PutUint32(buf[2:6], uint32(id))
	binary.BigEndian.PutUint16(buf[6:8], uint16(orderType))
	buf[8] = byte(side)
	binary.BigEndian.PutUint32(buf[9:13], uint32(price))
	binary.BigEndian.PutUint32(buf[13:17], uint32(qty))
	buf[17] = uint8(usernameLen)
	copy(buf[18:], owner)

	_, err := conn.Write(buf)
	return err
}

// sendCancelOrder constructs and sends the CancelOrder message
func sendCancelOrder(conn net.Conn, id common.OrderId) error {
	buf := make([]byte, obnet.BaseMessageHeaderLen+obnet.CancelOrderMessageHeaderLen)

	binary.BigEndian.PutUint16(buf[0:2], uint16(obnet.CancelOrder))
	binary.BigEndian.PutUint32(buf[2:6], uint32(id))

	_, err := conn.Write(buf)
	return err
}

// sendModifyOrder constructs and sends the ModifyOrder message
func sendModifyOrder(conn net.Conn, id common.OrderId, side common.Side, price common.Price, qty common.Quantity) error {
	buf := make([]byte, obnet.BaseMessageHeaderLen+obnet.ModifyOrderMessageHeaderLen)

	binary.BigEndian.PutUint16(buf[0:2], uint16(obnet.ModifyOrder))
	binary.BigEndian.PutUint32(buf[2:6], uint32(id))
	buf[6] = byte(side)
	binary.BigEndian.PutUint32(buf[7:11], uint32(price))
	binary.BigEndian.PutUint32(buf[11:15], uint32(qty))

	_, err := conn.Write(buf)
	return err
}

// readReports continuously reads and parses Report messages from the server
func readReports(conn net.Conn) {
	for {
		// 1. Read Fixed Header
		headerBuf := make([]byte, obnet.ReportFixedHeaderLen)
		_, err := io.ReadFull(conn, headerBuf)
		if err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			os.Exit(0)
		}

		// 2. Parse Fixed Fields
		msgType := obnet.ReportMessageType(headerBuf[0])
		side := common.Side(headerBuf[1])
		id := binary.BigEndian.Uint32(headerBuf[2:6])
		price := int32(binary.BigEndian.Uint32(headerBuf[6:10]))
		qty := binary.BigEndian.Uint32(headerBuf[10:14])
		errStrLen := binary.BigEndian.Uint16(headerBuf[14:16])

		// 3. Read Variable Length Error String
		errStr := ""
		if errStrLen > 0 {
			varBuf := make([]byte, errStrLen)
			if _, err := io.ReadFull(conn, varBuf); err != nil {
				log.Printf("Error reading report body: %v", err)
				break
			}
			errStr = string(varBuf)
		}

		// 4. Print Report
		if msgType == obnet.ErrorReport {
			fmt.Printf("\n[SERVER ERROR] %s\n", errStr)
		} else {
			sideStr := "BUY"
			if side == common.Sell {
				sideStr = "SELL"
			}
			fmt.Printf("\n[EXECUTION] %s | Order: %d | Qty: %d | Price: %d\n",
				sideStr, id, qty, price)
		}
	}
}
