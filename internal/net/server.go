package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/TUTULEMAN/Orderbook/internal/common"
	"github.com/TUTULEMAN/Orderbook/internal/engine"
	"github.com/TUTULEMAN/Orderbook/internal/utils"
)

const (
	MAX_RECV_SIZE      = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
	ErrOrderRejected      = errors.New("order rejected")
)

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	id   uuid.UUID
	conn net.Conn
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

type Server struct {
	address            string
	port               int
	engine             *engine.Engine
	pool               utils.WorkerPool
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage

	// Order ownership, so execution reports can be routed back to the
	// session that placed each leg.
	orderOwners     map[common.OrderId]string
	orderOwnersLock sync.Mutex
}

func New(address string, port int, eng *engine.Engine) *Server {
	return &Server{
		address:        address,
		port:           port,
		engine:         eng,
		pool:           utils.NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
		orderOwners:    make(map[common.OrderId]string),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	// Start the worker pool.
	s.pool.Setup(t, s.handleConnection)

	// Start the session handler.
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Msg("server running")

	// Start accepting connections.
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")
			// Add the client to client sessions we are tracking.
			// We expect to potentially maintain a long TCP session.
			s.addClientSession(conn)

			// Pass over the connection to be read from.
			s.pool.AddTask(conn)
		}
	}
}

// ReportTrade routes the two execution reports of a trade to the sessions
// owning each leg. A leg whose owner has disconnected is dropped.
func (s *Server) ReportTrade(trade common.Trade) error {
	bidReport, askReport := generateWireTradeReports(trade)

	if err := s.sendToOwner(trade.Bid.OrderID, bidReport); err != nil {
		return fmt.Errorf("bid leg: %w", err)
	}
	if err := s.sendToOwner(trade.Ask.OrderID, askReport); err != nil {
		return fmt.Errorf("ask leg: %w", err)
	}
	return nil
}

// ReportError sends an error report to a specific client session.
func (s *Server) ReportError(clientAddress string, reported error) error {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return ErrClientDoesNotExist
	}

	if _, err := client.conn.Write(generateWireErrorReport(reported)); err != nil {
		delete(s.clientSessions, clientAddress)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

func (s *Server) sendToOwner(id common.OrderId, report []byte) error {
	s.orderOwnersLock.Lock()
	owner, ok := s.orderOwners[id]
	s.orderOwnersLock.Unlock()
	if !ok {
		return nil
	}

	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[owner]
	if !ok {
		return nil
	}
	if _, err := client.conn.Write(report); err != nil {
		delete(s.clientSessions, owner)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

// sessionHandler reads off incoming messages from clients and applies them
// to the matching engine. Messages are received from the pool of workers.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			s.handleMessage(message)
		}
	}
}

func (s *Server) handleMessage(clientMessage ClientMessage) {
	switch m := clientMessage.message.(type) {
	case NewOrderMessage:
		order, err := m.Order()
		if err != nil {
			log.Error().
				Err(err).
				Str("address", clientMessage.clientAddress).
				Msg("rejecting malformed order")
			if err := s.ReportError(clientMessage.clientAddress, err); err != nil {
				log.Error().Err(err).Msg("unable to report error")
			}
			return
		}

		// Register ownership before submitting; matching may fill the
		// order immediately and reports need a route back.
		s.setOrderOwner(order.ID, clientMessage.clientAddress)
		s.engine.Submit(order)

	case CancelOrderMessage:
		s.engine.Cancel(m.OrderID)
		s.deleteOrderOwner(m.OrderID)

	case ModifyOrderMessage:
		s.engine.Modify(m.OrderID, m.Side, m.Price, m.Quantity)

	case BaseMessage:
		// Heartbeat. Nothing to do; the read already refreshed the
		// session.

	default:
		log.Error().
			Str("address", clientMessage.clientAddress).
			Msg("unhandled message type")
	}
}

// handleConnection is a short-lived worker method which reads the next message off the
// connection, parses and passes it forward to sessionHandler to handle it. If the connection
// dies, the client session is cleaned up. This method does not lock any client session
// directly and gives up early if the connection is terminated. Therefore this method is
// thread safe on map accesses.
// Note, any error returned from here is fatal.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	// Set max read timeout.
	err := conn.SetDeadline(time.Now().Add(defaultConnTimeout))
	if err != nil {
		log.Error().
			Str("address", conn.RemoteAddr().String()).
			Err(err).
			Msg("failed setting deadline for connection")
		return nil
	}

	buffer := make([]byte, MAX_RECV_SIZE)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// Quiet connection; requeue and give other sessions a
				// turn on this worker.
				s.pool.AddTask(conn)
				return nil
			}

			// If a read from a client fails, it is likely that the client
			// has exited. Clean up the client session.
			s.deleteClientSession(conn.RemoteAddr().String())
			if err := conn.Close(); err != nil {
				log.Error().Str("address", conn.RemoteAddr().String()).Err(err).Msg("unable to close connection")
			}
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("error parsing message")
			if err := s.ReportError(conn.RemoteAddr().String(), err); err != nil {
				log.Error().Err(err).Msg("unable to report error")
			}
		} else {
			// Pass over to the message handling buffer.
			s.clientMessages <- ClientMessage{
				message:       message,
				clientAddress: conn.RemoteAddr().String(),
			}
		}

		// Push the client connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	session := ClientSession{
		id:   uuid.New(),
		conn: conn,
	}
	s.clientSessions[conn.RemoteAddr().String()] = session

	log.Debug().
		Str("session", session.id.String()).
		Str("address", conn.RemoteAddr().String()).
		Msg("session registered")
}

// deleteClientSession is an atomic map remove
func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, address)
}

func (s *Server) setOrderOwner(id common.OrderId, address string) {
	s.orderOwnersLock.Lock()
	defer s.orderOwnersLock.Unlock()

	s.orderOwners[id] = address
}

func (s *Server) deleteOrderOwner(id common.OrderId) {
	s.orderOwnersLock.Lock()
	defer s.orderOwnersLock.Unlock()

	delete(s.orderOwners, id)
}
