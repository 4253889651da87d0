package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Kerhoff/synclist/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

var (
	// ErrSessionClosed is returned when sending to a closed session
	ErrSessionClosed = errors.New("session closed")
	// ErrSlowSession is returned when a session's outbound buffer is full.
	// The session is closed when this happens.
	ErrSlowSession = errors.New("session outbound buffer full")
)

// Session is one WebSocket connection bound to a list and a device. It lives
// exactly as long as the transport.
type Session struct {
	id       string
	listID   string
	deviceID string

	conn      *websocket.Conn
	send      chan []byte
	open      *atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	logger    *logrus.Entry
}

func newSession(conn *websocket.Conn, listID, deviceID string, logger *logrus.Logger) *Session {
	id := ulid.Make().String()
	return &Session{
		id:       id,
		listID:   listID,
		deviceID: deviceID,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		open:     atomic.NewBool(true),
		done:     make(chan struct{}),
		logger: logger.WithFields(logrus.Fields{
			"session_id": id,
			"list_id":    listID,
			"device_id":  deviceID,
		}),
	}
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// ListID returns the list this session is viewing
func (s *Session) ListID() string { return s.listID }

// DeviceID returns the device that opened the session
func (s *Session) DeviceID() string { return s.deviceID }

// IsOpen reports whether the session still accepts outbound messages
func (s *Session) IsOpen() bool { return s.open.Load() }

// Send queues msg for delivery without blocking.
func (s *Session) Send(msg []byte) error {
	if !s.open.Load() {
		return ErrSessionClosed
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	case s.send <- msg:
		return nil
	default:
		metrics.DroppedSessions.Inc()
		s.logger.Warn("Outbound buffer full, closing session")
		s.Close()
		return ErrSlowSession
	}
}

// Close stops the session. The write loop sends a close frame and tears
// down the connection, which ends the read loop.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.open.Store(false)
		close(s.done)
	})
}

// run pumps messages until the connection ends. handle is called for every
// inbound message on the calling goroutine, so one session's actions are
// handled in the order they arrived.
func (s *Session) run(handle func(raw []byte)) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()

	s.readLoop(handle)
	s.Close()
	<-writerDone
}

func (s *Session) readLoop(handle func(raw []byte)) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.WithError(err).Info("Connection closed unexpectedly")
			}
			return
		}
		handle(raw)
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.WithError(err).Debug("Write failed")
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			s.flush()
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever is still buffered when the session closes.
func (s *Session) flush() {
	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
