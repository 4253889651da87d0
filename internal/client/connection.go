package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Kerhoff/synclist/internal/models"
)

// Status is the connection state reported to observers.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

const (
	defaultBackoffInitial = time.Second
	defaultBackoffMax     = 30 * time.Second
	defaultWriteTimeout   = 10 * time.Second
)

// Option configures a ConnectionManager
type Option func(*ConnectionManager)

// WithBackoff sets the reconnect delay range
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(m *ConnectionManager) {
		m.backoff = NewBackoff(initial, maxDelay)
	}
}

// WithDialer replaces the default WebSocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(m *ConnectionManager) {
		m.dialer = d
	}
}

// WithWriteTimeout bounds a single write. A write that does not finish in
// time drops the transport and triggers a reconnect.
func WithWriteTimeout(d time.Duration) Option {
	return func(m *ConnectionManager) {
		m.writeTimeout = d
	}
}

// link is one open transport and the actions waiting to be written to it.
// Only its writer goroutine writes to conn and flushes unsent actions.
type link struct {
	gen      uint64
	conn     *websocket.Conn
	outbox   []models.Action // guarded by ConnectionManager.mu
	wake     chan struct{}
	done     chan struct{}
	finished chan struct{}
	once     sync.Once
}

func newLink(gen uint64, conn *websocket.Conn) *link {
	return &link{
		gen:      gen,
		conn:     conn,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (l *link) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// close tears the transport down. Blocked reads and writes return at once.
func (l *link) close() {
	l.once.Do(func() {
		_ = l.conn.Close()
		close(l.done)
	})
}

// ConnectionManager owns the single live transport for one list and device.
// It reconnects with exponential backoff until Disconnect is called and
// queues outbound actions while no transport is open.
type ConnectionManager struct {
	baseURL      *url.URL
	dialer       *websocket.Dialer
	queue        *PendingActionQueue
	logger       *logrus.Logger
	writeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	listID      string
	deviceID    string
	link        *link
	generation  uint64
	intentional bool
	backoff     *Backoff
	timer       *time.Timer
	status      *atomic.String

	events   listenerSet[models.ServerEvent]
	statuses listenerSet[Status]
	notify   *notifier
}

// NewConnectionManager creates a manager dialing wsURL. Nothing is dialed
// until Connect is called.
func NewConnectionManager(wsURL string, queue *PendingActionQueue, logger *logrus.Logger, opts ...Option) (*ConnectionManager, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("websocket url must use ws or wss, got %q", u.Scheme)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &ConnectionManager{
		baseURL:      u,
		dialer:       websocket.DefaultDialer,
		queue:        queue,
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
		backoff:      NewBackoff(defaultBackoffInitial, defaultBackoffMax),
		status:       atomic.NewString(string(StatusDisconnected)),
		notify:       newNotifier(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Connect targets listID and deviceID and opens a transport. Calling it again
// with other identifiers retargets the manager.
func (m *ConnectionManager) Connect(listID, deviceID string) {
	m.mu.Lock()
	m.listID, m.deviceID = listID, deviceID
	m.intentional = false
	m.stopTimerLocked()
	m.generation++
	gen := m.generation
	old := m.link
	m.mu.Unlock()

	if old != nil {
		old.close()
	}
	go m.open(gen)
}

// Disconnect closes the transport and stops reconnecting. Actions that were
// not written yet are moved to the offline queue before it returns.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	// must be set before the close so the writer does not schedule a reconnect
	m.intentional = true
	m.generation++
	m.stopTimerLocked()
	l := m.link
	m.setStatusLocked(StatusDisconnected)
	m.mu.Unlock()

	if l == nil {
		return
	}
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(m.writeTimeout))
	l.close()
	<-l.finished
}

// Close disconnects and releases the manager. Pending notifications are
// still delivered.
func (m *ConnectionManager) Close() {
	m.Disconnect()
	m.cancel()
	m.notify.close()
}

// Send hands action to the open transport's writer, or queues it durably when
// there is none. It never waits on the network. Failures are logged, never
// returned.
func (m *ConnectionManager) Send(action models.Action) {
	m.mu.Lock()
	if l := m.link; l != nil {
		l.outbox = append(l.outbox, action)
		m.mu.Unlock()
		l.signal()
		return
	}
	// enqueue under mu so a transport opening now drains this action
	defer m.mu.Unlock()
	if err := m.queue.Enqueue(m.ctx, action); err != nil {
		m.logger.WithError(err).WithField("action", action.Type).Error("Failed to queue action")
	}
}

// Status returns the current connection state
func (m *ConnectionManager) Status() Status {
	return Status(m.status.Load())
}

// OnEvent registers fn for every server event
func (m *ConnectionManager) OnEvent(fn func(models.ServerEvent)) Subscription {
	return m.events.add(fn)
}

// OnStatusChange registers fn for every status transition
func (m *ConnectionManager) OnStatusChange(fn func(Status)) Subscription {
	return m.statuses.add(fn)
}

func (m *ConnectionManager) open(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.intentional {
		m.mu.Unlock()
		return
	}
	target := m.targetLocked()
	prev := m.link
	m.setStatusLocked(StatusConnecting)
	m.mu.Unlock()

	// the previous writer must have flushed to the queue before the next drain
	if prev != nil {
		<-prev.finished
	}

	conn, _, err := m.dialer.DialContext(m.ctx, target, nil)
	if err != nil {
		m.logger.WithError(err).Debug("Dial failed")
		m.handleClosed(gen)
		return
	}

	m.mu.Lock()
	if gen != m.generation || m.intentional {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	l := newLink(gen, conn)
	m.link = l
	m.backoff.Reset()
	m.setStatusLocked(StatusConnected)
	m.mu.Unlock()

	go m.readLoop(l)
	go m.writeLoop(l)
}

func (m *ConnectionManager) readLoop(l *link) {
	for {
		_, raw, err := l.conn.ReadMessage()
		if err != nil {
			l.close()
			return
		}

		var event models.ServerEvent
		if err := json.Unmarshal(raw, &event); err != nil || event.Type == "" {
			m.logger.Debug("Dropping malformed server message")
			continue
		}
		m.emitEvent(event)
	}
}

// writeLoop drains the offline queue, then writes the outbox until the link
// closes. Any write error closes the link.
func (m *ConnectionManager) writeLoop(l *link) {
	defer close(l.finished)

	n, err := m.queue.DrainAndSend(m.ctx, func(action models.Action) error {
		return m.write(l.conn, action)
	})
	if n > 0 {
		m.logger.Infof("Delivered %d queued actions", n)
	}
	if err != nil {
		m.logger.WithError(err).Warn("Offline queue drain interrupted")
		l.close()
	}

	for {
		select {
		case <-l.done:
			m.flush(l)
			m.handleClosed(l.gen)
			return
		case <-l.wake:
		}

		for {
			action, ok := m.nextOutbound(l)
			if !ok {
				break
			}
			if err := m.write(l.conn, action); err != nil {
				m.logger.WithError(err).WithField("action", action.Type).Warn("Write failed, dropping transport")
				l.close()
				break
			}
			m.mu.Lock()
			l.outbox = l.outbox[1:]
			m.mu.Unlock()
		}
	}
}

// nextOutbound peeks at the head of the outbox. The action stays there until
// it was written, so a failed write leaves it for the flush.
func (m *ConnectionManager) nextOutbound(l *link) (models.Action, bool) {
	select {
	case <-l.done:
		return models.Action{}, false
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(l.outbox) == 0 {
		return models.Action{}, false
	}
	return l.outbox[0], true
}

// flush moves the unwritten outbox to the offline queue and detaches the
// link, so later Sends queue behind these actions.
func (m *ConnectionManager) flush(l *link) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := l.outbox
	l.outbox = nil
	if m.link == l {
		m.link = nil
	}
	if err := m.queue.Enqueue(m.ctx, pending...); err != nil {
		m.logger.WithError(err).Errorf("Failed to queue %d unsent actions", len(pending))
	}
}

// handleClosed reacts to a transport that ended without Disconnect.
func (m *ConnectionManager) handleClosed(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.intentional {
		return
	}
	m.setStatusLocked(StatusDisconnected)

	delay := m.backoff.Next()
	m.logger.Debugf("Reconnecting in %s", delay)
	m.stopTimerLocked()
	m.timer = time.AfterFunc(delay, func() { m.reconnect(gen) })
}

func (m *ConnectionManager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.intentional {
		m.mu.Unlock()
		return
	}
	m.generation++
	next := m.generation
	m.timer = nil
	m.mu.Unlock()

	m.open(next)
}

func (m *ConnectionManager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *ConnectionManager) targetLocked() string {
	u := *m.baseURL
	q := u.Query()
	q.Set("listId", m.listID)
	q.Set("deviceId", m.deviceID)
	u.RawQuery = q.Encode()
	return u.String()
}

// setStatusLocked records status and notifies observers when it changed.
func (m *ConnectionManager) setStatusLocked(status Status) {
	if Status(m.status.Load()) == status {
		return
	}
	m.status.Store(string(status))
	m.logger.WithField("status", status).Debug("Connection status changed")
	snapshot := m.statuses.snapshot()
	m.notify.post(func() { deliver(snapshot, status) })
}

func (m *ConnectionManager) emitEvent(event models.ServerEvent) {
	snapshot := m.events.snapshot()
	m.notify.post(func() { deliver(snapshot, event) })
}

func (m *ConnectionManager) write(conn *websocket.Conn, action models.Action) error {
	_ = conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
	return conn.WriteJSON(action)
}
