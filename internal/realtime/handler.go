package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/synclist/internal/metrics"
)

// Handler upgrades HTTP requests to WebSocket sessions. The URL must carry
// listId and deviceId query parameters.
type Handler struct {
	registry   *RoomRegistry
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	logger     *logrus.Logger
}

// NewHandler creates the WebSocket endpoint. checkOrigin may be nil to accept
// any origin.
func NewHandler(registry *RoomRegistry, dispatcher *Dispatcher, logger *logrus.Logger, checkOrigin func(*http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade connection")
		return
	}

	q := r.URL.Query()
	listID, deviceID := q.Get("listId"), q.Get("deviceId")
	if listID == "" || deviceID == "" {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "listId and deviceId are required"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	session := newSession(conn, listID, deviceID, h.logger)
	h.registry.Join(listID, session)
	metrics.ActiveSessions.Inc()
	session.logger.Info("Session joined")

	defer func() {
		h.registry.Leave(listID, session)
		metrics.ActiveSessions.Dec()
		session.logger.Info("Session left")
	}()

	ctx := r.Context()
	session.run(func(raw []byte) {
		h.dispatcher.Handle(ctx, session, raw)
	})
}
