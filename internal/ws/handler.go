// Package ws streams backend events (network transitions, session
// lifecycle) to the UI over a WebSocket connection.
package ws

import (
	"net/http"
	"time"

	"github.com/agentkube/desktop/backend/internal/events"
	"github.com/agentkube/desktop/backend/internal/logging"
	"github.com/agentkube/desktop/backend/internal/monitoring"
	"github.com/agentkube/desktop/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// the UI webview connects from a custom scheme
		return true
	},
}

const writeTimeout = 10 * time.Second

// Handler manages WebSocket connections
type Handler struct {
	bus     *events.Bus
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler
func NewHandler(bus *events.Bus, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handler{bus: bus, log: log, metrics: metrics}
}

// HandleConnection upgrades the request and forwards bus events until the
// client disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	ch, cancel := h.bus.Subscribe()
	defer cancel()

	// reader: detects disconnect and surfaces pings; all writes happen on
	// this goroutine since the connection allows a single writer
	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(done)
		for {
			var msg types.WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	h.send(conn, events.Event{Type: "system", Payload: "connected"})

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if !h.send(conn, evt) {
				return
			}
		case <-pings:
			if !h.send(conn, events.Event{Type: "pong"}) {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, evt events.Event) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(evt); err != nil {
		h.log.Debug("websocket write failed", zap.Error(err))
		return false
	}
	return true
}
