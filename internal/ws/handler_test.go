package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentkube/desktop/backend/internal/events"
	"github.com/agentkube/desktop/backend/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestStream(t *testing.T, bus *events.Bus) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(bus, logging.NewNop(), nil)
	router.GET("/stream", handler.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var evt events.Event
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestStreamDeliversBusEvents(t *testing.T) {
	bus := events.New()
	conn := dialTestStream(t, bus)

	evt := readEvent(t, conn)
	assert.Equal(t, "system", evt.Type)

	// wait until the handler has subscribed before publishing
	require.Eventually(t, func() bool { return bus.Subscribers() > 0 },
		2*time.Second, 10*time.Millisecond)

	bus.Publish(events.Event{Type: events.TypeSessionCreated, Payload: "term_x"})

	evt = readEvent(t, conn)
	assert.Equal(t, events.TypeSessionCreated, evt.Type)
	assert.Equal(t, "term_x", evt.Payload)
}

func TestStreamAnswersPing(t *testing.T) {
	bus := events.New()
	conn := dialTestStream(t, bus)

	evt := readEvent(t, conn)
	require.Equal(t, "system", evt.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	evt = readEvent(t, conn)
	assert.Equal(t, "pong", evt.Type)
}
