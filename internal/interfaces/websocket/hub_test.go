package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/eventbus"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/monitoring"
)

func startHub(t *testing.T) (*Hub, *eventbus.InMemoryBus, *monitoring.Metrics, string) {
	t.Helper()

	bus := eventbus.NewInMemoryBus(zap.NewNop(), 16)
	t.Cleanup(bus.Close)
	metrics := monitoring.NewMetrics()
	hub := NewHub(bus, metrics, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, bus, metrics, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastsBusEvents(t *testing.T) {
	hub, bus, metrics, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return testutil.ToFloat64(metrics.WebsocketClients) == 2 }, 2*time.Second, 10*time.Millisecond)

	bus.Publish(context.Background(), eventbus.NewEvent(eventbus.EventTypePromptActivated,
		eventbus.ChangePayload{Entity: "prompt", ID: 7, IAID: 3, Version: 2}))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, MessageTypeEvent, msg.Type)
		assert.Equal(t, eventbus.EventTypePromptActivated, msg.Event)

		payload, ok := msg.Payload.(map[string]any)
		require.True(t, ok, "payload: %#v", msg.Payload)
		assert.Equal(t, "prompt", payload["entity"])
		assert.Equal(t, 7.0, payload["id"])
		assert.Equal(t, 3.0, payload["ia_id"])
	}
}

func TestHub_PingPong(t *testing.T) {
	hub, _, _, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: MessageTypePing}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypePong, msg.Type)
	assert.NotZero(t, msg.Timestamp)
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, _, metrics, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_ = conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return testutil.ToFloat64(metrics.WebsocketClients) == 0 }, 2*time.Second, 10*time.Millisecond)
}
