package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/go-classroom-api/internal/realtime"
)

func dialTestServer(t *testing.T, registry *realtime.Registry) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewHandler(registry, zap.NewNop()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitForSubscribers polls until the channel reaches want subscribers; join is
// processed asynchronously by the connection's read loop.
func waitForSubscribers(t *testing.T, registry *realtime.Registry, channel string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if registry.Subscribers(channel) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, want, registry.Subscribers(channel))
}

func TestHandler_JoinRoomAndReceiveBroadcast(t *testing.T) {
	registry := realtime.NewRegistry(zap.NewNop())
	conn := dialTestServer(t, registry)

	require.NoError(t, conn.WriteJSON(inboundFrame{Action: actionJoinRoom, Room: "g1"}))
	waitForSubscribers(t, registry, "g1", 1)

	delivered := registry.Broadcast("g1", "newGroupMessage", map[string]string{"id": "m1"})
	assert.Equal(t, 1, delivered)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "newGroupMessage", frame.Event)
	assert.Equal(t, "m1", frame.Data["id"])
}

func TestHandler_LeaveRoomStopsDelivery(t *testing.T) {
	registry := realtime.NewRegistry(zap.NewNop())
	conn := dialTestServer(t, registry)

	require.NoError(t, conn.WriteJSON(inboundFrame{Action: actionJoinRoom, Room: "g1"}))
	waitForSubscribers(t, registry, "g1", 1)

	require.NoError(t, conn.WriteJSON(inboundFrame{Action: actionLeaveRoom, Room: "g1"}))
	waitForSubscribers(t, registry, "g1", 0)

	assert.Equal(t, 0, registry.Broadcast("g1", "newGroupMessage", nil))
}

func TestHandler_DisconnectCleansUpMemberships(t *testing.T) {
	registry := realtime.NewRegistry(zap.NewNop())
	conn := dialTestServer(t, registry)

	require.NoError(t, conn.WriteJSON(inboundFrame{Action: actionJoinRoom, Room: "g1"}))
	require.NoError(t, conn.WriteJSON(inboundFrame{Action: actionJoinRoom, Room: "g2"}))
	waitForSubscribers(t, registry, "g1", 1)
	waitForSubscribers(t, registry, "g2", 1)

	require.NoError(t, conn.Close())
	waitForSubscribers(t, registry, "g1", 0)
	waitForSubscribers(t, registry, "g2", 0)
}

func TestHandler_UnknownActionIgnored(t *testing.T) {
	registry := realtime.NewRegistry(zap.NewNop())
	conn := dialTestServer(t, registry)

	require.NoError(t, conn.WriteJSON(inboundFrame{Action: "shout", Room: "g1"}))
	require.NoError(t, conn.WriteJSON(inboundFrame{Action: actionJoinRoom, Room: "g1"}))
	waitForSubscribers(t, registry, "g1", 1)
}
