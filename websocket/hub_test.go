package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-booking-server/logging"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func connect(t *testing.T, hub *Hub, userID uint) *Client {
	t.Helper()
	before := hub.ConnectedCount()
	c := NewClient(hub, nil, userID, "user")
	hub.Register <- c
	require.Eventually(t, func() bool { return hub.ConnectedCount() == before+1 }, time.Second, 5*time.Millisecond)
	return c
}

func next(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("no message")
		return Message{}
	}
}

func assertQuiet(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected message %s", raw)
	default:
	}
}

func TestHub_ScopedAndGlobalDelivery(t *testing.T) {
	hub := startHub(t)
	watcher := connect(t, hub, 1)
	other := connect(t, hub, 2)

	hub.Dispatch(watcher, []byte(`{"type":"subscribe","court_id":3}`))
	assert.Equal(t, "subscribed", next(t, watcher).Type)
	assert.Equal(t, 1, hub.RoomSize(3))

	require.NoError(t, hub.EmitScoped(context.Background(), 3, "booking_updated", map[string]any{"booking_id": 9}))
	m := next(t, watcher)
	assert.Equal(t, "booking_updated", m.Type)
	assert.Equal(t, uint(3), m.CourtID)
	assertQuiet(t, other)

	require.NoError(t, hub.EmitGlobal(context.Background(), "booking_global_updated", map[string]any{"booking_id": 9}))
	assert.Equal(t, "booking_global_updated", next(t, watcher).Type)
	assert.Equal(t, "booking_global_updated", next(t, other).Type)

	hub.Dispatch(watcher, []byte(`{"type":"unsubscribe","court_id":3}`))
	assert.Equal(t, "unsubscribed", next(t, watcher).Type)
	assert.Equal(t, 0, hub.RoomSize(3))
}

func TestHub_PingAndBadFrames(t *testing.T) {
	hub := startHub(t)
	c := connect(t, hub, 1)

	hub.Dispatch(c, []byte(`{"type":"ping"}`))
	assert.Equal(t, "pong", next(t, c).Type)

	hub.Dispatch(c, []byte(`not json`))
	assert.Equal(t, "error", next(t, c).Type)

	hub.Dispatch(c, []byte(`{"type":"dance"}`))
	assert.Equal(t, "error", next(t, c).Type)

	hub.Dispatch(c, []byte(`{"type":"subscribe"}`))
	assert.Equal(t, "error", next(t, c).Type)
}

func TestHub_UnregisterLeavesRooms(t *testing.T) {
	hub := startHub(t)
	c := connect(t, hub, 1)
	hub.Join(c, 5)
	require.Equal(t, 1, hub.RoomSize(5))

	hub.Unregister <- c
	require.Eventually(t, func() bool { return hub.ConnectedCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.RoomSize(5))

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.ErrorIs(t, c.SendMessage(&Message{Type: "pong"}), ErrClientGone)
}

func TestHub_DetachAfterStopReturns(t *testing.T) {
	hub := NewHub(logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := NewClient(hub, nil, 1, "user")
	require.True(t, hub.Attach(c))
	cancel()
	<-stopped

	detached := make(chan struct{})
	go func() {
		hub.Detach(c)
		close(detached)
	}()
	select {
	case <-detached:
	case <-time.After(time.Second):
		t.Fatal("Detach blocked on a stopped hub")
	}
	assert.False(t, hub.Attach(NewClient(hub, nil, 2, "user")))
}

func TestHub_FullBufferDropsClient(t *testing.T) {
	hub := startHub(t)
	slow := connect(t, hub, 1)

	for i := 0; i < cap(slow.Send)+1; i++ {
		require.NoError(t, hub.EmitGlobal(context.Background(), "booking_global_updated", i))
	}
	assert.Equal(t, 0, hub.ConnectedCount())
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	up := NewUpgrader([]string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, up.CheckOrigin(req))
}
