// ABOUTME: Tests live delivery through a real push channel and websocket server
// ABOUTME: Verifies the see/unsee lifecycle across conversation switches

package conversation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arham771790/Chat-Frontend/internal/api"
	"github.com/arham771790/Chat-Frontend/internal/push"
)

// pushServer accepts one websocket per userId and lets the test push frames.
type pushServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{conns: make(map[string]*websocket.Conn)}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ps.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ps.mu.Lock()
		ps.conns[r.URL.Query().Get("userId")] = conn
		ps.mu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *pushServer) send(t *testing.T, userID, event string, data any) {
	t.Helper()
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		conn = ps.conns[userID]
		return conn != nil
	}, time.Second, 5*time.Millisecond)

	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(push.Frame{Event: event, Data: payload}))
}

// drop closes userID's connection from the server side.
func (ps *pushServer) drop(t *testing.T, userID string) {
	t.Helper()
	ps.mu.Lock()
	conn := ps.conns[userID]
	delete(ps.conns, userID)
	ps.mu.Unlock()
	require.NotNil(t, conn)
	require.NoError(t, conn.Close())
}

func TestLiveDelivery_OpenAndSwitch(t *testing.T) {
	ps := newPushServer(t)
	channel, err := push.NewChannel(push.Options{URL: "ws" + strings.TrimPrefix(ps.srv.URL, "http")})
	require.NoError(t, err)
	t.Cleanup(channel.Disconnect)
	require.NoError(t, channel.Connect(t.Context(), "me"))

	backend := newFakeBackend()
	backend.history["u2"] = []api.Message{msg("m1", "u2", "me", "hi", "2024-01-01T10:00:00Z")}
	s, _ := newTestStore(t, backend, channel)

	require.NoError(t, s.Open(t.Context(), alice))
	assert.True(t, s.State().Seeing)
	assert.True(t, channel.HasHandler(push.EventNewMessage))

	ps.send(t, "me", push.EventNewMessage, msg("m2", "u2", "me", "live", "2024-01-01T10:01:00Z"))
	require.Eventually(t, func() bool { return len(s.State().Messages) == 2 }, time.Second, 5*time.Millisecond)

	// Switching re-registers the handler instead of failing on a duplicate
	require.NoError(t, s.Open(t.Context(), bob))
	assert.True(t, s.State().Seeing)
	assert.Empty(t, s.State().Messages)

	// Alice is no longer selected, so her message is dropped; Bob's lands
	ps.send(t, "me", push.EventNewMessage, msg("m3", "u2", "me", "ignored", "2024-01-01T10:02:00Z"))
	ps.send(t, "me", push.EventNewMessage, msg("m4", "u3", "me", "from bob", "2024-01-01T10:03:00Z"))
	require.Eventually(t, func() bool { return len(s.State().Messages) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "m4", s.State().Messages[0].ID)

	s.UnseeMessages()
	assert.False(t, s.State().Seeing)
	assert.False(t, channel.HasHandler(push.EventNewMessage))
}

func TestSeeMessages_NotConnected(t *testing.T) {
	channel, err := push.NewChannel(push.Options{URL: "ws://127.0.0.1:1/ws"})
	require.NoError(t, err)

	backend := newFakeBackend()
	backend.history["u2"] = []api.Message{msg("m1", "u2", "me", "hi", "")}
	s, _ := newTestStore(t, backend, channel)

	s.SetSelectedUser(&alice)
	assert.ErrorIs(t, s.SeeMessages(), push.ErrNotConnected)

	// Open still loads history without live delivery
	require.NoError(t, s.Open(t.Context(), alice))
	assert.Len(t, s.State().Messages, 1)
	assert.False(t, s.State().Seeing)
}

func TestLiveDelivery_FollowsReconnect(t *testing.T) {
	ps := newPushServer(t)
	channel, err := push.NewChannel(push.Options{URL: "ws" + strings.TrimPrefix(ps.srv.URL, "http"), PingInterval: time.Second})
	require.NoError(t, err)
	t.Cleanup(channel.Disconnect)
	require.NoError(t, channel.Connect(t.Context(), "me"))

	backend := newFakeBackend()
	backend.history["u2"] = []api.Message{msg("m1", "u2", "me", "hi", "2024-01-01T10:00:00Z")}
	s, _ := newTestStore(t, backend, channel)

	require.NoError(t, s.Open(t.Context(), alice))
	require.True(t, s.State().Seeing)

	// Server drops the connection: the store stops claiming live delivery
	ps.drop(t, "me")
	require.Eventually(t, func() bool {
		return !channel.Connected() && !s.State().Seeing
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, channel.HasHandler(push.EventNewMessage))

	// Reconnecting restores the handler for the open conversation
	require.NoError(t, channel.Connect(t.Context(), "me"))
	require.Eventually(t, func() bool {
		return s.State().Seeing && channel.HasHandler(push.EventNewMessage)
	}, time.Second, 5*time.Millisecond)

	ps.send(t, "me", push.EventNewMessage, msg("m2", "u2", "me", "after reconnect", "2024-01-01T10:01:00Z"))
	require.Eventually(t, func() bool { return len(s.State().Messages) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "m2", s.State().Messages[1].ID)
}

func TestLiveDelivery_StopsFollowingAfterClose(t *testing.T) {
	ps := newPushServer(t)
	channel, err := push.NewChannel(push.Options{URL: "ws" + strings.TrimPrefix(ps.srv.URL, "http")})
	require.NoError(t, err)
	t.Cleanup(channel.Disconnect)
	require.NoError(t, channel.Connect(t.Context(), "me"))

	backend := newFakeBackend()
	s := NewStore(Options{API: backend, Events: channel, Session: staticIdentity("me")})
	require.NoError(t, s.Open(t.Context(), alice))
	s.Close()
	assert.False(t, channel.HasHandler(push.EventNewMessage))

	channel.Disconnect()
	require.NoError(t, channel.Connect(t.Context(), "me"))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, channel.HasHandler(push.EventNewMessage))
}
