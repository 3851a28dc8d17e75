// ABOUTME: Tests for the in-memory backend's REST routes and websocket hub
// ABOUTME: Drives the server through the real api.Client and push.Channel

package fakeserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arham771790/Chat-Frontend/internal/api"
	"github.com/arham771790/Chat-Frontend/internal/push"
	"github.com/arham771790/Chat-Frontend/internal/store"
)

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s := New(opts)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		srv.Close()
	})
	return s, srv
}

func newClient(t *testing.T, srv *httptest.Server, tokens store.Store) *api.Client {
	t.Helper()
	c, err := api.New(api.Options{BaseURL: srv.URL + "/api", Tokens: tokens})
	require.NoError(t, err)
	return c
}

func serverMessage(err error) string {
	msg, _ := api.ServerMessage(err)
	return msg
}

func pushURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestSignupSetsSessionCookies(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	c := newClient(t, srv, nil)

	user, err := c.Signup(t.Context(), api.SignupRequest{FullName: "Alice", Email: "Alice@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)

	checked, err := c.CheckAuth(t.Context())
	require.NoError(t, err)
	assert.Equal(t, user.ID, checked.ID)
}

func TestSignupDuplicateEmail(t *testing.T) {
	s, srv := newTestServer(t, Options{})
	_, err := s.Register("Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	c := newClient(t, srv, nil)
	_, err = c.Signup(t.Context(), api.SignupRequest{FullName: "Other", Email: "alice@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, "Email already exists", serverMessage(err))
}

func TestLoginReturnsTokens(t *testing.T) {
	s, srv := newTestServer(t, Options{})
	_, err := s.Register("Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	c := newClient(t, srv, nil)
	_, err = c.Login(t.Context(), api.Credentials{Email: "alice@example.com", Password: "wrong-password"})
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", serverMessage(err))

	res, err := c.Login(t.Context(), api.Credentials{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "Alice", res.User.FullName)
}

func TestCheckWithoutSession(t *testing.T) {
	_, srv := newTestServer(t, Options{})
	c := newClient(t, srv, nil)

	_, err := c.CheckAuth(t.Context())
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
}

func TestRefreshFromStoredToken(t *testing.T) {
	s, srv := newTestServer(t, Options{})
	_, err := s.Register("Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	// Log in with one client, then refresh from a fresh client that only
	// has the persisted refresh token
	res, err := newClient(t, srv, nil).Login(t.Context(), api.Credentials{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	tokens := store.NewMemoryStore()
	require.NoError(t, tokens.Set(t.Context(), store.KeyRefreshToken, res.RefreshToken))
	c := newClient(t, srv, tokens)

	user, err := c.Refresh(t.Context())
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)

	// The refresh also set cookies, so the session now checks out
	_, err = c.CheckAuth(t.Context())
	require.NoError(t, err)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	s, srv := newTestServer(t, Options{})
	user, err := s.Register("Alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	access, err := s.Token(user.ID)
	require.NoError(t, err)

	tokens := store.NewMemoryStore()
	require.NoError(t, tokens.Set(t.Context(), store.KeyRefreshToken, access))

	_, err = newClient(t, srv, tokens).Refresh(t.Context())
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
}

func TestBearerTokenAuth(t *testing.T) {
	s, srv := newTestServer(t, Options{})
	alice, err := s.Register("Alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	bob, err := s.Register("Bob", "bob@example.com", "secret1")
	require.NoError(t, err)

	access, err := s.Token(alice.ID)
	require.NoError(t, err)
	tokens := store.NewMemoryStore()
	require.NoError(t, tokens.Set(t.Context(), store.KeyAccessToken, access))

	users, err := newClient(t, srv, tokens).ListUsers(t.Context())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, bob.ID, users[0].ID)
}

func TestUpdateProfile(t *testing.T) {
	s, srv := newTestServer(t, Options{})
	_, err := s.Register("Alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	c := newClient(t, srv, nil)
	_, err = c.Login(t.Context(), api.Credentials{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	user, err := c.UpdateProfile(t.Context(), api.ProfileUpdate{ProfilePic: "data:image/png;base64,AAAA"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.FullName)
	assert.Equal(t, "data:image/png;base64,AAAA", user.ProfilePic)

	_, err = c.UpdateProfile(t.Context(), api.ProfileUpdate{})
	require.Error(t, err)
	assert.Equal(t, "Nothing to update", serverMessage(err))
}

func TestSendAndHistory(t *testing.T) {
	s, srv := newTestServer(t, Options{})
	_, err := s.Register("Alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	bob, err := s.Register("Bob", "bob@example.com", "secret1")
	require.NoError(t, err)

	c := newClient(t, srv, nil)
	_, err = c.Login(t.Context(), api.Credentials{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	first, err := c.SendMessage(t.Context(), bob.ID, api.SendRequest{Text: "hi"})
	require.NoError(t, err)
	second, err := c.SendMessage(t.Context(), bob.ID, api.SendRequest{Image: "data:image/png;base64,AAAA"})
	require.NoError(t, err)

	history, err := c.GetMessages(t.Context(), bob.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, second.ID, history[1].ID)

	_, err = c.SendMessage(t.Context(), bob.ID, api.SendRequest{})
	require.Error(t, err)
	_, err = c.SendMessage(t.Context(), "nobody", api.SendRequest{Text: "hi"})
	require.Error(t, err)
	assert.True(t, api.IsStatus(err, http.StatusNotFound))

	assert.Len(t, s.Messages(), 2)
}

func TestInjectedResponses(t *testing.T) {
	s, srv := newTestServer(t, Options{})
	_, err := s.Register("Alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	c := newClient(t, srv, nil)
	_, err = c.Login(t.Context(), api.Credentials{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	s.Fail(RouteUsers, http.StatusInternalServerError)
	s.Inject(RouteUsers, http.StatusOK, `{"users":"not-a-list"}`)

	_, err = c.ListUsers(t.Context())
	assert.True(t, api.IsStatus(err, http.StatusInternalServerError))

	_, err = c.ListUsers(t.Context())
	assert.ErrorIs(t, err, api.ErrMalformedResponse)

	// Queue drained; the real handler answers again
	users, err := c.ListUsers(t.Context())
	require.NoError(t, err)
	assert.Empty(t, users)

	assert.Equal(t, 3, s.Calls(RouteUsers))
	assert.Equal(t, 1, s.Calls(RouteLogin))
	assert.Equal(t, 4, s.TotalCalls())
}

func TestHubPresenceAndDelivery(t *testing.T) {
	s, srv := newTestServer(t, Options{})

	alice, err := push.NewChannel(push.Options{URL: pushURL(srv)})
	require.NoError(t, err)
	t.Cleanup(alice.Disconnect)
	bob, err := push.NewChannel(push.Options{URL: pushURL(srv)})
	require.NoError(t, err)
	t.Cleanup(bob.Disconnect)

	require.NoError(t, alice.Connect(t.Context(), "alice"))
	require.NoError(t, bob.Connect(t.Context(), "bob"))

	require.Eventually(t, func() bool {
		return alice.Presence().IsOnline("bob") && bob.Presence().IsOnline("alice")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"alice", "bob"}, s.Online())

	got := make(chan string, 1)
	_, err = alice.On(push.EventNewMessage, func(data json.RawMessage) { got <- string(data) })
	require.NoError(t, err)
	require.NoError(t, s.Push("alice", push.EventNewMessage, api.Message{ID: "m1", SenderID: "bob", ReceiverID: "alice", Text: "hi"}))

	select {
	case data := <-got:
		assert.Contains(t, data, `"_id":"m1"`)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pushed message")
	}

	bob.Disconnect()
	require.Eventually(t, func() bool { return !alice.Presence().IsOnline("bob") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"alice"}, s.Online())

	assert.Error(t, s.Push("bob", push.EventNewMessage, api.Message{}))
}

func TestHubRejectsMissingUserID(t *testing.T) {
	_, srv := newTestServer(t, Options{})

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
