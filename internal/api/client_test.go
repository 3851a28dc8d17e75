// ABOUTME: Tests for the REST client against httptest servers
// ABOUTME: Covers response shapes, error messages, cookies, and bearer tokens

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arham771790/Chat-Frontend/internal/store"
)

func newTestClient(t *testing.T, handler http.Handler, tokens store.Store) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL + "/api/", Tokens: tokens})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	_, err = New(Options{BaseURL: "://nope"})
	assert.Error(t, err)
}

func TestCheckAuth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/auth/check", r.URL.Path)
			writeJSON(w, http.StatusOK, map[string]any{"user": User{ID: "u1", FullName: "Ann"}})
		}), nil)

		user, err := c.CheckAuth(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, "Ann", user.FullName)
	})

	t.Run("unauthorized", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized - no token"})
		}), nil)

		_, err := c.CheckAuth(t.Context())
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))
		assert.Equal(t, "Unauthorized - no token", MessageOr(err, "fallback"))
	})

	t.Run("non-200 success is not a session", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusAccepted, map[string]any{"user": User{ID: "u1"}})
		}), nil)

		_, err := c.CheckAuth(t.Context())
		assert.True(t, IsStatus(err, http.StatusAccepted))
	})

	t.Run("missing user", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{})
		}), nil)

		_, err := c.CheckAuth(t.Context())
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestRefresh_SendsStoredToken(t *testing.T) {
	tokens := store.NewMemoryStore()
	require.NoError(t, tokens.Set(t.Context(), store.KeyRefreshToken, "r-123"))

	var body map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/refresh", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{"user": User{ID: "u1"}})
	}), tokens)

	user, err := c.Refresh(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "r-123", body["refreshToken"])
}

func TestSignup_ResponseShapes(t *testing.T) {
	shapes := map[string]any{
		"bare":    User{ID: "u1", Email: "a@b.c"},
		"wrapped": map[string]any{"user": User{ID: "u1", Email: "a@b.c"}},
		"data":    map[string]any{"data": User{ID: "u1", Email: "a@b.c"}},
	}
	for name, shape := range shapes {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req SignupRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "Ann", req.FullName)
				writeJSON(w, http.StatusCreated, shape)
			}), nil)

			user, err := c.Signup(t.Context(), SignupRequest{FullName: "Ann", Email: "a@b.c", Password: "secret1"})
			require.NoError(t, err)
			assert.Equal(t, "u1", user.ID)
		})
	}
}

func TestSignup_ServerMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Email already exists"})
	}), nil)

	_, err := c.Signup(t.Context(), SignupRequest{})
	msg, ok := ServerMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "Email already exists", msg)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"user":         User{ID: "u1"},
				"accessToken":  "a-1",
				"refreshToken": "r-1",
			},
		})
	}), nil)

	res, err := c.Login(t.Context(), Credentials{Email: "a@b.c", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, "a-1", res.AccessToken)
	assert.Equal(t, "r-1", res.RefreshToken)
}

func TestBearerTokenFromStore(t *testing.T) {
	tokens := store.NewMemoryStore()

	var auth []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"users": []User{}})
	}), tokens)

	_, err := c.ListUsers(t.Context())
	require.NoError(t, err)

	require.NoError(t, tokens.Set(t.Context(), store.KeyAccessToken, "a-1"))
	_, err = c.ListUsers(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Bearer a-1"}, auth)
}

func TestCookiesAreSentAndCleared(t *testing.T) {
	var seen []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("accessToken"); err == nil {
			seen = append(seen, cookie.Value)
		} else {
			seen = append(seen, "")
		}
		if r.URL.Path == "/api/auth/login" {
			http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: "cookie-1", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"user": User{ID: "u1"}}})
			return
		}
		w.WriteHeader(http.StatusOK)
	}), nil)

	_, err := c.Login(t.Context(), Credentials{})
	require.NoError(t, err)
	require.NoError(t, c.Logout(t.Context()))

	c.ClearCredentials()
	require.NoError(t, c.Logout(t.Context()))

	assert.Equal(t, []string{"", "cookie-1", ""}, seen)
}

func TestUpdateProfile(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var upd ProfileUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&upd))
		writeJSON(w, http.StatusOK, map[string]any{"data": User{ID: "u1", ProfilePic: upd.ProfilePic}})
	}), nil)

	user, err := c.UpdateProfile(t.Context(), ProfileUpdate{ProfilePic: "data:image/png;base64,AA=="})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AA==", user.ProfilePic)
}

func TestListUsers_Malformed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"users": "nope"})
	}), nil)

	users, err := c.ListUsers(t.Context())
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Nil(t, users)
}

func TestGetMessages(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{name: "array", body: `[{"_id":"m1","senderId":"u1","receiverId":"u2","text":"hi"},{"_id":"m2","senderId":"u2","receiverId":"u1","image":"x"}]`, want: 2},
		{name: "empty array", body: `[]`, want: 0},
		{name: "object", body: `{"messages":[]}`, wantErr: true},
		{name: "null", body: `null`, wantErr: true},
		{name: "garbage", body: `<html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/message/u2", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, tt.body)
			}), nil)

			msgs, err := c.GetMessages(t.Context(), "u2")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Len(t, msgs, tt.want)
		})
	}
}

func TestSendMessage_ResponseShapes(t *testing.T) {
	msg := Message{ID: "m1", SenderID: "u1", ReceiverID: "u2", Text: "hi", CreatedAt: "2024-01-01T00:00:00Z"}

	tests := []struct {
		name    string
		body    any
		wantErr bool
	}{
		{name: "wrapped", body: map[string]any{"message": msg}},
		{name: "bare", body: msg},
		{name: "no id", body: Message{SenderID: "u1", Text: "hi"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/message/send/u2", r.URL.Path)
				var req SendRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "hi", req.Text)
				writeJSON(w, http.StatusCreated, tt.body)
			}), nil)

			got, err := c.SendMessage(t.Context(), "u2", SendRequest{Text: "hi"})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.ListUsers(t.Context())
	require.Error(t, err)

	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr), "transport failures are not *Error")
	assert.Equal(t, "fallback", MessageOr(err, "fallback"))
}

func TestErrorString(t *testing.T) {
	err := &Error{Method: "GET", URL: "http://x/api/message/users", StatusCode: 500}
	assert.Equal(t, "GET http://x/api/message/users: status 500", err.Error())

	err.Message = "boom"
	assert.Equal(t, "GET http://x/api/message/users: status 500: boom", err.Error())
}
