// ABOUTME: REST client for the chat backend
// ABOUTME: Sends credentials (cookies plus an optional stored bearer token) with every request

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/arham771790/Chat-Frontend/internal/store"
)

// maxResponseSize bounds response bodies. Message history may carry inline
// base64 images, so this is generous.
const maxResponseSize = 32 << 20

// DefaultTimeout is used when Options.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// Options configure a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration

	// Tokens, when set, supplies the stored access token (sent as a bearer
	// token) and refresh token (sent to /auth/refresh).
	Tokens store.Store

	// Transport overrides the HTTP transport. Tests leave it nil.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// Client talks to the chat backend's REST API.
type Client struct {
	baseURL string
	http    *http.Client
	jar     *resettableJar
	tokens  store.Store
	logger  *slog.Logger
}

// New creates a REST client rooted at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", opts.BaseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	jar, err := newResettableJar()
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: base.String(),
		http: &http.Client{
			Timeout:   timeout,
			Jar:       jar,
			Transport: opts.Transport,
		},
		jar:    jar,
		tokens: opts.Tokens,
		logger: logger.With("component", "api"),
	}, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ClearCredentials forgets every session cookie.
func (c *Client) ClearCredentials() {
	c.jar.Reset()
}

// CheckAuth validates the current session. Only a 200 with a user counts.
func (c *Client) CheckAuth(ctx context.Context) (User, error) {
	var resp struct {
		User *User `json:"user"`
	}
	status, err := c.do(ctx, http.MethodGet, "/auth/check", nil, &resp)
	if err != nil {
		return User{}, err
	}
	if status != http.StatusOK {
		return User{}, &Error{Method: http.MethodGet, URL: c.baseURL + "/auth/check", StatusCode: status}
	}
	if resp.User == nil || resp.User.ID == "" {
		return User{}, fmt.Errorf("%w: check response has no user", ErrMalformedResponse)
	}
	return *resp.User, nil
}

// Refresh asks the backend for a new session, sending the stored refresh
// token when there is one.
func (c *Client) Refresh(ctx context.Context) (User, error) {
	body := map[string]string{}
	if token := c.storedToken(ctx, store.KeyRefreshToken); token != "" {
		body["refreshToken"] = token
	}

	var resp struct {
		User *User `json:"user"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/auth/refresh", body, &resp); err != nil {
		return User{}, err
	}
	if resp.User == nil || resp.User.ID == "" {
		return User{}, fmt.Errorf("%w: refresh response has no user", ErrMalformedResponse)
	}
	return *resp.User, nil
}

// Signup creates an account and returns it.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (User, error) {
	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodPost, "/auth/signup", req, &raw); err != nil {
		return User{}, err
	}
	return decodeUser(raw)
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	var resp struct {
		Data *LoginResult `json:"data"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return LoginResult{}, err
	}
	if resp.Data == nil || resp.Data.User.ID == "" {
		return LoginResult{}, fmt.Errorf("%w: login response has no user", ErrMalformedResponse)
	}
	return *resp.Data, nil
}

// Logout ends the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	return err
}

// UpdateProfile changes profile fields and returns the updated user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (User, error) {
	var resp struct {
		Data *User `json:"data"`
	}
	if _, err := c.do(ctx, http.MethodPut, "/auth/updateProfile", update, &resp); err != nil {
		return User{}, err
	}
	if resp.Data == nil || resp.Data.ID == "" {
		return User{}, fmt.Errorf("%w: profile response has no user", ErrMalformedResponse)
	}
	return *resp.Data, nil
}

// ListUsers returns the contact roster.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var resp struct {
		Users json.RawMessage `json:"users"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/message/users", nil, &resp); err != nil {
		return nil, err
	}

	var users []User
	if err := decodeArray(resp.Users, &users); err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	return users, nil
}

// GetMessages returns the full history with the given contact.
func (c *Client) GetMessages(ctx context.Context, userID string) ([]Message, error) {
	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, "/message/"+url.PathEscape(userID), nil, &raw); err != nil {
		return nil, err
	}

	var messages []Message
	if err := decodeArray(raw, &messages); err != nil {
		return nil, fmt.Errorf("messages: %w", err)
	}
	return messages, nil
}

// SendMessage sends a message to the given contact and returns the
// server-confirmed copy.
func (c *Client) SendMessage(ctx context.Context, userID string, req SendRequest) (Message, error) {
	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodPost, "/message/send/"+url.PathEscape(userID), req, &raw); err != nil {
		return Message{}, err
	}

	// The backend answers with either {message: {...}} or the message itself
	var wrapped struct {
		Message *Message `json:"message"`
	}
	msg := Message{}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Message != nil {
		msg = *wrapped.Message
	} else if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if msg.ID == "" {
		return Message{}, fmt.Errorf("%w: sent message has no id", ErrMalformedResponse)
	}
	return msg, nil
}

// do performs a JSON request. Non-2xx responses become *Error. out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.storedToken(ctx, store.KeyAccessToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("request done",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &Error{
			Method:     method,
			URL:        fullURL,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return resp.StatusCode, fmt.Errorf("%w: empty body", ErrMalformedResponse)
		}
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) storedToken(ctx context.Context, key string) string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.Get(ctx, key)
	if err != nil {
		return ""
	}
	return token
}

// decodeUser accepts a bare user or one wrapped in "user" or "data".
func decodeUser(raw json.RawMessage) (User, error) {
	var wrapped struct {
		User *User `json:"user"`
		Data *User `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	switch {
	case wrapped.User != nil && wrapped.User.ID != "":
		return *wrapped.User, nil
	case wrapped.Data != nil && wrapped.Data.ID != "":
		return *wrapped.Data, nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil || user.ID == "" {
		return User{}, fmt.Errorf("%w: no user in response", ErrMalformedResponse)
	}
	return user, nil
}

// decodeArray decodes raw into out only if raw is a JSON array.
func decodeArray(raw json.RawMessage, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%w: expected array", ErrMalformedResponse)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// resettableJar is a cookie jar that can drop every cookie at once.
type resettableJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newResettableJar() (*resettableJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &resettableJar{jar: jar}, nil
}

func (j *resettableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

func (j *resettableJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// Reset replaces the jar with an empty one.
func (j *resettableJar) Reset() {
	fresh, err := cookiejar.New(nil)
	if err != nil {
		return
	}
	j.mu.Lock()
	j.jar = fresh
	j.mu.Unlock()
}
