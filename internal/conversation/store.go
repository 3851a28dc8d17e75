// ABOUTME: Conversation store owning the roster, the selected conversation, and its message log
// ABOUTME: Merges REST history, confirmed sends, and push deliveries without duplicates or stale overwrites

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/arham771790/Chat-Frontend/internal/api"
	"github.com/arham771790/Chat-Frontend/internal/broadcast"
	"github.com/arham771790/Chat-Frontend/internal/dedupe"
	"github.com/arham771790/Chat-Frontend/internal/notify"
	"github.com/arham771790/Chat-Frontend/internal/push"
)

// Send errors, returned before any network call.
var (
	ErrNoConversation = errors.New("conversation: no contact selected")
	ErrEmptyMessage   = errors.New("conversation: message needs text or an image")
)

// Notification texts.
const (
	msgUsersFailed    = "Failed to load users"
	msgMessagesFailed = "Failed to load messages"
	msgSendFailed     = "Failed to send message"
)

// Default bounds for the seen-message cache.
const (
	DefaultSeenTTL     = 10 * time.Minute
	DefaultSeenMaxSize = 10000
)

// Backend is the part of the REST API the store calls.
type Backend interface {
	ListUsers(ctx context.Context) ([]api.User, error)
	GetMessages(ctx context.Context, userID string) ([]api.Message, error)
	SendMessage(ctx context.Context, userID string, req api.SendRequest) (api.Message, error)
}

// Events is the push channel the store subscribes to.
type Events interface {
	On(event string, fn push.Handler) (*push.Subscription, error)
}

// ConnectionEvents is implemented by push channels that report connection
// changes. A store whose Events also implement it follows the connection:
// live delivery is dropped when it goes away and restored when it returns.
type ConnectionEvents interface {
	Subscribe(ctx context.Context) (<-chan push.Status, string)
	Unsubscribe(id string)
}

// Identity supplies the signed-in user's id.
type Identity interface {
	UserID() string
}

// PresenceSet answers who is online.
type PresenceSet interface {
	IsOnline(id string) bool
	IDs() []string
}

// State is a snapshot of the store.
type State struct {
	Users             []api.User
	SelectedUser      *api.User
	Messages          []api.Message
	IsUsersLoading    bool
	IsMessagesLoading bool
	Seeing            bool // live delivery is subscribed
}

// Options configure a Store.
type Options struct {
	API      Backend
	Events   Events
	Session  Identity
	Seen     *dedupe.Cache // nil for a default-sized cache
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Store is the conversation state container. All mutation goes through its
// methods; readers use State or Subscribe.
type Store struct {
	api      Backend
	events   Events
	session  Identity
	seen     *dedupe.Cache
	notifier notify.Notifier
	logger   *slog.Logger

	mu         sync.Mutex
	users      []api.User
	selected   *api.User
	messages   []api.Message
	usersLoads int
	// generation increases on every selection change. A history response
	// is applied only if the generation it was issued under is current.
	generation  uint64
	loadingGen  uint64
	loadingMsgs bool
	seeing      bool

	subMu sync.Mutex
	sub   *push.Subscription

	watchID   string
	watchDone chan struct{}
	stopWatch context.CancelFunc
	watcher   ConnectionEvents

	changes *broadcast.Broadcaster[State]
}

// NewStore creates an empty store. The push channel and session are the
// ones owned by the session manager.
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	seen := opts.Seen
	if seen == nil {
		seen = dedupe.New(DefaultSeenTTL, DefaultSeenMaxSize)
	}

	s := &Store{
		api:      opts.API,
		events:   opts.Events,
		session:  opts.Session,
		seen:     seen,
		notifier: notifier,
		logger:   logger.With("component", "conversation"),
		changes:  broadcast.New[State](logger, "conversation"),
	}
	if watcher, ok := opts.Events.(ConnectionEvents); ok {
		ctx, cancel := context.WithCancel(context.Background())
		statuses, id := watcher.Subscribe(ctx)
		s.watcher = watcher
		s.watchID = id
		s.stopWatch = cancel
		s.watchDone = make(chan struct{})
		go s.followConnection(statuses)
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every change.
func (s *Store) Subscribe(ctx context.Context) (<-chan State, string) {
	return s.changes.Subscribe(ctx)
}

// Unsubscribe removes a subscription created by Subscribe.
func (s *Store) Unsubscribe(id string) {
	s.changes.Unsubscribe(id)
}

// Close stops following the push connection, releases the push handler,
// and ends every subscription.
func (s *Store) Close() {
	if s.watcher != nil {
		s.stopWatch()
		s.watcher.Unsubscribe(s.watchID)
		<-s.watchDone
	}
	s.UnseeMessages()
	s.changes.Close()
}

// GetUsers loads the contact roster. On failure the roster is empty.
func (s *Store) GetUsers(ctx context.Context) error {
	s.mutate(func() { s.usersLoads++ })

	users, err := s.api.ListUsers(ctx)

	s.mutate(func() {
		s.usersLoads--
		if err != nil {
			s.users = nil
			return
		}
		s.users = users
	})

	switch {
	case errors.Is(err, api.ErrMalformedResponse):
		s.logger.Warn("unexpected roster shape", "error", err)
		return nil
	case err != nil:
		s.logger.Error("loading users", "error", err)
		s.notifier.Error(msgUsersFailed)
		return fmt.Errorf("loading users: %w", err)
	}
	s.logger.Debug("users loaded", "count", len(users))
	return nil
}

// GetMessages replaces the log with the history for contactID. A response
// that arrives after the selection changed is dropped. Messages delivered
// while the request was in flight are kept.
func (s *Store) GetMessages(ctx context.Context, contactID string) error {
	var gen uint64
	s.mutate(func() {
		gen = s.generation
		s.loadingGen = gen
		s.loadingMsgs = true
	})

	history, err := s.api.GetMessages(ctx, contactID)

	var stale bool
	s.mutate(func() {
		if s.loadingGen == gen {
			s.loadingMsgs = false
		}
		if gen != s.generation || s.selected == nil || s.selected.ID != contactID {
			stale = true
			return
		}
		if err != nil {
			s.messages = nil
			return
		}
		s.messages = s.mergeHistoryLocked(history)
	})

	switch {
	case stale:
		s.logger.Debug("discarding stale history", "contact_id", contactID)
		return nil
	case errors.Is(err, api.ErrMalformedResponse):
		s.logger.Warn("unexpected history shape", "contact_id", contactID, "error", err)
		return nil
	case err != nil:
		s.logger.Error("loading messages", "contact_id", contactID, "error", err)
		s.notifier.Error(msgMessagesFailed)
		return fmt.Errorf("loading messages: %w", err)
	}
	return nil
}

// mergeHistoryLocked returns history followed by any logged messages it
// does not contain. Must be called with mu held.
func (s *Store) mergeHistoryLocked(history []api.Message) []api.Message {
	merged := make([]api.Message, 0, len(history)+len(s.messages))
	ids := make(map[string]struct{}, len(history))
	for _, m := range history {
		merged = append(merged, m)
		if m.ID != "" {
			ids[m.ID] = struct{}{}
			s.seen.Mark(m.ID)
		}
	}
	for _, m := range s.messages {
		if _, dup := ids[m.ID]; dup && m.ID != "" {
			continue
		}
		merged = append(merged, m)
	}
	return merged
}

// SetSelectedUser selects contact, or clears the selection when nil.
// Selecting a different contact empties the log. Selecting the current
// contact again only refreshes its record.
func (s *Store) SetSelectedUser(contact *api.User) {
	s.mutate(func() {
		if contact != nil && s.selected != nil && s.selected.ID == contact.ID {
			c := *contact
			s.selected = &c
			return
		}

		s.generation++
		s.messages = nil
		s.loadingMsgs = false
		s.seen.Reset()
		if contact == nil {
			s.selected = nil
			return
		}
		c := *contact
		s.selected = &c
	})
}

// SeeMessages subscribes to live message delivery for the selected
// conversation. Without a selection it does nothing.
func (s *Store) SeeMessages() error {
	if s.SelectedID() == "" {
		return nil
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.sub != nil {
		s.sub.Release()
		s.sub = nil
		s.mutate(func() { s.seeing = false })
	}

	sub, err := s.events.On(push.EventNewMessage, s.handleNewMessage)
	if err != nil {
		return fmt.Errorf("subscribing to messages: %w", err)
	}
	s.sub = sub
	s.mutate(func() { s.seeing = true })
	return nil
}

// UnseeMessages releases the live delivery subscription, if any.
func (s *Store) UnseeMessages() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.sub == nil {
		return
	}
	s.sub.Release()
	s.sub = nil
	s.mutate(func() { s.seeing = false })
}

// followConnection keeps live delivery in step with the push connection.
// Handlers die with their connection, so a lost connection drops the
// subscription and a new one re-registers it for the selected contact.
func (s *Store) followConnection(statuses <-chan push.Status) {
	defer close(s.watchDone)
	for status := range statuses {
		if !status.Connected {
			s.dropLiveDelivery()
			continue
		}
		if s.SelectedID() == "" {
			continue
		}
		if err := s.SeeMessages(); err != nil {
			s.logger.Warn("restoring live delivery", "error", err)
			continue
		}
		s.logger.Debug("live delivery restored", "user_id", status.UserID)
	}
}

// dropLiveDelivery forgets a subscription whose connection is gone.
func (s *Store) dropLiveDelivery() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.sub == nil {
		return
	}
	// A no-op for the lost connection; a status that arrives late must not
	// strand a handler on a newer one.
	s.sub.Release()
	s.sub = nil
	s.mutate(func() { s.seeing = false })
	s.logger.Info("live delivery lost with push connection")
}

// Open switches to contact: release live delivery, select, subscribe,
// then load history.
func (s *Store) Open(ctx context.Context, contact api.User) error {
	s.UnseeMessages()
	s.SetSelectedUser(&contact)
	if err := s.SeeMessages(); err != nil {
		s.logger.Warn("live delivery unavailable", "contact_id", contact.ID, "error", err)
	}
	return s.GetMessages(ctx, contact.ID)
}

// SendMessage sends text and/or an image to the selected contact and
// appends the confirmed message. Nothing is appended before the server
// confirms, and nothing is appended if the selection changed meanwhile.
func (s *Store) SendMessage(ctx context.Context, req api.SendRequest) (api.Message, error) {
	req.Text = strings.TrimSpace(req.Text)

	s.mu.Lock()
	var peerID string
	if s.selected != nil {
		peerID = s.selected.ID
	}
	gen := s.generation
	s.mu.Unlock()

	if peerID == "" {
		return api.Message{}, ErrNoConversation
	}
	if req.Text == "" && req.Image == "" {
		return api.Message{}, ErrEmptyMessage
	}

	msg, err := s.api.SendMessage(ctx, peerID, req)
	if err != nil {
		s.logger.Warn("sending message", "contact_id", peerID, "error", err)
		s.notifier.Error(api.MessageOr(err, msgSendFailed))
		return api.Message{}, fmt.Errorf("sending message: %w", err)
	}

	s.mutate(func() {
		if gen != s.generation {
			s.logger.Debug("selection changed during send, not appending", "message_id", msg.ID)
			return
		}
		if s.seen.CheckAndMark(msg.ID) {
			s.logger.Debug("dropping duplicate sent message", "message_id", msg.ID)
			return
		}
		s.messages = append(s.messages, msg)
	})
	return msg, nil
}

// handleNewMessage is the push handler for newMessage. Only messages from
// the selected contact are kept.
func (s *Store) handleNewMessage(data json.RawMessage) {
	var msg api.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("ignoring malformed pushed message", "error", err)
		return
	}
	if !msg.HasContent() {
		s.logger.Warn("ignoring empty pushed message", "message_id", msg.ID)
		return
	}

	s.mutate(func() {
		if s.selected == nil || msg.SenderID != s.selected.ID {
			return
		}
		if msg.ID != "" && s.seen.CheckAndMark(msg.ID) {
			s.logger.Debug("dropping duplicate pushed message", "message_id", msg.ID)
			return
		}
		s.messages = append(s.messages, msg)
	})
}

// SelectedID returns the selected contact's id, or "".
func (s *Store) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return ""
	}
	return s.selected.ID
}

// Contacts returns the roster, optionally limited to online contacts.
func (s *Store) Contacts(onlineOnly bool, presence PresenceSet) []api.User {
	s.mu.Lock()
	users := slices.Clone(s.users)
	s.mu.Unlock()

	if !onlineOnly {
		return users
	}
	if presence == nil {
		return nil
	}
	online := users[:0]
	for _, u := range users {
		if presence.IsOnline(u.ID) {
			online = append(online, u)
		}
	}
	return online
}

// OnlineCount returns how many users are online, not counting the signed-in
// user.
func (s *Store) OnlineCount(presence PresenceSet) int {
	if presence == nil {
		return 0
	}
	self := ""
	if s.session != nil {
		self = s.session.UserID()
	}
	count := 0
	for _, id := range presence.IDs() {
		if id != self {
			count++
		}
	}
	return count
}

// Reset drops the selection, the log, the roster, and the live delivery
// subscription. Used on logout.
func (s *Store) Reset() {
	s.UnseeMessages()
	s.mutate(func() {
		s.generation++
		s.users = nil
		s.selected = nil
		s.messages = nil
		s.loadingMsgs = false
		s.seen.Reset()
	})
}

// mutate applies fn and publishes the result. Publishing under mu keeps
// snapshots in mutation order; Publish never blocks.
func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.changes.Publish(s.snapshotLocked())
}

// snapshotLocked must be called with mu held.
func (s *Store) snapshotLocked() State {
	snap := State{
		Users:             slices.Clone(s.users),
		Messages:          slices.Clone(s.messages),
		IsUsersLoading:    s.usersLoads > 0,
		IsMessagesLoading: s.loadingMsgs,
		Seeing:            s.seeing,
	}
	if s.selected != nil {
		c := *s.selected
		snap.SelectedUser = &c
	}
	return snap
}
