// ABOUTME: In-memory chat backend speaking the REST and websocket contract the client expects
// ABOUTME: Used by integration tests and the chat-devserver binary; supports call counting and failure injection

package fakeserver

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/arham771790/Chat-Frontend/internal/api"
	"github.com/arham771790/Chat-Frontend/internal/auth"
)

// Route names accepted by Calls, Fail, and Inject.
const (
	RouteCheck         = "check"
	RouteRefresh       = "refresh"
	RouteSignup        = "signup"
	RouteLogin         = "login"
	RouteLogout        = "logout"
	RouteUpdateProfile = "updateProfile"
	RouteUsers         = "users"
	RouteMessages      = "messages"
	RouteSend          = "send"
)

// Token lifetimes used when Options leaves them zero.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	// ErrEmailTaken is returned by Register for a duplicate email.
	ErrEmailTaken = errors.New("email already exists")
	// ErrInvalidCredentials is returned for a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Options configure a Server.
type Options struct {
	// Secret signs access and refresh tokens. A random one is used when empty.
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// EchoToSender also pushes newMessage to the sender's own connection.
	EchoToSender bool

	// BcryptCost defaults to bcrypt.MinCost, which keeps tests fast.
	BcryptCost int

	Logger *slog.Logger
}

type account struct {
	user api.User
	hash []byte
}

type injection struct {
	status int
	body   string
}

// Server is an in-memory chat backend.
type Server struct {
	issuer     *auth.Issuer
	accessTTL  time.Duration
	refreshTTL time.Duration
	echo       bool
	cost       int
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	accounts map[string]*account // by user id
	emails   map[string]string   // email -> user id
	messages []api.Message
	calls    map[string]int
	inject   map[string][]injection

	hub *hub
}

// New creates an empty backend.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secret := opts.Secret
	if len(secret) == 0 {
		secret = []byte(uuid.NewString())
	}
	accessTTL := opts.AccessTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	refreshTTL := opts.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.MinCost
	}

	logger = logger.With("component", "fakeserver")
	return &Server{
		issuer:     auth.NewIssuer(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		echo:       opts.EchoToSender,
		cost:       cost,
		logger:     logger,
		now:        time.Now,
		accounts:   make(map[string]*account),
		emails:     make(map[string]string),
		calls:      make(map[string]int),
		inject:     make(map[string][]injection),
		hub:        newHub(logger),
	}
}

// Handler returns the HTTP handler: REST under /api, websocket at /ws.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/check", s.route(RouteCheck, s.authed(s.handleCheck)))
			r.Post("/refresh", s.route(RouteRefresh, s.handleRefresh))
			r.Post("/signup", s.route(RouteSignup, s.handleSignup))
			r.Post("/login", s.route(RouteLogin, s.handleLogin))
			r.Post("/logout", s.route(RouteLogout, s.handleLogout))
			r.Put("/updateProfile", s.route(RouteUpdateProfile, s.authed(s.handleUpdateProfile)))
		})
		r.Route("/message", func(r chi.Router) {
			r.Get("/users", s.route(RouteUsers, s.authed(s.handleUsers)))
			r.Post("/send/{id}", s.route(RouteSend, s.authed(s.handleSend)))
			r.Get("/{id}", s.route(RouteMessages, s.authed(s.handleMessages)))
		})
	})
	r.Get("/ws", s.hub.serve)

	return r
}

// Close drops every websocket connection.
func (s *Server) Close() {
	s.hub.closeAll()
}

// Register creates an account directly, bypassing HTTP.
func (s *Server) Register(fullName, email, password string) (api.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return api.User{}, err
	}

	key := strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emails[key]; exists {
		return api.User{}, ErrEmailTaken
	}
	user := api.User{
		ID:        uuid.NewString(),
		FullName:  strings.TrimSpace(fullName),
		Email:     key,
		CreatedAt: s.timestamp(),
	}
	s.accounts[user.ID] = &account{user: user, hash: hash}
	s.emails[key] = user.ID
	return user, nil
}

// Token issues an access token for a user id, for tests that skip login.
func (s *Server) Token(userID string) (string, error) {
	return s.issuer.Generate(userID, auth.KindAccess, s.accessTTL)
}

// Calls returns how many requests reached the named route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls returns the number of REST requests served.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Fail makes the next request to route answer with status and a JSON
// error message.
func (s *Server) Fail(route string, status int) {
	s.Inject(route, status, `{"message":"injected failure"}`)
}

// Inject makes the next request to route answer with status and a raw body.
// Injections queue up in order.
func (s *Server) Inject(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inject[route] = append(s.inject[route], injection{status: status, body: body})
}

// Online returns the ids with an open websocket, sorted.
func (s *Server) Online() []string {
	return s.hub.online()
}

// Push sends an event to one user's websocket.
func (s *Server) Push(userID, event string, data any) error {
	return s.hub.send(userID, event, data)
}

// Messages returns every stored message in send order.
func (s *Server) Messages() []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// route counts the request and serves a queued injection if there is one.
func (s *Server) route(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[name]++
		var inj *injection
		if queued := s.inject[name]; len(queued) > 0 {
			inj = &queued[0]
			s.inject[name] = queued[1:]
		}
		s.mu.Unlock()

		if inj != nil {
			s.logger.Debug("serving injected response", "route", name, "status", inj.status)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(inj.status)
			_, _ = w.Write([]byte(inj.body))
			return
		}
		next(w, r)
	}
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return auth.HTTPAuthMiddleware(s.issuer)(next).ServeHTTP
}

func (s *Server) login(email, password string) (api.User, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	id, ok := s.emails[key]
	var acct *account
	if ok {
		acct = s.accounts[id]
	}
	s.mu.Unlock()

	if acct == nil {
		return api.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return api.User{}, ErrInvalidCredentials
	}
	return acct.user, nil
}

func (s *Server) lookup(id string) (api.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return api.User{}, false
	}
	return acct.user, true
}

func (s *Server) contacts(self string) []api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]api.User, 0, len(s.accounts))
	for id, acct := range s.accounts {
		if id != self {
			users = append(users, acct.user)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].FullName != users[j].FullName {
			return users[i].FullName < users[j].FullName
		}
		return users[i].ID < users[j].ID
	})
	return users
}

func (s *Server) conversation(a, b string) []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Message{}
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
