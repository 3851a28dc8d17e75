// ABOUTME: Websocket hub for the in-memory backend: one connection per userId
// ABOUTME: Broadcasts getOnlineUsers on every join and leave and routes newMessage frames

package fakeserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arham771790/Chat-Frontend/internal/push"
)

const (
	eventOnlineUsers = push.EventOnlineUsers
	eventNewMessage  = push.EventNewMessage

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 64
)

var errOffline = errors.New("user is not connected")

type hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[string]*peer
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		peers: make(map[string]*peer),
	}
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade websocket", "error", err)
		return
	}

	p := &peer{
		userID: userID,
		conn:   conn,
		send:   make(chan push.Frame, sendBufferSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	previous := h.peers[userID]
	h.peers[userID] = p
	h.mu.Unlock()
	if previous != nil {
		previous.close()
	}

	h.logger.Debug("user connected", "user_id", userID)
	h.broadcastOnline()

	go p.writeLoop()
	p.readLoop()

	h.detach(p)
}

func (h *hub) detach(p *peer) {
	p.close()

	h.mu.Lock()
	current := h.peers[p.userID] == p
	if current {
		delete(h.peers, p.userID)
	}
	h.mu.Unlock()

	if current {
		h.logger.Debug("user disconnected", "user_id", p.userID)
		h.broadcastOnline()
	}
}

func (h *hub) online() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *hub) broadcastOnline() {
	ids := h.online()
	frame, err := newFrame(eventOnlineUsers, ids)
	if err != nil {
		return
	}

	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.push(frame)
	}
}

func (h *hub) send(userID, event string, data any) error {
	h.mu.Lock()
	p := h.peers[userID]
	h.mu.Unlock()
	if p == nil {
		return errOffline
	}

	frame, err := newFrame(event, data)
	if err != nil {
		return err
	}
	p.push(frame)
	return nil
}

func (h *hub) closeAll() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*peer)
	h.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
}

func newFrame(event string, data any) (push.Frame, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return push.Frame{}, err
	}
	return push.Frame{Event: event, Data: payload}, nil
}

// peer is one websocket connection. Only writeLoop writes data frames.
type peer struct {
	userID string
	conn   *websocket.Conn
	send   chan push.Frame

	closeOnce sync.Once
	done      chan struct{}
}

func (p *peer) readLoop() {
	p.conn.SetReadLimit(1 << 20)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Clients ping too; answering resets our deadline as well
	p.conn.SetPingHandler(func(data string) error {
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return p.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		// The client never sends data frames; reading drives control frames
		if _, _, err := p.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (p *peer) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			_ = p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = p.conn.Close()
			return
		case frame := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(frame); err != nil {
				p.close()
				_ = p.conn.Close()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				_ = p.conn.Close()
				return
			}
		}
	}
}

// push queues a frame, dropping the oldest one when the buffer is full.
func (p *peer) push(frame push.Frame) {
	select {
	case <-p.done:
		return
	default:
	}
	for {
		select {
		case p.send <- frame:
			return
		default:
		}
		select {
		case <-p.send:
		default:
		}
	}
}

func (p *peer) close() {
	p.closeOnce.Do(func() { close(p.done) })
}
