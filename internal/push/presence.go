// ABOUTME: Set of contact ids the server reports as online
// ABOUTME: Replaced wholesale on every getOnlineUsers delivery, cleared on disconnect

package push

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/arham771790/Chat-Frontend/internal/broadcast"
)

// Presence is the set of online user ids for the current push connection.
// Changes are published while mu is held so subscribers see them in order.
type Presence struct {
	mu      sync.RWMutex
	ids     []string
	online  map[string]struct{}
	changes *broadcast.Broadcaster[[]string]
}

// NewPresence creates an empty presence set. Pass nil logger for default.
func NewPresence(logger *slog.Logger) *Presence {
	return &Presence{
		online:  make(map[string]struct{}),
		changes: broadcast.New[[]string](logger, "presence"),
	}
}

// Replace sets the online ids to exactly ids. Duplicates and empty ids are
// ignored; delivery order is kept.
func (p *Presence) Replace(ids []string) {
	online := make(map[string]struct{}, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := online[id]; dup {
			continue
		}
		online[id] = struct{}{}
		ordered = append(ordered, id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = ordered
	p.online = online
	p.changes.Publish(slices.Clone(ordered))
}

// Clear empties the set.
func (p *Presence) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	wasEmpty := len(p.ids) == 0
	p.ids = nil
	p.online = make(map[string]struct{})
	if !wasEmpty {
		p.changes.Publish(nil)
	}
}

// IsOnline reports whether id is in the set.
func (p *Presence) IsOnline(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[id]
	return ok
}

// IDs returns a copy of the online ids in delivery order.
func (p *Presence) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.ids)
}

// Len returns the number of online ids.
func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ids)
}

// Subscribe returns a channel receiving the id list after every change.
func (p *Presence) Subscribe(ctx context.Context) (<-chan []string, string) {
	return p.changes.Subscribe(ctx)
}

// Unsubscribe removes a subscription created by Subscribe.
func (p *Presence) Unsubscribe(id string) {
	p.changes.Unsubscribe(id)
}
