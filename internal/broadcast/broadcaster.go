// ABOUTME: In-memory fan-out of state snapshots to change subscribers
// ABOUTME: Backs the subscribe-to-changes capability of the session and conversation stores

package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 16
)

// Broadcaster delivers values of T to every subscriber. A subscriber that
// falls behind loses its oldest buffered values, never the newest one, so a
// reader always ends up with the latest snapshot.
type Broadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]chan T
	closed      bool
	logger      *slog.Logger
}

// New creates a broadcaster. Pass nil logger for default.
func New[T any](logger *slog.Logger, name string) *Broadcaster[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster[T]{
		subscribers: make(map[string]chan T),
		logger:      logger.With("component", "broadcaster", "topic", name),
	}
}

// Subscribe registers a subscriber. It returns a channel of published values
// and a subscription ID for Unsubscribe. The subscription is removed and its
// channel closed when ctx is cancelled.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) (<-chan T, string) {
	subID := uuid.New().String()
	ch := make(chan T, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends v to every subscriber without blocking.
func (b *Broadcaster[T]) Publish(v T) {
	// Read lock is held across the sends so Unsubscribe cannot close a
	// channel mid-send. Every send below is non-blocking.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- v:
			continue
		default:
		}

		// Full: drop the oldest value to make room for the newest
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
			b.logger.Debug("dropped value for slow subscriber", "sub_id", id)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
// Unknown IDs are ignored.
func (b *Broadcaster[T]) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Len reports the number of active subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels. Later Subscribe calls get a closed
// channel. Safe to call more than once.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
