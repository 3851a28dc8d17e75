// ABOUTME: Tests for the message-id dedupe cache.
// ABOUTME: Validates TTL expiry, size limits, eviction order, reset, and concurrency safety.

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newWithClock(ttl time.Duration, maxSize int) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(ttl, maxSize)
	c.now = clock.Now
	return c, clock
}

func TestCache_CheckUnseen(t *testing.T) {
	c := New(time.Minute, 10)
	assert.False(t, c.Check("msg-1"))
}

func TestCache_MarkThenCheck(t *testing.T) {
	c := New(time.Minute, 10)
	c.Mark("msg-1")
	assert.True(t, c.Check("msg-1"))
	assert.False(t, c.Check("msg-2"))
}

func TestCache_CheckAndMark(t *testing.T) {
	c := New(time.Minute, 10)

	assert.False(t, c.CheckAndMark("msg-1"), "first sighting is not a duplicate")
	assert.True(t, c.CheckAndMark("msg-1"), "second sighting is a duplicate")
	assert.Equal(t, 1, c.Len())
}

func TestCache_Expiry(t *testing.T) {
	c, clock := newWithClock(time.Minute, 10)

	c.Mark("old")
	clock.Advance(30 * time.Second)
	c.Mark("new")

	clock.Advance(31 * time.Second)
	assert.False(t, c.Check("old"), "old entry should have expired")
	assert.True(t, c.Check("new"))
	assert.Equal(t, 1, c.Len())
}

func TestCache_MarkRefreshesTimestamp(t *testing.T) {
	c, clock := newWithClock(time.Minute, 10)

	c.Mark("msg")
	clock.Advance(50 * time.Second)
	c.Mark("msg")
	clock.Advance(50 * time.Second)

	assert.True(t, c.Check("msg"), "re-marking should extend the lifetime")
}

func TestCache_NoTTL(t *testing.T) {
	c, clock := newWithClock(0, 10)
	c.Mark("msg")
	clock.Advance(24 * time.Hour)
	assert.True(t, c.Check("msg"))
}

func TestCache_EvictionOrder(t *testing.T) {
	c := New(time.Minute, 3)

	c.Mark("first")
	c.Mark("second")
	c.Mark("third")
	c.Mark("fourth")

	assert.False(t, c.Check("first"), "first should be evicted")
	assert.True(t, c.Check("second"))
	assert.True(t, c.Check("third"))
	assert.True(t, c.Check("fourth"))

	// Refreshing "second" moves it to the back, so "third" goes next
	c.Mark("second")
	c.Mark("fifth")
	assert.False(t, c.Check("third"), "third should be evicted")
	assert.True(t, c.Check("second"))
}

func TestCache_Reset(t *testing.T) {
	c := New(time.Minute, 10)
	c.Mark("a")
	c.Mark("b")

	c.Reset()

	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Check("a"))
	assert.False(t, c.CheckAndMark("b"))
}

func TestCache_CheckAndMark_Atomic(t *testing.T) {
	c := New(time.Minute, 100)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			if !c.CheckAndMark("contested") {
				wins.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one goroutine should see the key as new")
}
