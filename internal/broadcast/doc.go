// Package broadcast provides a small generic pub/sub used by the client's
// state containers to announce changes.
//
// Each container owns one Broadcaster of its snapshot type and publishes a
// fresh snapshot after every mutation. Readers subscribe with a context and
// receive snapshots on a buffered channel:
//
//	ch, id := sessions.Subscribe(ctx)
//	defer sessions.Unsubscribe(id)
//	for st := range ch {
//	    render(st)
//	}
//
// Publishing never blocks. When a subscriber's buffer is full the oldest
// pending value is discarded, so the latest snapshot always arrives.
package broadcast
