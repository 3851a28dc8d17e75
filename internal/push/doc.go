// Package push adapts the backend's push-event websocket.
//
// A Channel holds at most one connection, dialed as
// <url>?userId=<id>. Every frame is a JSON envelope:
//
//	{"event": "newMessage", "data": {...}}
//
// The getOnlineUsers event is handled by the channel itself: its id array
// replaces the Presence set outright. Other events go to handlers
// registered with On. At most one handler per event is active on a
// connection; On returns a Subscription whose Release removes exactly that
// handler and nothing registered after it. Handlers and presence belong to
// the connection and are dropped when it closes.
package push
