// Package conversation holds the client's view of its chats: the contact
// roster, the selected conversation, and that conversation's message log.
//
// # Sources of messages
//
// The log is fed from three places:
//
//   - GetMessages replaces it with the server's history.
//   - SendMessage appends the server-confirmed copy of a sent message.
//     Nothing is shown before the server confirms it.
//   - The newMessage push handler appends messages from the selected
//     contact. Everything else is dropped.
//
// # Ordering and duplicates
//
// Each selection change increments a generation counter. A history
// response issued under an older generation is discarded, so a slow
// response for a previous contact cannot overwrite the current log. A send
// that completes after the selection changed is not appended either.
//
// Message ids already in the log are tracked in a dedupe cache, which is
// reset on every selection change. A message confirmed by SendMessage and
// also echoed over the push channel appears once. Messages pushed while a
// history load is in flight are kept after the history if it does not
// already contain them.
//
// # Lifecycle
//
// Open performs the full switch: release the previous live subscription,
// select, subscribe, and load history. Reset clears everything on logout.
package conversation
