// Package session owns the signed-in user.
//
// A Manager resolves the session at startup (CheckAuth), runs the signup,
// login, logout, and profile flows, persists the user and tokens in local
// storage, and drives the push channel: it connects as the signed-in user
// whenever a session appears and disconnects on logout.
//
// Startup resolution trusts a persisted user without asking the server.
// Only when nothing usable is persisted does it call the session check,
// and only when that fails does it try a single refresh. A failed refresh
// clears local storage and leaves the manager signed out.
//
// The Manager is a state container: State returns a snapshot and Subscribe
// delivers a new one after every change.
package session
