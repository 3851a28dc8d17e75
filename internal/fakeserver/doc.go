// ABOUTME: Package fakeserver is an in-memory chat backend for tests and local development
// ABOUTME: It serves the REST routes under /api and the push websocket at /ws

// Package fakeserver implements the chat backend contract in memory.
//
// Accounts are stored with bcrypt password hashes, sessions are JWT access
// and refresh tokens delivered as cookies (and in the login body), and the
// websocket hub keeps one connection per userId, broadcasting
// getOnlineUsers whenever someone joins or leaves.
//
// Tests can count requests per route with Calls and queue canned responses
// with Fail and Inject.
package fakeserver
