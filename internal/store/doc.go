// Package store provides the client's durable local storage.
//
// # Overview
//
// The store plays the part browser local storage plays for a web client: a
// small string key/value space that outlives the process. The session layer
// keeps three keys in it:
//
//   - authUser: the JSON-encoded user adopted at login
//   - accessToken: the raw access token issued at login
//   - refreshToken: the raw refresh token issued at login
//
// Everything is removed on logout via Clear.
//
// # Drivers
//
//   - SQLiteStore: single-table SQLite file (modernc.org/sqlite, no cgo)
//   - PebbleStore: Pebble LSM directory
//   - MemoryStore: map-backed, for tests and ephemeral runs
//
// Open picks the driver from config.StorageConfig.
//
// # Error Handling
//
// Get returns ErrNotFound for absent keys. Delete of an absent key succeeds.
package store
