// ABOUTME: Store interface and well-known keys for the client's persisted local state
// ABOUTME: Durable key/value storage that survives restarts, cleared in full on logout

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/arham771790/Chat-Frontend/internal/config"
)

// ErrNotFound is returned when a requested key does not exist
var ErrNotFound = errors.New("not found")

// Well-known keys for persisted session state.
const (
	KeyAuthUser     = "authUser"     // JSON-encoded user object
	KeyAccessToken  = "accessToken"  // raw access token
	KeyRefreshToken = "refreshToken" // raw refresh token
)

// Store is the durable key/value storage behind the session.
// Values are opaque strings; callers own their encoding.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every key.
	Clear(ctx context.Context) error
	// Keys lists the stored keys in ascending order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Open builds the Store selected by cfg.Driver.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.StorageSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.StoragePebble:
		return NewPebbleStore(cfg.Path)
	case config.StorageMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
