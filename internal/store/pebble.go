// ABOUTME: Pebble implementation of the Store interface
// ABOUTME: Embedded LSM key/value directory as an alternative to the SQLite file

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"
)

// PebbleStore implements the Store interface on a Pebble database directory.
type PebbleStore struct {
	db     *pebble.DB
	logger *slog.Logger
}

// NewPebbleStore opens (or creates) a Pebble database at dir.
func NewPebbleStore(dir string) (*PebbleStore, error) {
	logger := slog.Default().With("component", "store")

	if err := os.MkdirAll(filepath.Dir(filepath.Clean(dir)), 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}

	logger.Debug("Pebble store initialized", "path", dir)
	return &PebbleStore{db: db, logger: logger}, nil
}

func (s *PebbleStore) Get(_ context.Context, key string) (string, error) {
	data, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading key %q: %w", key, err)
	}
	defer closer.Close()

	// data is only valid until closer is closed
	return string(data), nil
}

func (s *PebbleStore) Set(_ context.Context, key, value string) error {
	if err := s.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

func (s *PebbleStore) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("deleting key %q: %w", key, err)
	}
	return nil
}

func (s *PebbleStore) Clear(ctx context.Context) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	for _, k := range keys {
		if err := batch.Delete([]byte(k), nil); err != nil {
			return fmt.Errorf("staging delete of %q: %w", k, err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("clearing local storage: %w", err)
	}

	s.logger.Debug("cleared local storage", "keys", len(keys))
	return nil
}

func (s *PebbleStore) Keys(_ context.Context) ([]string, error) {
	it, err := s.db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer func() { _ = it.Close() }()

	var keys []string
	for it.First(); it.Valid(); it.Next() {
		// Key() is reused by the iterator; string() copies it
		keys = append(keys, string(it.Key()))
	}
	return keys, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
