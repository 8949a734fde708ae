package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds the on-disk store configuration.
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// Badger is a disk-backed cache backend that survives restarts.
type Badger struct {
	db *badger.DB
}

// NewBadger opens (or creates) the on-disk store at the configured path.
func NewBadger(cfg BadgerConfig) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil // badger's own logger is too chatty for a cache

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &Badger{db: db}, nil
}

// Name identifies the backend.
func (b *Badger) Name() string { return "badger" }

// Get returns the payload for key.
func (b *Badger) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get failed: %w", err)
	}
	return value, true, nil
}

// Set stores the payload under key with TTL.
func (b *Badger) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger set failed: %w", err)
	}
	return nil
}

// Delete removes key if present.
func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete failed: %w", err)
	}
	return nil
}

// Close closes the underlying store.
func (b *Badger) Close() error {
	return b.db.Close()
}
