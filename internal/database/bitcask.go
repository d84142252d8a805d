package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"git.mills.io/prologic/bitcask"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a key is not found in the database.
var ErrNotFound = errors.New("key not found")

// maxKeySize leaves room for prefixed media item IDs, which are far longer
// than bitcask's 64 byte default.
const maxKeySize = 512

// DB wraps a bitcask store. The mutex makes check-then-put sequences atomic;
// bitcask itself only guards individual calls.
type DB struct {
	db *bitcask.Bitcask
	mu sync.RWMutex
}

// Open initializes and returns a DB instance, creating parent directories.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	dbInstance, err := bitcask.Open(path, bitcask.WithMaxKeySize(maxKeySize))
	if err != nil {
		return nil, fmt.Errorf("failed to open bitcask database at %s: %w", path, err)
	}
	log.Debugf("Bitcask database opened at %s", path)
	return &DB{db: dbInstance}, nil
}

// Close flushes and closes the store once in-flight operations finish.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Close()
}

// Has checks if a key exists in the database.
func (d *DB) Has(key []byte) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.Has(key)
}

// Get retrieves the value associated with a key.
func (d *DB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	value, err := d.db.Get(key)
	d.mu.RUnlock()

	if err != nil {
		if errors.Is(err, bitcask.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting key %s: %w", string(key), err)
	}
	return value, nil
}

// PutIfAbsent stores value only when key is not present yet. It reports
// whether the value was written.
func (d *DB) PutIfAbsent(key []byte, value []byte) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db.Has(key) {
		return false, nil
	}
	if err := d.db.Put(key, value); err != nil {
		return false, fmt.Errorf("error putting key %s: %w", string(key), err)
	}
	// Sync so an inserted record survives a crash right after the write.
	if err := d.db.Sync(); err != nil {
		return true, fmt.Errorf("error syncing after key %s: %w", string(key), err)
	}
	return true, nil
}

// Fold iterates over all key-value pairs and calls fn for each. Values that
// cannot be read are logged and skipped.
func (d *DB) Fold(fn func(key []byte, value []byte) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.db.Fold(func(key []byte) error {
		value, err := d.db.Get(key)
		if err != nil {
			log.WithError(err).Warnf("Fold: Error getting value for key %s", string(key))
			return nil
		}
		return fn(key, value)
	})
}
