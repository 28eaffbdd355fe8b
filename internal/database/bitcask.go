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

// maxValueSize bounds a single record. Favorites carry the full wallpaper
// payload including tags.
const maxValueSize = 1 << 20

// DB wraps the bitcask instance and provides helper methods.
type DB struct {
	db *bitcask.Bitcask
	sync.RWMutex
	closeOnce sync.Once
	closed    bool
	closeErr  error
}

// Open initializes and returns a DB instance.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Clean(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", path, err)
	}

	db, err := bitcask.Open(path, bitcask.WithMaxValueSize(maxValueSize), bitcask.WithSync(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	log.Debugf("Database opened at %s", path)
	return &DB{db: db}, nil
}

// Close safely closes the database.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		d.Lock()
		defer d.Unlock()

		d.closeErr = d.db.Close()
		d.closed = true

		if d.closeErr != nil {
			log.Errorf("Error during database close operation: %v", d.closeErr)
		} else {
			log.Debug("Database closed.")
		}
	})

	return d.closeErr
}

// Has checks if a key exists in the database.
func (d *DB) Has(key []byte) bool {
	d.RLock()
	defer d.RUnlock()
	if d.closed {
		return false
	}
	return d.db.Has(key)
}

// Get retrieves the value associated with a key.
func (d *DB) Get(key []byte) ([]byte, error) {
	d.RLock()
	defer d.RUnlock()
	if d.closed {
		return nil, errDBClosed
	}
	value, err := d.db.Get(key)
	if errors.Is(err, bitcask.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading key %s: %w", key, err)
	}
	return value, nil
}

// Put stores value under key.
func (d *DB) Put(key []byte, value []byte) error {
	d.Lock()
	defer d.Unlock()
	if d.closed {
		return errDBClosed
	}
	if err := d.db.Put(key, value); err != nil {
		return fmt.Errorf("error writing key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key from the database. Deleting a missing key is not an error.
func (d *DB) Delete(key []byte) error {
	d.Lock()
	defer d.Unlock()
	if d.closed {
		return errDBClosed
	}
	if err := d.db.Delete(key); err != nil {
		return fmt.Errorf("error deleting key %s: %w", key, err)
	}
	return nil
}

// Fold iterates over all key-value pairs with the given prefix.
func (d *DB) Fold(prefix []byte, fn func(key []byte, value []byte) error) error {
	d.RLock()
	defer d.RUnlock()
	if d.closed {
		return errDBClosed
	}

	var keys [][]byte
	err := d.db.Scan(prefix, func(key []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	})
	if err != nil {
		return fmt.Errorf("error scanning prefix %s: %w", prefix, err)
	}

	for _, key := range keys {
		value, err := d.db.Get(key)
		if err != nil {
			log.WithError(err).Warnf("Fold: Error getting value for key %s", key)
			continue
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns all keys with the given prefix.
func (d *DB) Keys(prefix []byte) ([]string, error) {
	var keys []string
	err := d.Fold(prefix, func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	return keys, err
}

// DeletePrefix removes every key starting with prefix.
func (d *DB) DeletePrefix(prefix []byte) (int, error) {
	keys, err := d.Keys(prefix)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := d.Delete([]byte(k)); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

var errDBClosed = errors.New("database is closed")
