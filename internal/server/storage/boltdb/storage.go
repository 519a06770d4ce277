// Package boltdb implements storage.KeyValueStore on a single bbolt file.
// It backs verification codes and rate-limit counters when no Redis is
// configured. bbolt has no native expiry, so entries carry their deadline
// and are dropped lazily on read and in bulk by PurgeExpired.
package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/commentauth/internal/server/storage"
)

// BoltDB bucket names
var bucketKV = []byte("kv")

// entry is the stored envelope around a value
type entry struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at,omitempty"` // unix nanos, 0 = no expiry
}

func (e entry) expired(now time.Time) bool {
	return e.ExpiresAt != 0 && now.UnixNano() >= e.ExpiresAt
}

// Storage represents BoltDB key-value storage
type Storage struct {
	db  *bbolt.DB
	now func() time.Time
}

// Option configures Storage.
type Option func(*Storage)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string, opts ...Option) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database file is open
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketKV) == nil {
			return errors.New("kv bucket not found")
		}
		return nil
	})
}

func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketKV); err != nil {
			return fmt.Errorf("failed to create kv bucket: %w", err)
		}
		return nil
	})
}

// Get returns the value of key
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	var value string

	err := s.db.View(func(tx *bbolt.Tx) error {
		e, ok, err := readEntry(tx.Bucket(bucketKV), key)
		if err != nil {
			return err
		}
		if !ok || e.expired(s.now()) {
			return storage.ErrKeyNotFound
		}
		value = e.Value
		return nil
	})
	if err != nil {
		return "", err
	}

	return value, nil
}

// Set stores value under key for ttl
func (s *Storage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return writeEntry(tx.Bucket(bucketKV), key, entry{Value: value, ExpiresAt: s.deadline(ttl)})
	})
}

// Delete removes key
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketKV).Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		return nil
	})
}

// Incr increments the counter at key inside one write transaction. bbolt
// serializes writers, which makes the read-modify-write atomic.
func (s *Storage) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	var (
		count     int64
		remaining time.Duration
	)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketKV)
		now := s.now()

		e, ok, err := readEntry(bucket, key)
		if err != nil {
			return err
		}

		if !ok || e.expired(now) {
			e = entry{Value: "0", ExpiresAt: s.deadline(ttl)}
		}

		current, err := strconv.ParseInt(e.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("value of %q is not a counter: %w", key, err)
		}
		count = current + 1
		e.Value = strconv.FormatInt(count, 10)

		if e.ExpiresAt != 0 {
			remaining = time.Duration(e.ExpiresAt - now.UnixNano())
		}

		return writeEntry(bucket, key, e)
	})
	if err != nil {
		return 0, 0, err
	}

	return count, remaining, nil
}

// PurgeExpired removes expired entries
func (s *Storage) PurgeExpired(ctx context.Context) (int, error) {
	removed := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketKV)
		now := s.now()

		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil {
				// нечитаемые записи тоже удаляем
				stale = append(stale, append([]byte(nil), k...))
				return nil
			}
			if e.expired(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		// bbolt forbids mutating a bucket while iterating it
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to delete key: %w", err)
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

func (s *Storage) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.now().Add(ttl).UnixNano()
}

func readEntry(bucket *bbolt.Bucket, key string) (entry, bool, error) {
	data := bucket.Get([]byte(key))
	if data == nil {
		return entry{}, false, nil
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return entry{}, false, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	return e, true, nil
}

func writeEntry(bucket *bbolt.Bucket, key string, e entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if err := bucket.Put([]byte(key), data); err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}

	return nil
}
