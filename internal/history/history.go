// Package history keeps a local log of finished sessions in BadgerDB.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const keyPrefix = "session:"

// Status is the outcome of a recorded session.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record describes one finished session.
type Record struct {
	ID        string    `json:"id"`
	Direction string    `json:"direction"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Path      string    `json:"path,omitempty"`
	Verifier  string    `json:"verifier,omitempty"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps BadgerDB for history operations.
type Store struct {
	db        *badger.DB
	retention time.Duration
}

// Open opens (or creates) the store at path. Records expire after
// retention; zero keeps them forever.
func Open(path string, retention time.Duration) (*Store, error) {
	return open(badger.DefaultOptions(path), retention)
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory(retention time.Duration) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), retention)
}

func open(opts badger.Options, retention time.Duration) (*Store, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	return &Store{db: db, retention: retention}, nil
}

// Close closes the BadgerDB.
func (s *Store) Close() error {
	return s.db.Close()
}

// recordKey sorts records by creation time.
func recordKey(r Record) []byte {
	key := make([]byte, 0, len(keyPrefix)+8+len(r.ID))
	key = append(key, keyPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(r.CreatedAt.UnixNano()))
	return append(key, r.ID...)
}

// Add stores r, filling in ID and CreatedAt when they are unset.
func (s *Store) Add(r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	val, err := json.Marshal(r)
	if err != nil {
		return Record{}, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(recordKey(r), val)
		if s.retention > 0 {
			e = e.WithTTL(s.retention)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return Record{}, fmt.Errorf("failed to store history record: %w", err)
	}
	return r, nil
}

// List returns up to limit records, newest first. A limit of zero or less
// returns everything.
func (s *Store) List(limit int) ([]Record, error) {
	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the last key not greater than the seek key.
		seek := append([]byte(keyPrefix), 0xff)
		for it.Seek(seek); it.Valid(); it.Next() {
			var r Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return err
			}
			records = append(records, r)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	return records, err
}

// Clear removes every record.
func (s *Store) Clear() error {
	return s.db.DropPrefix([]byte(keyPrefix))
}
