// Package history records the outcome of every unit in every build.
//
// The dependency cache only knows what a unit depends on; history keeps what
// happened to it: whether the last run reused, rebuilt or failed it, how long
// the compile took and how large the binaries were. Entries live in a BoltDB
// file next to the dependency cache and back the stats command.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DefaultFileName is the history database inside the intermediate directory
	DefaultFileName = "history.db"

	// bucketName is the BoltDB bucket name for unit entries
	bucketName = "units"
)

// Outcome is what a run did with a unit
type Outcome string

const (
	Fresh   Outcome = "fresh"
	Rebuilt Outcome = "rebuilt"
	Failed  Outcome = "failed"
)

// Entry is the latest recorded outcome of one unit
type Entry struct {
	// Name is the manifest name of the unit
	Name string `json:"name"`

	// Outcome of the most recent run
	Outcome Outcome `json:"outcome"`

	// Profiles compiled for the unit
	Profiles []string `json:"profiles"`

	// BinarySize is the total size of all profile binaries of the last rebuild
	BinarySize int64 `json:"binary_size"`

	// Duration of the last rebuild
	Duration time.Duration `json:"duration"`

	// Timestamp when the outcome was recorded
	Timestamp time.Time `json:"timestamp"`

	// Builds counts rebuilds, including failed ones
	Builds int `json:"builds"`
}

// Stats summarizes the history store
type Stats struct {
	Units      int
	Builds     int
	Failed     int
	BinarySize int64
}

// Store is the BoltDB-backed history
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the history database in dir
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, DefaultFileName), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the history database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// Record stores the outcomes of one run in a single transaction.
// Fresh units keep their previous size and duration.
func (s *Store) Record(entries []Entry) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		for _, entry := range entries {
			var prev Entry
			if data := b.Get([]byte(entry.Name)); data != nil {
				if err := json.Unmarshal(data, &prev); err != nil {
					prev = Entry{}
				}
			}

			entry.Builds = prev.Builds
			if entry.Outcome == Fresh {
				entry.BinarySize = prev.BinarySize
				entry.Duration = prev.Duration
			} else {
				entry.Builds++
			}

			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}

			if err := b.Put([]byte(entry.Name), data); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}

	return nil
}

// Entries returns all entries sorted by name
func (s *Store) Entries() ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		return b.ForEach(func(_, data []byte) error {
			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				return nil // Skip unreadable entries
			}

			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return entries, nil
}

// Stats returns history statistics
func (s *Store) Stats() (Stats, error) {
	entries, err := s.Entries()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Units: len(entries)}
	for _, entry := range entries {
		stats.Builds += entry.Builds
		stats.BinarySize += entry.BinarySize

		if entry.Outcome == Failed {
			stats.Failed++
		}
	}

	return stats, nil
}

// Clear removes all entries
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}
