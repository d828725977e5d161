package budget

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const historyBucketName = "history"

// HistoryLimit caps the number of retained history entries. Appending past
// the limit evicts the oldest entries.
const HistoryLimit = 20

// DB defines the interface for the history cache
type DB interface {
	// AppendEntry stores a new entry and evicts the oldest beyond the limit
	AppendEntry(entry *HistoryEntry) error

	// GetEntry retrieves an entry by ID
	GetEntry(id string) (*HistoryEntry, error)

	// ListEntries returns all entries, most recent first
	ListEntries() ([]*HistoryEntry, error)

	// RemoveEntry removes an entry from the history
	RemoveEntry(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(historyBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// AppendEntry stores the entry and truncates the history to HistoryLimit,
// evicting the oldest entries, in a single transaction.
func (b *BoltDB) AppendEntry(entry *HistoryEntry) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucketName))

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling history entry: %w", err)
		}
		if err := bucket.Put([]byte(entry.ID), data); err != nil {
			return err
		}

		entries, err := decodeEntries(bucket)
		if err != nil {
			return err
		}
		if len(entries) <= HistoryLimit {
			return nil
		}

		sortNewestFirst(entries)
		for _, old := range entries[HistoryLimit:] {
			if err := bucket.Delete([]byte(old.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetEntry retrieves an entry by ID
func (b *BoltDB) GetEntry(id string) (*HistoryEntry, error) {
	var entry *HistoryEntry
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("history entry not found: %s", id)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries returns all entries, most recent first
func (b *BoltDB) ListEntries() ([]*HistoryEntry, error) {
	var entries []*HistoryEntry
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucketName))
		var err error
		entries, err = decodeEntries(bucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(entries)
	return entries, nil
}

// RemoveEntry removes an entry from the history
func (b *BoltDB) RemoveEntry(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func decodeEntries(bucket *bbolt.Bucket) ([]*HistoryEntry, error) {
	entries := make([]*HistoryEntry, 0)
	err := bucket.ForEach(func(k, v []byte) error {
		var entry HistoryEntry
		if err := json.Unmarshal(v, &entry); err != nil {
			return fmt.Errorf("unmarshaling history entry: %w", err)
		}
		entries = append(entries, &entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func sortNewestFirst(entries []*HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CapturedAt.Equal(entries[j].CapturedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CapturedAt.After(entries[j].CapturedAt)
	})
}
