package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/stackwise-dev/stackwise/internal/messages"
)

const (
	recordKeyPrefix = "record/"
	latestKey       = "record-latest"
	stateKeyPrefix  = "state/"
)

// ErrNotFound reports a missing record or state key.
var ErrNotFound = errors.New("not found")

// Store is an embedded key-value store for run records and small state blobs.
// One store serves a single install root; callers must Close it.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the store at dir.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New(messages.RecordDirRequired)
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf(messages.RecordOpenFailedFmt, dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store with no disk persistence, for tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf(messages.RecordOpenFailedFmt, "memory", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutRecord persists the record and advances the latest pointer.
func (s *Store) PutRecord(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf(messages.RecordEncodeFmt, rec.RunID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(recordKeyPrefix+rec.RunID), data); err != nil {
			return err
		}
		return txn.Set([]byte(latestKey), []byte(rec.RunID))
	})
	if err != nil {
		return fmt.Errorf(messages.RecordPutFailedFmt, rec.RunID, err)
	}
	return nil
}

// GetRecord loads a run record by id.
func (s *Store) GetRecord(runID string) (*Record, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKeyPrefix + runID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf(messages.RecordNotFoundFmt, runID)
	}
	if err != nil {
		return nil, fmt.Errorf(messages.RecordGetFailedFmt, runID, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf(messages.RecordDecodeFmt, runID, err)
	}
	return &rec, nil
}

// LatestRecord loads the most recently persisted run record.
func (s *Store) LatestRecord() (*Record, error) {
	var runID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			runID = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.New(messages.RecordNoLatest)
	}
	if err != nil {
		return nil, fmt.Errorf(messages.RecordGetFailedFmt, "latest", err)
	}
	return s.GetRecord(runID)
}

// ListRunIDs returns every persisted run id, unordered.
func (s *Store) ListRunIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(recordKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf(messages.RecordGetFailedFmt, "list", err)
	}
	return ids, nil
}

// PutState stores an opaque state blob, such as interceptor circuit state.
func (s *Store) PutState(name string, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stateKeyPrefix+name), data)
	})
	if err != nil {
		return fmt.Errorf(messages.RecordPutFailedFmt, name, err)
	}
	return nil
}

// GetState loads a state blob by name. Returns ErrNotFound when the name has
// never been stored.
func (s *Store) GetState(name string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stateKeyPrefix + name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf(messages.RecordGetFailedFmt, name, err)
	}
	return data, nil
}
