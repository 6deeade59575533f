package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/khanglvm/listing-ranker/internal/logging"
)

// Key prefixes for BadgerDB storage
const (
	stateKeyPrefix  = "state:"
	searchKeyPrefix = "search:"
)

// InMemoryPath opens a Badger store without touching disk.
const InMemoryPath = ":memory:"

// BadgerStorage implements the Storage interface using BadgerDB.
type BadgerStorage struct {
	db       *badger.DB
	dir      string
	enabled  bool
	initOnce sync.Once
}

// NewBadgerStorage creates a new BadgerDB storage instance rooted at dir.
// With an empty dir the database lives at ~/.listing-ranker/badger.
func NewBadgerStorage(dir string) *BadgerStorage {
	if dir == "" {
		base, err := DefaultDir()
		if err != nil {
			logging.Warn().Err(err).Msg("badger storage disabled")
			return &BadgerStorage{enabled: false}
		}
		dir = filepath.Join(base, "badger")
	}

	return &BadgerStorage{dir: dir, enabled: true}
}

// Init opens the database. On failure the store is disabled.
func (s *BadgerStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		var opts badger.Options
		if s.dir == InMemoryPath {
			opts = badger.DefaultOptions("").WithInMemory(true)
		} else {
			if err := os.MkdirAll(s.dir, 0755); err != nil {
				initErr = fmt.Errorf("failed to create badger directory: %w", err)
				s.enabled = false
				return
			}
			opts = badger.DefaultOptions(s.dir)
		}

		db, err := badger.Open(opts.WithLogger(nil))
		if err != nil {
			initErr = fmt.Errorf("failed to open badger: %w", err)
			s.enabled = false
			return
		}
		s.db = db
	})

	return initErr
}

// LoadState returns the state blob for a scope, or nil if none exists.
func (s *BadgerStorage) LoadState(scope string) ([]byte, error) {
	if !s.enabled || s.db == nil {
		return nil, nil
	}

	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stateKeyPrefix + scope))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	return blob, nil
}

// SaveState replaces the state blob for a scope.
func (s *BadgerStorage) SaveState(scope string, blob []byte) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stateKeyPrefix+scope), blob)
	})
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

// DeleteState removes the state blob for a scope.
func (s *BadgerStorage) DeleteState(scope string) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(stateKeyPrefix + scope))
	})
	if err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// ListScopes returns every scope that has a stored blob, in key order.
func (s *BadgerStorage) ListScopes() ([]string, error) {
	scopes := []string{}
	if !s.enabled || s.db == nil {
		return scopes, nil
	}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(stateKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			scopes = append(scopes, strings.TrimPrefix(string(it.Item().Key()), stateKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}

	return scopes, nil
}

// RecordSearch records a search query for analytics.
func (s *BadgerStorage) RecordSearch(search SearchRecord) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	data, err := json.Marshal(search)
	if err != nil {
		return fmt.Errorf("marshal search: %w", err)
	}

	key := searchKeyPrefix + search.Timestamp.UTC().Format(time.RFC3339Nano) + ":" + search.SearchID
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("set search: %w", err)
	}
	return nil
}

// Cleanup removes search records older than the retention window.
func (s *BadgerStorage) Cleanup(retention time.Duration) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	cutoff := time.Now().Add(-retention)
	var stale [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(searchKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec SearchRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				logging.Warn().Err(err).Msg("skipping unreadable search record")
				continue
			}
			if rec.Timestamp.Before(cutoff) {
				stale = append(stale, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan searches: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("delete search: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush cleanup: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *BadgerStorage) Close() error {
	if !s.enabled || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger: %w", err)
	}
	s.db = nil
	return nil
}
