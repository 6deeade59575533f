/*
Package storage implements the persistent layer for learned ranking state.

Each learning scope (global, per tenant or per user) owns exactly one
serialized state blob. Backends are SQLite (modernc.org/sqlite, the default,
pure Go), BadgerDB and an in-process map. Every backend degrades gracefully:
if the database cannot be opened the store is disabled and operations become
no-ops, so a missing database never prevents the engine from starting.
*/
package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/khanglvm/listing-ranker/internal/logging"

	_ "modernc.org/sqlite"
)

// Backend names accepted by New.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Storage defines the interface for persistent storage operations.
type Storage interface {
	// Init initializes the database and runs migrations.
	Init() error

	// LoadState returns the state blob for a scope, or nil if none exists.
	LoadState(scope string) ([]byte, error)

	// SaveState replaces the state blob for a scope.
	SaveState(scope string, blob []byte) error

	// DeleteState removes the state blob for a scope.
	DeleteState(scope string) error

	// ListScopes returns every scope that has a stored blob.
	ListScopes() ([]string, error)

	// RecordSearch records a search query for analytics.
	RecordSearch(search SearchRecord) error

	// Cleanup removes search records older than the retention window.
	Cleanup(retention time.Duration) error

	// Close closes the database connection.
	Close() error
}

// New returns an uninitialized store for the named backend.
// An empty path selects the default location under ~/.listing-ranker.
func New(backend, path string) (Storage, error) {
	switch backend {
	case "", BackendSQLite:
		return NewStorage(path), nil
	case BackendBadger:
		return NewBadgerStorage(path), nil
	case BackendMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", backend)
	}
}

// DefaultDir returns ~/.listing-ranker.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".listing-ranker"), nil
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	mu       sync.Mutex
	initOnce sync.Once
}

// NewStorage creates a new SQLite storage instance.
//
// With an empty path the database is created at ~/.listing-ranker/state.db.
// If the database cannot be opened, the storage will be disabled but operations will not fail.
func NewStorage(dbPath string) *SQLiteStorage {
	if dbPath == "" {
		dir, err := DefaultDir()
		if err != nil {
			logging.Warn().Err(err).Msg("sqlite storage disabled")
			return &SQLiteStorage{enabled: false}
		}
		dbPath = filepath.Join(dir, "state.db")
	}

	return &SQLiteStorage{
		dbPath:  dbPath,
		enabled: true,
	}
}

// Init initializes the database and runs migrations.
//
// If initialization fails, storage is disabled and subsequent operations
// become no-ops (graceful degradation).
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		dbDir := filepath.Dir(s.dbPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			s.enabled = false
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			s.enabled = false
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			s.enabled = false
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.enabled = false
			return
		}
	})

	return initErr
}

// Enabled reports whether the store accepts reads and writes.
func (s *SQLiteStorage) Enabled() bool {
	return s.enabled && s.db != nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

// HashQuery creates a SHA256 hash of a query string for privacy.
func HashQuery(query string) string {
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:])
}
