/*
Package storage provides tests for the storage layer.
*/
package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	store := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestBadger(t *testing.T) *BadgerStorage {
	t.Helper()
	store := NewBadgerStorage(InMemoryPath)
	if err := store.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// backends runs fn against every Storage implementation.
func backends(t *testing.T, fn func(t *testing.T, s Storage)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLite(t)) })
	t.Run("badger", func(t *testing.T) { fn(t, newTestBadger(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStorage()) })
}

// TestInit verifies database initialization and schema creation.
func TestInit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	storage := NewStorage(dbPath)

	if err := storage.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer storage.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file not created")
	}
	if !storage.Enabled() {
		t.Error("expected storage to be enabled after Init")
	}
}

// TestInit_Idempotent verifies migrations are not re-applied on reopen.
func TestInit_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first := NewStorage(dbPath)
	if err := first.Init(); err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	if err := first.SaveState("global", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	first.Close()

	second := NewStorage(dbPath)
	if err := second.Init(); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	defer second.Close()

	blob, err := second.LoadState("global")
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if string(blob) != `{"a":1}` {
		t.Errorf("expected blob to survive reopen, got %q", blob)
	}
}

func TestStateRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, s Storage) {
		blob, err := s.LoadState("missing")
		if err != nil {
			t.Fatalf("LoadState failed: %v", err)
		}
		if blob != nil {
			t.Errorf("expected nil blob for missing scope, got %q", blob)
		}

		if err := s.SaveState("tenant-a", []byte("v1")); err != nil {
			t.Fatalf("SaveState failed: %v", err)
		}
		if err := s.SaveState("tenant-a", []byte("v2")); err != nil {
			t.Fatalf("SaveState overwrite failed: %v", err)
		}
		if err := s.SaveState("tenant-b", []byte("b")); err != nil {
			t.Fatalf("SaveState failed: %v", err)
		}

		blob, err = s.LoadState("tenant-a")
		if err != nil {
			t.Fatalf("LoadState failed: %v", err)
		}
		if string(blob) != "v2" {
			t.Errorf("expected latest blob 'v2', got %q", blob)
		}

		scopes, err := s.ListScopes()
		if err != nil {
			t.Fatalf("ListScopes failed: %v", err)
		}
		if len(scopes) != 2 || scopes[0] != "tenant-a" || scopes[1] != "tenant-b" {
			t.Errorf("unexpected scopes: %v", scopes)
		}

		if err := s.DeleteState("tenant-a"); err != nil {
			t.Fatalf("DeleteState failed: %v", err)
		}
		blob, _ = s.LoadState("tenant-a")
		if blob != nil {
			t.Errorf("expected nil after delete, got %q", blob)
		}
	})
}

func TestRecordSearchAndCleanup(t *testing.T) {
	backends(t, func(t *testing.T, s Storage) {
		old := SearchRecord{
			SearchID:     "old",
			QueryHash:    HashQuery("офис"),
			Timestamp:    time.Now().Add(-48 * time.Hour),
			ResultsCount: 3,
		}
		fresh := SearchRecord{
			SearchID:     "fresh",
			QueryHash:    HashQuery("склад"),
			Timestamp:    time.Now(),
			ResultsCount: 1,
			SessionID:    "s1",
		}

		if err := s.RecordSearch(old); err != nil {
			t.Fatalf("RecordSearch failed: %v", err)
		}
		if err := s.RecordSearch(fresh); err != nil {
			t.Fatalf("RecordSearch failed: %v", err)
		}
		if err := s.Cleanup(24 * time.Hour); err != nil {
			t.Fatalf("Cleanup failed: %v", err)
		}
	})
}

func TestSQLiteCleanupRemovesOldSearches(t *testing.T) {
	s := newTestSQLite(t)

	s.RecordSearch(SearchRecord{SearchID: "a", QueryHash: "x", Timestamp: time.Now().Add(-72 * time.Hour)})
	s.RecordSearch(SearchRecord{SearchID: "b", QueryHash: "y", Timestamp: time.Now()})

	if err := s.Cleanup(24 * time.Hour); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	n, err := s.CountSearches()
	if err != nil {
		t.Fatalf("CountSearches failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 search after cleanup, got %d", n)
	}
}

func TestMemoryCleanupRemovesOldSearches(t *testing.T) {
	s := NewMemoryStorage()
	s.RecordSearch(SearchRecord{SearchID: "a", Timestamp: time.Now().Add(-72 * time.Hour)})
	s.RecordSearch(SearchRecord{SearchID: "b", Timestamp: time.Now()})

	s.Cleanup(24 * time.Hour)

	got := s.Searches()
	if len(got) != 1 || got[0].SearchID != "b" {
		t.Errorf("unexpected searches after cleanup: %+v", got)
	}
}

// TestHashQuery verifies query hashing consistency.
func TestHashQuery(t *testing.T) {
	query := "офис в центре"

	hash1 := HashQuery(query)
	hash2 := HashQuery(query)

	if hash1 != hash2 {
		t.Error("HashQuery produced inconsistent results")
	}

	if len(hash1) != 64 { // SHA256 hex = 64 chars
		t.Errorf("Expected hash length 64, got %d", len(hash1))
	}
}

// TestGracefulDegradation verifies behavior when DB is unavailable.
func TestGracefulDegradation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// A regular file in place of the parent directory makes MkdirAll fail.
	storage := NewStorage(filepath.Join(blocker, "sub", "test.db"))

	if err := storage.Init(); err == nil {
		t.Error("expected Init to fail for unusable path")
	}

	if err := storage.SaveState("global", []byte("x")); err != nil {
		t.Errorf("SaveState should return nil on disabled storage, got: %v", err)
	}

	blob, err := storage.LoadState("global")
	if err != nil {
		t.Errorf("LoadState should not error on disabled storage, got: %v", err)
	}
	if blob != nil {
		t.Errorf("expected nil blob on disabled storage, got %q", blob)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{BackendSQLite, false},
		{BackendBadger, false},
		{BackendMemory, false},
		{"postgres", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			s, err := New(tt.backend, filepath.Join(t.TempDir(), "x"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
			}
			if !tt.wantErr && s == nil {
				t.Error("expected non-nil storage")
			}
		})
	}
}

func TestEncodeDecodeState(t *testing.T) {
	rec := &StateRecord{
		PatternFrequency:   []CountPair{{Key: "офис", Value: 3}},
		FeatureWeights:     []ValuePair{{Key: "exact_match", Value: 100}},
		ContextualMappings: []ListPair{{Key: "офис", Value: []string{"1", "2"}}},
	}

	data, err := EncodeState(rec)
	if err != nil {
		t.Fatalf("EncodeState failed: %v", err)
	}

	got, err := DecodeState(data)
	if err != nil {
		t.Fatalf("DecodeState failed: %v", err)
	}
	if len(got.ContextualMappings) != 1 || len(got.ContextualMappings[0].Value) != 2 {
		t.Errorf("contextual mappings lost: %+v", got.ContextualMappings)
	}

	if _, err := DecodeState([]byte("{not json")); err == nil {
		t.Error("expected DecodeState to reject malformed input")
	}
}
