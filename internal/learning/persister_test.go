package learning

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/khanglvm/listing-ranker/internal/storage"
)

func TestAsyncLearner_PersistsOnFlush(t *testing.T) {
	store := newMockStorage()
	l := NewLearner(store, Options{})
	defer l.Close()

	for i := 0; i < 50; i++ {
		l.RecordFeedback("офис", "", 4)
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	rec, err := storage.DecodeState(store.blob(DefaultScope))
	if err != nil {
		t.Fatalf("failed to decode blob: %v", err)
	}
	if got := FromRecord(rec, DefaultMaxLog); len(got.InteractionLog) != 50 {
		t.Errorf("expected 50 persisted interactions, got %d", len(got.InteractionLog))
	}
}

func TestAsyncLearner_CoalescesWrites(t *testing.T) {
	store := newMockStorage()
	l := NewLearner(store, Options{})

	for i := 0; i < 200; i++ {
		l.AdjustPreference("parking", 1)
	}
	l.Close()

	saves := store.saveCount()
	if saves == 0 || saves > 200 {
		t.Errorf("expected between 1 and 200 writes, got %d", saves)
	}

	reloaded := NewLearner(store, Options{SyncWrites: true})
	defer reloaded.Close()
	if v, _ := reloaded.Snapshot().Preference("parking"); v != 200 {
		t.Errorf("expected final preference 200 persisted, got %v", v)
	}
}

func TestAsyncLearner_MutationsDoNotBlock(t *testing.T) {
	store := newMockStorage()
	store.saveErr = errors.New("slow or broken disk")
	l := NewLearner(store, Options{})
	defer l.Close()

	start := time.Now()
	for i := 0; i < 1000; i++ {
		if err := l.AdjustPreference("metro", 1); err != nil {
			t.Fatalf("async mutation returned error: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("mutations blocked: took %v", elapsed)
	}
}

// gatedStorage blocks the first SaveState until release is closed.
type gatedStorage struct {
	*mockStorage
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStorage() *gatedStorage {
	return &gatedStorage{
		mockStorage: newMockStorage(),
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (g *gatedStorage) SaveState(scope string, blob []byte) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	return g.mockStorage.SaveState(scope, blob)
}

func TestAsyncLearner_ResetAfterInFlightWrite(t *testing.T) {
	store := newGatedStorage()
	l := NewLearner(store, Options{})

	l.AdjustPreference("type_офис", 100)
	<-store.started

	done := make(chan error, 1)
	go func() { done <- l.Reset() }()

	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if len(l.Snapshot().UserPreferences) != 0 {
		t.Error("expected empty preferences after reset")
	}
	l.Close()

	reloaded := NewLearner(store, Options{SyncWrites: true})
	defer reloaded.Close()
	if v, ok := reloaded.Snapshot().Preference("type_офис"); ok {
		t.Errorf("expected reset to survive restart, got type_офис=%v", v)
	}
}

func TestAsyncLearner_MutationAfterResetPersists(t *testing.T) {
	store := newMockStorage()
	l := NewLearner(store, Options{})

	l.AdjustPreference("feature_metro", 1)
	l.Flush()
	if err := l.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	l.AdjustPreference("feature_parking", 2)
	l.Close()

	reloaded := NewLearner(store, Options{SyncWrites: true})
	defer reloaded.Close()
	snap := reloaded.Snapshot()
	if _, ok := snap.Preference("feature_metro"); ok {
		t.Error("expected pre-reset preference gone")
	}
	if v, _ := snap.Preference("feature_parking"); v != 2 {
		t.Errorf("expected post-reset preference 2, got %v", v)
	}
}

func TestPersister_NeverWritesOlderGeneration(t *testing.T) {
	store := newMockStorage()
	p := newPersister(store, "scope", zerolog.Nop())
	defer p.Stop()

	newer := NewState()
	newer.generation = 5
	newer.UserPreferences["k"] = 5
	p.Submit(newer)
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	older := NewState()
	older.generation = 3
	older.UserPreferences["k"] = 3
	p.Submit(older)
	p.Flush()

	rec, _ := storage.DecodeState(store.blob("scope"))
	if v, _ := FromRecord(rec, DefaultMaxLog).Preference("k"); v != 5 {
		t.Errorf("expected generation 5 to remain persisted, got value %v", v)
	}
}

func TestPersister_StopFlushes(t *testing.T) {
	store := newMockStorage()
	p := newPersister(store, "scope", zerolog.Nop())

	s := NewState()
	s.generation = 1
	p.Submit(s)
	p.Stop()
	p.Stop()

	if store.blob("scope") == nil {
		t.Error("expected state written on stop")
	}
}
