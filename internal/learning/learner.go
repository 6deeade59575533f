package learning

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/khanglvm/listing-ranker/internal/logging"
	"github.com/khanglvm/listing-ranker/internal/metrics"
	"github.com/khanglvm/listing-ranker/internal/storage"
)

var (
	// ErrStateLoad wraps failures reading or decoding persisted state.
	ErrStateLoad = errors.New("learning state load failed")

	// ErrStatePersist wraps failures writing state back to storage.
	ErrStatePersist = errors.New("learning state persist failed")

	// ErrInvalidPreference rejects a delta that is not finite or would make
	// the stored preference non-finite.
	ErrInvalidPreference = errors.New("preference must stay finite")
)

// DefaultScope is the scope used when none is configured.
const DefaultScope = "global"

// Options configures a Learner.
type Options struct {
	// Scope keys the persisted state blob (global, tenant id, user id).
	Scope string

	// MaxLog bounds the interaction log. Zero means DefaultMaxLog.
	MaxLog int

	// SyncWrites persists inside each mutating call. When false a single
	// background goroutine writes the newest snapshot.
	SyncWrites bool
}

// Learner is the single writer of a learning state.
//
// Snapshot is lock-free. Mutations serialize on mu: clone the current
// state, apply the change, publish the clone, persist it.
type Learner struct {
	store     storage.Storage
	opts      Options
	current   atomic.Pointer[State]
	mu        sync.Mutex
	persister *persister
	log       zerolog.Logger
	closeOnce sync.Once
}

// NewLearner loads the scope's state from store and starts serving it.
// Unreadable or malformed state is replaced by defaults; the load error is
// logged and never returned.
func NewLearner(store storage.Storage, opts Options) *Learner {
	if opts.Scope == "" {
		opts.Scope = DefaultScope
	}
	opts.Scope = Normalize(opts.Scope)
	if opts.MaxLog <= 0 || opts.MaxLog > DefaultMaxLog {
		opts.MaxLog = DefaultMaxLog
	}

	l := &Learner{
		store: store,
		opts:  opts,
		log:   logging.Component("learning").With().Str("scope", opts.Scope).Logger(),
	}

	if err := store.Init(); err != nil {
		l.log.Warn().Err(err).Msg("learning storage initialization failed, state will not persist")
	}

	state, err := l.load()
	if err != nil {
		metrics.StateLoadFallbacks.Inc()
		l.log.Warn().Err(err).Msg("discarding persisted state, using defaults")
		state = NewState()
	}
	l.current.Store(state)
	metrics.SetFeatureWeights(state.FeatureWeights)

	if !opts.SyncWrites {
		l.persister = newPersister(store, opts.Scope, l.log)
	}

	return l
}

// load reads and decodes the persisted state. A missing blob is not an error.
func (l *Learner) load() (*State, error) {
	blob, err := l.store.LoadState(l.opts.Scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateLoad, err)
	}
	if blob == nil {
		return NewState(), nil
	}

	rec, err := storage.DecodeState(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateLoad, err)
	}

	state := FromRecord(rec, l.opts.MaxLog)
	l.log.Info().
		Int("patterns", len(state.PatternFrequency)).
		Int("interactions", len(state.InteractionLog)).
		Msg("learning state loaded")
	return state, nil
}

// Scope returns the scope this learner persists under.
func (l *Learner) Scope() string {
	return l.opts.Scope
}

// Snapshot returns the current immutable state.
func (l *Learner) Snapshot() *State {
	return l.current.Load()
}

// RecordClick associates itemID with the query that produced it.
// Empty queries or ids, and ids already recorded for the query, are ignored.
func (l *Learner) RecordClick(query, itemID string) error {
	query = Normalize(query)
	if query == "" || itemID == "" {
		metrics.RecordLearningEvent("click", false)
		l.log.Debug().Str("item", itemID).Msg("click ignored: no current query")
		return nil
	}

	return l.mutate("click", func(s *State) bool {
		existing := s.ContextualMappings[query]
		for _, id := range existing {
			if id == itemID {
				return false
			}
		}
		s.ContextualMappings[query] = appendUnique(existing, itemID)
		return true
	})
}

// RecordFeedback records a rating for query. Ratings outside 1..5 and empty
// queries are ignored.
func (l *Learner) RecordFeedback(query, sessionID string, rating int) error {
	query = Normalize(query)
	if query == "" || !ValidRating(rating) {
		metrics.RecordLearningEvent("feedback", false)
		l.log.Debug().Int("rating", rating).Msg("feedback ignored")
		return nil
	}

	return l.RecordInteraction(NewInteraction(query, 0, nil, rating, sessionID))
}

// RecordInteraction logs an interaction and learns from it: clicked results
// mine query tokens and replace the query's contextual mapping, and a rating
// shifts every feature weight by (rating-3)*5 within [MinWeight, MaxWeight].
func (l *Learner) RecordInteraction(in Interaction) error {
	in.Query = Normalize(in.Query)
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	in.ClickedItemIDs = appendUnique(nil, in.ClickedItemIDs...)

	return l.mutate("interaction", func(s *State) bool {
		s.InteractionLog = truncateLog(append(s.InteractionLog, in), l.opts.MaxLog)

		if len(in.ClickedItemIDs) > 0 {
			for _, token := range SignificantTokens(in.Query) {
				s.PatternFrequency[token]++
			}
			if in.Query != "" {
				s.ContextualMappings[in.Query] = in.ClickedItemIDs
			}
		}

		if in.HasRating() {
			adjustment := float64(in.FeedbackRating-3) * 5
			for factor, w := range s.FeatureWeights {
				s.FeatureWeights[factor] = clampWeight(w + adjustment)
			}
		}
		return true
	})
}

// AdjustPreference adds delta to a user preference strength.
// A non-finite delta, or one that would overflow the stored value, returns
// ErrInvalidPreference and leaves the state unchanged.
func (l *Learner) AdjustPreference(key string, delta float64) error {
	key = Normalize(key)
	if key == "" {
		metrics.RecordLearningEvent("preference", false)
		return nil
	}
	if !isFinite(delta) {
		metrics.RecordLearningEvent("preference", false)
		return fmt.Errorf("%w: delta %v for %q", ErrInvalidPreference, delta, key)
	}

	var overflow float64
	err := l.mutate("preference", func(s *State) bool {
		sum := s.UserPreferences[key] + delta
		if !isFinite(sum) {
			overflow = sum
			return false
		}
		s.UserPreferences[key] = sum
		return true
	})
	if err == nil && overflow != 0 {
		return fmt.Errorf("%w: %q would become %v", ErrInvalidPreference, key, overflow)
	}
	return err
}

// Reset deletes the persisted state and reverts to defaults.
func (l *Learner) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := NewState()
	next.generation = l.current.Load().generation + 1
	l.current.Store(next)
	metrics.SetFeatureWeights(next.FeatureWeights)

	// The persister orders the delete after any write still in flight.
	if l.persister != nil {
		return l.persister.Reset(next)
	}
	return deleteState(l.store, l.opts.Scope)
}

// mutate applies fn to a clone of the current state and publishes it.
// fn returns false when nothing changed; nothing is published or persisted.
func (l *Learner) mutate(kind string, fn func(*State) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.current.Load().Clone()
	if !fn(next) {
		metrics.RecordLearningEvent(kind, false)
		return nil
	}
	next.generation++
	l.current.Store(next)

	metrics.RecordLearningEvent(kind, true)
	metrics.SetFeatureWeights(next.FeatureWeights)

	if l.persister != nil {
		l.persister.Submit(next)
		return nil
	}
	return l.write(next)
}

// write persists s synchronously.
func (l *Learner) write(s *State) error {
	if err := writeState(l.store, l.opts.Scope, s); err != nil {
		l.log.Warn().Err(err).Uint64("generation", s.generation).Msg("failed to persist learning state")
		return err
	}
	return nil
}

// Flush blocks until the newest published state is persisted.
func (l *Learner) Flush() error {
	if l.persister != nil {
		return l.persister.Flush()
	}
	return nil
}

// Close stops background persistence after a final flush.
// The underlying storage stays open; its owner closes it.
func (l *Learner) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.persister != nil {
			err = l.persister.Stop()
		}
	})
	return err
}

func deleteState(store storage.Storage, scope string) error {
	if err := store.DeleteState(scope); err != nil {
		return fmt.Errorf("%w: %w", ErrStatePersist, err)
	}
	return nil
}

// writeState encodes s and stores it under scope.
func writeState(store storage.Storage, scope string, s *State) error {
	start := time.Now()

	blob, err := storage.EncodeState(s.ToRecord())
	if err == nil {
		err = store.SaveState(scope, blob)
	}
	metrics.RecordPersist(time.Since(start), err)

	if err != nil {
		return fmt.Errorf("%w: %w", ErrStatePersist, err)
	}
	return nil
}
