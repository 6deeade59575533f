/*
Package engine is the listing-ranker service object.

An Engine owns one learning scope and one client session. Its lifecycle is
New (load state) → Search/Click/Feedback (serve) → Close (flush state).
Searches read an immutable learning snapshot; clicks and ratings are
attributed to the session's most recent query.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/khanglvm/listing-ranker/internal/config"
	"github.com/khanglvm/listing-ranker/internal/learning"
	"github.com/khanglvm/listing-ranker/internal/logging"
	"github.com/khanglvm/listing-ranker/internal/ranking"
	"github.com/khanglvm/listing-ranker/internal/scoring"
	"github.com/khanglvm/listing-ranker/internal/session"
	"github.com/khanglvm/listing-ranker/internal/storage"
)

// Options configures an Engine.
type Options struct {
	Learning learning.Options
	Ranking  ranking.Options

	// Retention bounds search history kept by Cleanup.
	Retention time.Duration
}

// Engine ranks listings and learns from feedback on them.
type Engine struct {
	store     storage.Storage
	ownsStore bool
	learner   *learning.Learner
	searches  *searchRecorder
	session   *session.Tracker
	opts      Options
	log       zerolog.Logger
}

// SearchResponse is the outcome of one search.
type SearchResponse struct {
	SearchID  string           `json:"search_id"`
	SessionID string           `json:"session_id"`
	Query     string           `json:"query"`
	Results   []ranking.Ranked `json:"results"`
	Total     int              `json:"total"`
	Duration  time.Duration    `json:"duration_ns"`
}

// New creates an engine over store. The caller keeps ownership of store.
func New(store storage.Storage, opts Options) *Engine {
	log := logging.Component("engine")
	return &Engine{
		store:    store,
		learner:  learning.NewLearner(store, opts.Learning),
		searches: newSearchRecorder(store, log),
		session:  session.New(),
		opts:     opts,
		log:      log,
	}
}

// NewFromConfig opens the configured store and creates an engine owning it.
func NewFromConfig(cfg *config.Config) (*Engine, error) {
	store, err := cfg.OpenStorage()
	if err != nil {
		return nil, err
	}

	e := New(store, Options{
		Learning:  cfg.LearningOptions(),
		Ranking:   ranking.Options{Workers: cfg.Ranking.Workers},
		Retention: cfg.Storage.Retention,
	})
	e.ownsStore = true

	e.log.Info().
		Str("backend", cfg.Storage.Backend).
		Str("scope", e.learner.Scope()).
		Bool("sync_writes", cfg.Learning.SyncWrites).
		Msg("engine started")
	return e, nil
}

// Search ranks items for query and makes query the session's current query.
// A non-empty query is logged as an interaction carrying its result count
// and appended to the search history in the background. An empty query
// returns the items unranked.
func (e *Engine) Search(ctx context.Context, query string, items []scoring.Item) (*SearchResponse, error) {
	start := time.Now()
	query = learning.Normalize(query)

	results, err := ranking.Rank(ctx, query, items, e.learner.Snapshot(), e.opts.Ranking)
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		SearchID:  uuid.NewString(),
		SessionID: e.session.ID(),
		Query:     query,
		Results:   results,
		Total:     len(results),
		Duration:  time.Since(start),
	}

	if query == "" {
		return resp, nil
	}

	e.session.SetQuery(query)

	in := learning.NewInteraction(query, resp.Total, nil, 0, resp.SessionID)
	if err := e.swallowPersist(e.learner.RecordInteraction(in)); err != nil {
		e.log.Warn().Err(err).Msg("failed to log search interaction")
	}

	e.searches.Record(storage.SearchRecord{
		SearchID:     resp.SearchID,
		QueryHash:    storage.HashQuery(query),
		Timestamp:    start,
		ResultsCount: resp.Total,
		SessionID:    resp.SessionID,
	})

	e.log.Debug().
		Str("search_id", resp.SearchID).
		Int("candidates", len(items)).
		Int("results", resp.Total).
		Dur("took", resp.Duration).
		Msg("search ranked")
	return resp, nil
}

// SetQuery makes query the current query without ranking, for clients
// that ranked elsewhere or report events out of band.
func (e *Engine) SetQuery(query string) {
	e.session.SetQuery(query)
}

// Click attributes a click on itemID to the current query.
// Without a current query the click is ignored.
func (e *Engine) Click(itemID string) error {
	return e.swallowPersist(e.learner.RecordClick(e.session.CurrentQuery(), itemID))
}

// Feedback attributes a 1..5 rating to the current query.
// Out-of-range ratings or a missing current query are ignored.
func (e *Engine) Feedback(rating int) error {
	return e.swallowPersist(e.learner.RecordFeedback(e.session.CurrentQuery(), e.session.ID(), rating))
}

// RecordInteraction learns from a complete interaction record. An empty
// query defaults to the current query and an empty session to this one.
func (e *Engine) RecordInteraction(in learning.Interaction) error {
	if in.Query == "" {
		in.Query = e.session.CurrentQuery()
	}
	if in.SessionID == "" {
		in.SessionID = e.session.ID()
	}
	return e.swallowPersist(e.learner.RecordInteraction(in))
}

// AdjustPreference shifts a user preference such as "feature_parking",
// "price_недорого" or "type_офис".
func (e *Engine) AdjustPreference(key string, delta float64) error {
	return e.swallowPersist(e.learner.AdjustPreference(key, delta))
}

// swallowPersist drops persistence failures, which the learner has already
// logged and counted. The in-memory state stays authoritative.
func (e *Engine) swallowPersist(err error) error {
	if errors.Is(err, learning.ErrStatePersist) {
		return nil
	}
	return err
}

// Stats summarizes the current learning state.
func (e *Engine) Stats() learning.Stats {
	return e.learner.Stats()
}

// Session returns the current session state.
func (e *Engine) Session() session.Info {
	return e.session.Info()
}

// Snapshot returns the current learning state.
func (e *Engine) Snapshot() *learning.State {
	return e.learner.Snapshot()
}

// Export returns the persisted form of the current learning state.
func (e *Engine) Export() ([]byte, error) {
	return storage.EncodeState(e.learner.Snapshot().ToRecord())
}

// Reset discards all learned state for the engine's scope.
func (e *Engine) Reset() error {
	if err := e.learner.Reset(); err != nil {
		return fmt.Errorf("failed to reset learning state: %w", err)
	}
	e.session.Reset()
	e.log.Info().Str("scope", e.learner.Scope()).Msg("learning state cleared")
	return nil
}

// Cleanup drops search history older than the retention window.
func (e *Engine) Cleanup() error {
	if e.opts.Retention <= 0 {
		return nil
	}
	e.searches.Flush()
	return e.store.Cleanup(e.opts.Retention)
}

// Close writes queued search history, flushes learning state and closes an
// owned store.
func (e *Engine) Close() error {
	e.searches.Stop()

	var errs []error
	if err := e.learner.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.ownsStore {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
