/*
Package learning implements the adaptive knowledge behind search ranking.

It owns the learning state (pattern frequencies, feature weights, user
preferences, contextual query mappings and a bounded interaction log), the
feedback rules that mutate it, and its persistence. Readers take immutable
snapshots; all writes go through a single Learner.
*/
package learning

import (
	"time"

	"github.com/khanglvm/listing-ranker/internal/storage"
)

// Interaction is one recorded search outcome used for learning.
type Interaction struct {
	// Query is the normalized query the interaction belongs to.
	Query string

	// Timestamp is when the interaction happened.
	Timestamp time.Time

	// ResultCount is how many results the query returned.
	ResultCount int

	// ClickedItemIDs are the items the user opened from the results.
	ClickedItemIDs []string

	// FeedbackRating is the user's rating (1-5), or 0 if not rated.
	FeedbackRating int

	// SessionID is the session that produced the interaction.
	SessionID string
}

// NewInteraction creates an interaction stamped with the current time.
func NewInteraction(query string, resultCount int, clicked []string, rating int, sessionID string) Interaction {
	ids := make([]string, len(clicked))
	copy(ids, clicked)

	return Interaction{
		Query:          Normalize(query),
		Timestamp:      time.Now(),
		ResultCount:    resultCount,
		ClickedItemIDs: ids,
		FeedbackRating: rating,
		SessionID:      sessionID,
	}
}

// HasRating reports whether the interaction carries a valid rating.
func (in Interaction) HasRating() bool {
	return ValidRating(in.FeedbackRating)
}

// ValidRating reports whether r is in 1..5.
func ValidRating(r int) bool {
	return r >= 1 && r <= 5
}

// ToStorage converts an interaction to its storage model.
func (in Interaction) ToStorage() storage.InteractionRecord {
	return storage.InteractionRecord{
		Query:          in.Query,
		Timestamp:      in.Timestamp,
		ResultCount:    in.ResultCount,
		ClickedItemIDs: in.ClickedItemIDs,
		FeedbackRating: in.FeedbackRating,
		SessionID:      in.SessionID,
	}
}

func interactionFromStorage(r storage.InteractionRecord) Interaction {
	return Interaction{
		Query:          Normalize(r.Query),
		Timestamp:      r.Timestamp,
		ResultCount:    r.ResultCount,
		ClickedItemIDs: appendUnique(nil, r.ClickedItemIDs...),
		FeedbackRating: r.FeedbackRating,
		SessionID:      r.SessionID,
	}
}
