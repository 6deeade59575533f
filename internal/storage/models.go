/*
Package storage provides the serialized shape of learned ranking state.

StateRecord is the persisted boundary: five named fields, with every
mapping flattened to a list of key/value pairs so the blob is stable across
languages and map iteration orders.
*/
package storage

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// StateRecord is the persisted form of a learning state.
type StateRecord struct {
	// PatternFrequency holds query token occurrence counts.
	PatternFrequency []CountPair `json:"pattern_frequency"`

	// FeatureWeights holds per-factor score multipliers.
	FeatureWeights []ValuePair `json:"feature_weights"`

	// UserPreferences holds learned preference strengths.
	UserPreferences []ValuePair `json:"user_preferences"`

	// ContextualMappings holds query to clicked item ids.
	ContextualMappings []ListPair `json:"contextual_mappings"`

	// InteractionLog holds the most recent interactions, oldest first.
	InteractionLog []InteractionRecord `json:"interaction_log"`
}

// CountPair is one integer-valued mapping entry.
type CountPair struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// ValuePair is one float-valued mapping entry.
type ValuePair struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// ListPair is one list-valued mapping entry.
type ListPair struct {
	Key   string   `json:"key"`
	Value []string `json:"value"`
}

// InteractionRecord is the persisted form of one interaction.
type InteractionRecord struct {
	Query          string    `json:"query"`
	Timestamp      time.Time `json:"timestamp"`
	ResultCount    int       `json:"result_count"`
	ClickedItemIDs []string  `json:"clicked_item_ids"`

	// FeedbackRating is 1-5, or 0 if not rated.
	FeedbackRating int    `json:"feedback_rating,omitempty"`
	SessionID      string `json:"session_id"`
}

// SearchRecord represents a search query for analytics.
type SearchRecord struct {
	// SearchID is a unique identifier for this search (UUID).
	SearchID string `json:"search_id"`

	// QueryHash is the SHA256 hash of the search query for privacy.
	QueryHash string `json:"query_hash"`

	// Timestamp is when the search was performed.
	Timestamp time.Time `json:"timestamp"`

	// ResultsCount is the number of results returned.
	ResultsCount int `json:"results_count"`

	// SessionID is the session that issued the search.
	SessionID string `json:"session_id"`
}

// EncodeState serializes a state record.
func EncodeState(rec *StateRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return data, nil
}

// DecodeState parses a state record blob.
func DecodeState(data []byte) (*StateRecord, error) {
	var rec StateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &rec, nil
}
