package learning

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/khanglvm/listing-ranker/internal/storage"
)

// Scoring factor names. The first eight carry adaptive weights.
const (
	FactorExact    = "exact_match"
	FactorType     = "type_match"
	FactorSize     = "size_match"
	FactorPrice    = "price_match"
	FactorFeature  = "feature_match"
	FactorLocation = "location_match"
	FactorNumber   = "number_match"
	FactorWord     = "word_match"

	// FactorContextual tags the flat contextual bonus; it has no weight.
	FactorContextual = "contextual_match"
)

const (
	// MinWeight and MaxWeight bound every feature weight.
	MinWeight = 5.0
	MaxWeight = 150.0

	// DefaultMaxLog is the interaction log capacity.
	DefaultMaxLog = 1000

	// minTokenRunes is the exclusive lower bound on significant token length.
	minTokenRunes = 2
)

// WeightedFactors lists the factors with adaptive weights, in table order.
var WeightedFactors = []string{
	FactorExact, FactorType, FactorSize, FactorPrice,
	FactorFeature, FactorLocation, FactorNumber, FactorWord,
}

var defaultWeights = map[string]float64{
	FactorExact:    100,
	FactorType:     50,
	FactorSize:     30,
	FactorPrice:    30,
	FactorFeature:  25,
	FactorLocation: 20,
	FactorNumber:   40,
	FactorWord:     20,
}

// DefaultWeights returns a fresh copy of the initial weight table.
func DefaultWeights() map[string]float64 {
	w := make(map[string]float64, len(defaultWeights))
	for k, v := range defaultWeights {
		w[k] = v
	}
	return w
}

// State is one generation of learned knowledge.
//
// A State published by a Learner is immutable: readers may hold it across a
// whole ranking pass without locking. Writers clone, mutate and republish.
type State struct {
	PatternFrequency   map[string]int
	FeatureWeights     map[string]float64
	UserPreferences    map[string]float64
	ContextualMappings map[string][]string
	InteractionLog     []Interaction

	generation uint64
}

// NewState returns the default initial state.
func NewState() *State {
	return &State{
		PatternFrequency:   make(map[string]int),
		FeatureWeights:     DefaultWeights(),
		UserPreferences:    make(map[string]float64),
		ContextualMappings: make(map[string][]string),
		InteractionLog:     []Interaction{},
	}
}

// Generation returns the mutation counter that produced this state.
func (s *State) Generation() uint64 {
	return s.generation
}

// Clone returns a copy that can be mutated without affecting s.
// Contextual id lists and log entries are shared; mutators replace them
// rather than editing in place.
func (s *State) Clone() *State {
	c := &State{
		PatternFrequency:   make(map[string]int, len(s.PatternFrequency)),
		FeatureWeights:     make(map[string]float64, len(s.FeatureWeights)),
		UserPreferences:    make(map[string]float64, len(s.UserPreferences)),
		ContextualMappings: make(map[string][]string, len(s.ContextualMappings)),
		InteractionLog:     make([]Interaction, len(s.InteractionLog)),
		generation:         s.generation,
	}
	for k, v := range s.PatternFrequency {
		c.PatternFrequency[k] = v
	}
	for k, v := range s.FeatureWeights {
		c.FeatureWeights[k] = v
	}
	for k, v := range s.UserPreferences {
		c.UserPreferences[k] = v
	}
	for k, v := range s.ContextualMappings {
		c.ContextualMappings[k] = v
	}
	copy(c.InteractionLog, s.InteractionLog)
	return c
}

// Weight returns the weight for a factor, falling back to its default.
func (s *State) Weight(factor string) float64 {
	if w, ok := s.FeatureWeights[factor]; ok {
		return w
	}
	return defaultWeights[factor]
}

// Preference returns the stored strength for key and whether it exists.
func (s *State) Preference(key string) (float64, bool) {
	v, ok := s.UserPreferences[key]
	return v, ok
}

// ClickCounts counts, per item id, the logged interactions that clicked it.
func (s *State) ClickCounts() map[string]int {
	counts := make(map[string]int)
	for _, in := range s.InteractionLog {
		seen := make(map[string]struct{}, len(in.ClickedItemIDs))
		for _, id := range in.ClickedItemIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			counts[id]++
		}
	}
	return counts
}

// clampWeight bounds w to [MinWeight, MaxWeight].
func clampWeight(w float64) float64 {
	return math.Min(MaxWeight, math.Max(MinWeight, w))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Normalize lower-cases and trims a textual key.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SignificantTokens splits text on whitespace and keeps tokens longer than
// two runes.
func SignificantTokens(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) > minTokenRunes {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// appendUnique appends ids not already in list, returning a new slice.
func appendUnique(list []string, ids ...string) []string {
	out := make([]string, 0, len(list)+len(ids))
	seen := make(map[string]struct{}, len(list)+len(ids))
	for _, id := range list {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ToRecord flattens s into its persisted form with keys in sorted order.
func (s *State) ToRecord() *storage.StateRecord {
	rec := &storage.StateRecord{
		PatternFrequency:   make([]storage.CountPair, 0, len(s.PatternFrequency)),
		FeatureWeights:     make([]storage.ValuePair, 0, len(s.FeatureWeights)),
		UserPreferences:    make([]storage.ValuePair, 0, len(s.UserPreferences)),
		ContextualMappings: make([]storage.ListPair, 0, len(s.ContextualMappings)),
		InteractionLog:     make([]storage.InteractionRecord, 0, len(s.InteractionLog)),
	}

	for _, k := range sortedKeys(s.PatternFrequency) {
		rec.PatternFrequency = append(rec.PatternFrequency, storage.CountPair{Key: k, Value: s.PatternFrequency[k]})
	}
	for _, k := range sortedKeys(s.FeatureWeights) {
		rec.FeatureWeights = append(rec.FeatureWeights, storage.ValuePair{Key: k, Value: s.FeatureWeights[k]})
	}
	for _, k := range sortedKeys(s.UserPreferences) {
		rec.UserPreferences = append(rec.UserPreferences, storage.ValuePair{Key: k, Value: s.UserPreferences[k]})
	}
	for _, k := range sortedKeys(s.ContextualMappings) {
		rec.ContextualMappings = append(rec.ContextualMappings, storage.ListPair{Key: k, Value: s.ContextualMappings[k]})
	}
	for _, in := range s.InteractionLog {
		rec.InteractionLog = append(rec.InteractionLog, in.ToStorage())
	}

	return rec
}

// FromRecord rebuilds a state from its persisted form, re-establishing every
// invariant: keys normalized, weights restricted to the known factors and
// clamped, contextual ids deduplicated, the log bounded by maxLog.
func FromRecord(rec *storage.StateRecord, maxLog int) *State {
	s := NewState()

	for _, p := range rec.PatternFrequency {
		if key := Normalize(p.Key); key != "" {
			s.PatternFrequency[key] += p.Value
		}
	}
	for _, p := range rec.FeatureWeights {
		key := Normalize(p.Key)
		if _, known := defaultWeights[key]; !known || !isFinite(p.Value) {
			continue
		}
		s.FeatureWeights[key] = clampWeight(p.Value)
	}
	for _, p := range rec.UserPreferences {
		if key := Normalize(p.Key); key != "" && isFinite(p.Value) {
			s.UserPreferences[key] = p.Value
		}
	}
	for _, p := range rec.ContextualMappings {
		if key := Normalize(p.Key); key != "" {
			s.ContextualMappings[key] = appendUnique(s.ContextualMappings[key], p.Value...)
		}
	}
	for _, r := range rec.InteractionLog {
		s.InteractionLog = append(s.InteractionLog, interactionFromStorage(r))
	}
	s.InteractionLog = truncateLog(s.InteractionLog, maxLog)

	return s
}

// truncateLog keeps the newest maxLog entries.
func truncateLog(log []Interaction, maxLog int) []Interaction {
	if maxLog <= 0 {
		maxLog = DefaultMaxLog
	}
	if len(log) <= maxLog {
		return log
	}
	kept := make([]Interaction, maxLog)
	copy(kept, log[len(log)-maxLog:])
	return kept
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
