package learning

import "sort"

// topPatternLimit caps Stats.TopPatterns.
const topPatternLimit = 10

// PatternCount is one mined token and how often it was seen.
type PatternCount struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// Stats summarizes a learning state.
type Stats struct {
	TotalQueries          int                `json:"total_queries"`
	UniquePatternCount    int                `json:"unique_patterns"`
	CurrentFeatureWeights map[string]float64 `json:"feature_weights"`
	TopPatterns           []PatternCount     `json:"top_patterns"`
}

// Stats summarizes s. TopPatterns holds up to ten patterns by count
// descending, ties broken by pattern.
func (s *State) Stats() Stats {
	weights := make(map[string]float64, len(s.FeatureWeights))
	for k, v := range s.FeatureWeights {
		weights[k] = v
	}

	patterns := make([]PatternCount, 0, len(s.PatternFrequency))
	for p, c := range s.PatternFrequency {
		patterns = append(patterns, PatternCount{Pattern: p, Count: c})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return patterns[i].Pattern < patterns[j].Pattern
	})
	if len(patterns) > topPatternLimit {
		patterns = patterns[:topPatternLimit]
	}

	return Stats{
		TotalQueries:          len(s.InteractionLog),
		UniquePatternCount:    len(s.PatternFrequency),
		CurrentFeatureWeights: weights,
		TopPatterns:           patterns,
	}
}

// Stats summarizes the current snapshot.
func (l *Learner) Stats() Stats {
	return l.Snapshot().Stats()
}
