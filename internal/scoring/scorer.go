/*
Package scoring computes the relevance of one listing to one query.

A score is the sum of independent terms (exact text, category, size, price,
features, contextual history, token overlap). Term weights and user
preferences come from a learning snapshot; scoring never mutates it.
*/
package scoring

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/khanglvm/listing-ranker/internal/learning"
	"github.com/khanglvm/listing-ranker/internal/similarity"
)

const (
	// contextualBonus is the flat score for items clicked after a similar query.
	contextualBonus = 50.0

	// contextualThreshold is the exclusive query similarity for history reuse.
	contextualThreshold = 0.7

	// tokenThreshold is the exclusive token similarity for a fuzzy word match.
	tokenThreshold = 0.8

	// wordMatchScale is the score of a query whose every token matched.
	wordMatchScale = 30.0

	// areaHintMax is the largest number read as an area; larger ones are prices.
	areaHintMax = 1000

	// Calibration points: raw term scores equal the contribution at the
	// default weight.
	sizeBase    = 30.0
	priceBase   = 30.0
	featureBase = 25.0
	featureUnit = 25.0
)

// Result is the score of one item with the factors that contributed to it.
type Result struct {
	Score   float64
	Factors []string

	// Contributions holds the amount each factor added.
	Contributions map[string]float64
}

func (r *Result) add(factor string, v float64) {
	r.Score += v
	r.Factors = append(r.Factors, factor)
	if r.Contributions == nil {
		r.Contributions = make(map[string]float64)
	}
	r.Contributions[factor] += v
}

// Query is a query analyzed against a snapshot, reusable across items.
type Query struct {
	text   string
	snap   *learning.State
	tokens []string

	areaHints  []int
	priceHints []int

	// categoryHits holds the categories whose keywords occur in the query.
	categoryHits []string

	// clicked holds item ids clicked after a similar historical query.
	clicked map[string]struct{}
}

// Prepare analyzes a normalized query once for scoring many items.
func Prepare(query string, snap *learning.State) *Query {
	if snap == nil {
		snap = learning.NewState()
	}

	q := &Query{
		text:    query,
		snap:    snap,
		tokens:  learning.SignificantTokens(query),
		clicked: make(map[string]struct{}),
	}

	for _, m := range numberPattern.FindAllString(query, -1) {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if n <= areaHintMax {
			q.areaHints = append(q.areaHints, n)
		} else {
			q.priceHints = append(q.priceHints, n)
		}
	}

	for _, c := range categories {
		if containsAny(query, c.keywords) || q.matchesLearned(c.name) {
			q.categoryHits = append(q.categoryHits, c.name)
		}
	}

	for historical, ids := range snap.ContextualMappings {
		if similarity.Similarity(query, historical) <= contextualThreshold {
			continue
		}
		for _, id := range ids {
			q.clicked[id] = struct{}{}
		}
	}

	return q
}

// matchesLearned reports whether a frequent mined pattern sharing the
// category's prefix occurs in the query.
func (q *Query) matchesLearned(name string) bool {
	prefix := runePrefix(name, categoryPrefixRunes)
	for pattern, freq := range q.snap.PatternFrequency {
		if freq > learnedPatternMinFreq && strings.HasPrefix(pattern, prefix) && strings.Contains(q.text, pattern) {
			return true
		}
	}
	return false
}

// Score is shorthand for Prepare(query, snap).Score(item).
func Score(query string, item Item, snap *learning.State) Result {
	return Prepare(query, snap).Score(item)
}

// Score computes the relevance of item. It is deterministic for a fixed
// query and snapshot.
func (q *Query) Score(item Item) Result {
	var r Result
	text := item.Text()

	if q.text != "" && strings.Contains(text, q.text) {
		r.add(learning.FactorExact, q.snap.Weight(learning.FactorExact))
	}

	if q.typeMatch(item) {
		r.add(learning.FactorType, q.snap.Weight(learning.FactorType))
	}

	if raw := q.sizeScore(item.Area); raw > 0 {
		r.add(learning.FactorSize, raw*q.snap.Weight(learning.FactorSize)/sizeBase)
	}

	if raw := q.priceScore(item.Price); raw > 0 {
		r.add(learning.FactorPrice, raw*q.snap.Weight(learning.FactorPrice)/priceBase)
	}

	if raw := q.featureScore(item); raw > 0 {
		r.add(learning.FactorFeature, raw*q.snap.Weight(learning.FactorFeature)/featureBase)
	}

	if _, ok := q.clicked[item.ID]; ok && item.ID != "" {
		r.add(learning.FactorContextual, contextualBonus)
	}

	// Token overlap is not weight-scaled.
	if ratio := q.tokenOverlap(text); ratio > 0 {
		r.add(learning.FactorWord, ratio*wordMatchScale)
	}

	return r
}

func (q *Query) typeMatch(item Item) bool {
	itemType := strings.ToLower(item.Type)
	if itemType == "" {
		return false
	}
	for _, name := range q.categoryHits {
		if strings.Contains(itemType, name) {
			return true
		}
	}
	return false
}

func (q *Query) sizeScore(area float64) float64 {
	for _, n := range q.areaHints {
		diff := math.Abs(area - float64(n))
		switch {
		case diff <= 20:
			return 40
		case diff <= 50:
			return 20
		case diff <= 100:
			return 10
		}
	}

	for _, b := range sizeBuckets {
		if strings.Contains(q.text, b.word) && area >= b.min && area <= b.max {
			return 30
		}
	}
	return 0
}

func (q *Query) priceScore(price float64) float64 {
	for _, n := range q.priceHints {
		hint := float64(n)
		diff := math.Abs(price - hint)
		switch {
		case diff <= hint*0.1:
			return 40
		case diff <= hint*0.2:
			return 20
		case diff <= hint*0.3:
			return 10
		}
	}

	for _, w := range priceWords {
		if strings.Contains(q.text, w) {
			pref, _ := q.snap.Preference(priceKey(w))
			return math.Min(30, pref/10)
		}
	}
	return 0
}

func (q *Query) featureScore(item Item) float64 {
	var raw float64
	for _, f := range features {
		if !containsAny(q.text, f.keywords) || !f.has(item) {
			continue
		}
		mult, ok := q.snap.Preference(featureKey(f.name))
		if !ok {
			mult = 1
		}
		raw += featureUnit * mult
	}
	return raw
}

// tokenOverlap returns the share of query tokens found among the item's
// tokens, by substring either way or close spelling.
func (q *Query) tokenOverlap(text string) float64 {
	if len(q.tokens) == 0 {
		return 0
	}
	itemTokens := learning.SignificantTokens(text)

	matched := 0
	for _, qt := range q.tokens {
		for _, it := range itemTokens {
			if tokensMatch(qt, it) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(q.tokens))
}

func tokensMatch(a, b string) bool {
	if strings.Contains(b, a) || strings.Contains(a, b) {
		return true
	}
	// Similarity cannot exceed the length ratio; skip hopeless pairs.
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if float64(min(la, lb))/float64(max(la, lb)) <= tokenThreshold {
		return false
	}
	return similarity.Similarity(a, b) > tokenThreshold
}
