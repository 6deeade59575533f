/*
Package ranking orders a candidate snapshot by relevance to a query.

Items are scored in parallel against one learning snapshot, adjusted by
category preference and popularity bonuses, stably sorted and cut at zero.
*/
package ranking

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/khanglvm/listing-ranker/internal/learning"
	"github.com/khanglvm/listing-ranker/internal/logging"
	"github.com/khanglvm/listing-ranker/internal/metrics"
	"github.com/khanglvm/listing-ranker/internal/scoring"
)

const (
	maxTypeBonus       = 20.0
	typeBonusDivisor   = 5.0
	maxPopularityBonus = 15.0
	popularityPerClick = 2.0
)

// Options tunes a ranking pass.
type Options struct {
	// Workers bounds concurrent item scoring. Zero means GOMAXPROCS.
	Workers int
}

// Ranked is an item with its final score and matched factors.
type Ranked struct {
	Item    scoring.Item       `json:"item"`
	Score   float64            `json:"score"`
	Factors []string           `json:"factors,omitempty"`
	Detail  map[string]float64 `json:"detail,omitempty"`
}

// Rank scores items against query and returns those with a positive score,
// best first. Equal scores keep their input order. An empty query returns
// every item unscored in input order.
//
// Rank never blocks on learning writes: all items see the same snapshot.
// It returns early only if ctx is cancelled.
func Rank(ctx context.Context, query string, items []scoring.Item, snap *learning.State, opts Options) ([]Ranked, error) {
	query = learning.Normalize(query)
	if query == "" {
		out := make([]Ranked, len(items))
		for i, it := range items {
			out[i] = Ranked{Item: it}
		}
		return out, nil
	}
	if snap == nil {
		snap = learning.NewState()
	}

	start := time.Now()
	prepared := scoring.Prepare(query, snap)
	clicks := snap.ClickCounts()

	scored := make([]Ranked, len(items))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range items {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scored[i] = scoreItem(prepared, items[i], snap, clicks)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ranking interrupted: %w", err)
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	results := scored[:0]
	for _, r := range scored {
		if r.Score > 0 {
			results = append(results, r)
		}
	}

	for _, r := range results {
		for _, f := range r.Factors {
			metrics.FactorHits.WithLabelValues(f).Inc()
		}
	}
	metrics.RecordRank(time.Since(start), len(items), len(results))

	return results, nil
}

// scoreItem scores one item and applies the bonuses. A panic while
// scoring degrades that item to zero.
func scoreItem(q *scoring.Query, item scoring.Item, snap *learning.State, clicks map[string]int) (r Ranked) {
	r.Item = item

	defer func() {
		if rec := recover(); rec != nil {
			logging.Warn().
				Str("component", "ranking").
				Str("item", item.ID).
				Interface("panic", rec).
				Msg("item scoring failed")
			r = Ranked{Item: item}
		}
	}()

	res := q.Score(item)
	r.Score = res.Score + typeBonus(item, snap) + popularityBonus(item, clicks)
	r.Factors = res.Factors
	r.Detail = res.Contributions
	return r
}

func typeBonus(item scoring.Item, snap *learning.State) float64 {
	pref, ok := snap.Preference(scoring.TypeKey(item.Type))
	if !ok {
		return 0
	}
	return math.Min(maxTypeBonus, pref/typeBonusDivisor)
}

func popularityBonus(item scoring.Item, clicks map[string]int) float64 {
	return math.Min(maxPopularityBonus, float64(clicks[item.ID])*popularityPerClick)
}

// Items projects ranked results back to their items.
func Items(ranked []Ranked) []scoring.Item {
	items := make([]scoring.Item, len(ranked))
	for i, r := range ranked {
		items[i] = r.Item
	}
	return items
}
