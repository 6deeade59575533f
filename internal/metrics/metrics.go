/*
Package metrics exposes Prometheus instrumentation for ranking and learning.

	http.Handle("/metrics", promhttp.Handler())
*/
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listing_ranker_rank_duration_seconds",
			Help:    "Duration of a full ranking pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RankCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listing_ranker_rank_candidates",
			Help:    "Number of candidate items per ranking pass",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	RankResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listing_ranker_rank_results",
			Help:    "Number of items returned per ranking pass",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	FactorHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_ranker_factor_hits_total",
			Help: "Number of scored items on which each factor fired",
		},
		[]string{"factor"},
	)

	LearningEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_ranker_learning_events_total",
			Help: "Learning events by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: click, feedback, interaction, preference; outcome: applied, ignored
	)

	PersistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listing_ranker_persist_duration_seconds",
			Help:    "Duration of learning state writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_ranker_persist_errors_total",
			Help: "Learning state writes that failed",
		},
	)

	StateLoadFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_ranker_state_load_fallbacks_total",
			Help: "Times the persisted state was unreadable and defaults were used",
		},
	)

	FeatureWeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "listing_ranker_feature_weight",
			Help: "Current adaptive weight per scoring factor",
		},
		[]string{"factor"},
	)
)

// RecordRank records one ranking pass.
func RecordRank(duration time.Duration, candidates, results int) {
	RankDuration.Observe(duration.Seconds())
	RankCandidates.Observe(float64(candidates))
	RankResults.Observe(float64(results))
}

// RecordLearningEvent counts a learning event.
func RecordLearningEvent(kind string, applied bool) {
	outcome := "applied"
	if !applied {
		outcome = "ignored"
	}
	LearningEvents.WithLabelValues(kind, outcome).Inc()
}

// RecordPersist records one state write.
func RecordPersist(duration time.Duration, err error) {
	PersistDuration.Observe(duration.Seconds())
	if err != nil {
		PersistErrors.Inc()
	}
}

// SetFeatureWeights publishes the current weight table.
func SetFeatureWeights(weights map[string]float64) {
	for factor, w := range weights {
		FeatureWeight.WithLabelValues(factor).Set(w)
	}
}

// Serve runs a /metrics listener on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
