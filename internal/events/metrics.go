// internal/events/metrics.go

package events

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	similarityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "events_similarity_scores",
			Help:    "Distribution of event similarity scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	similarCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_similar_cache_lookups_total",
			Help: "Similar-events cache lookups by result",
		},
		[]string{"result"},
	)

	rankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "events_similar_rank_duration_seconds",
			Help:    "Time spent loading and ranking similar events",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordSimilarityScore observes one computed similarity score.
func RecordSimilarityScore(score float64) {
	similarityScores.Observe(score)
}

func recordCacheLookup(result string) {
	similarCacheLookups.WithLabelValues(result).Inc()
}

func recordRankDuration(d time.Duration) {
	rankDuration.Observe(d.Seconds())
}
