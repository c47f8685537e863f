// internal/buddies/metrics.go

package buddies

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/imadgeboyega/kiekky-events/internal/common/apperr"
)

var (
	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buddies_compatibility_scores",
			Help:    "Distribution of compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddies_match_transitions_total",
			Help: "Buddy match lifecycle operations by outcome",
		},
		[]string{"action", "outcome"},
	)

	requestConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buddies_match_request_conflicts_total",
			Help: "Match requests rejected because an active match already existed",
		},
	)

	matchesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "buddies_matches",
			Help: "Buddy matches by status",
		},
		[]string{"status"},
	)

	acceptanceRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buddies_acceptance_rate",
			Help: "Share of answered requests that were accepted",
		},
	)

	candidateRankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "buddies_candidate_rank_duration_seconds",
			Help: "Time spent loading and ranking buddy candidates",
		},
	)
)

// RecordCompatibilityScore observes one computed compatibility score.
func RecordCompatibilityScore(score float64) {
	compatibilityScores.Observe(score)
}

func recordTransition(action string, err error) {
	transitionsTotal.WithLabelValues(action, outcome(err)).Inc()
}

func recordRequestConflict() {
	requestConflicts.Inc()
}

func recordRankDuration(d time.Duration) {
	candidateRankDuration.Observe(d.Seconds())
}

func recordStats(s *Stats) {
	matchesByStatus.WithLabelValues(string(StatusPending)).Set(float64(s.Pending))
	matchesByStatus.WithLabelValues(string(StatusAccepted)).Set(float64(s.Accepted))
	matchesByStatus.WithLabelValues(string(StatusDeclined)).Set(float64(s.Declined))
	matchesByStatus.WithLabelValues(string(StatusCancelled)).Set(float64(s.Cancelled))
	acceptanceRate.Set(s.AcceptanceRate)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}
