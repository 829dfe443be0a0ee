package services

import "github.com/prometheus/client_golang/prometheus"

// Outcomes recorded by votehub_results_requests_total.
const (
	outcomeHit    = "hit"
	outcomeMiss   = "miss"
	outcomeStale  = "stale"
	outcomeForced = "forced"
)

var (
	// votesCast counts accepted votes by vote type name.
	votesCast = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votehub_votes_cast_total",
			Help: "Total number of votes cast, including re-votes.",
		},
		[]string{"vote_type"},
	)

	// resultsRequests counts results lookups by cache outcome.
	resultsRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votehub_results_requests_total",
			Help: "Results requests by cache outcome (hit, miss, stale, forced).",
		},
		[]string{"outcome"},
	)

	// recomputeSeconds observes how long a full results recalculation takes.
	recomputeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "votehub_results_recompute_seconds",
			Help:    "Duration of results recalculations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// demographicsFailures counts breakdowns replaced by empty maps.
	demographicsFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "votehub_demographics_failures_total",
			Help: "Demographic breakdowns that could not be computed.",
		},
	)
)

func init() {
	prometheus.MustRegister(votesCast, resultsRequests, recomputeSeconds, demographicsFailures)
}
