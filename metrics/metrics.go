package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ResearchersChecked counts per-researcher outcomes of the update check.
	ResearchersChecked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orquidea_researchers_checked_total",
			Help: "Researchers processed by the update check, by outcome.",
		},
		[]string{"outcome"},
	)

	NewPublications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orquidea_new_publications_total",
			Help: "Total number of new publications detected and stored.",
		},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orquidea_notifications_total",
			Help: "Notification delivery attempts, by channel and result.",
		},
		[]string{"channel", "result"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orquidea_update_run_duration_seconds",
			Help:    "Duration of a full update check run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	RunsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orquidea_update_runs_rejected_total",
			Help: "Update runs rejected because another run was in progress.",
		},
	)
)

func init() {
	prometheus.MustRegister(ResearchersChecked, NewPublications, Notifications, RunDuration, RunsRejected)
}
