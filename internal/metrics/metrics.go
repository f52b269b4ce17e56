package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "demoki",
			Name:      "chat_requests_total",
			Help:      "Chat turns handled, by dialog state.",
		},
		[]string{"state"},
	)

	reservations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "demoki",
			Name:      "reservations_total",
			Help:      "Reservations booked.",
		},
	)

	cancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "demoki",
			Name:      "cancellations_total",
			Help:      "Reservations cancelled.",
		},
	)

	commits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "demoki",
			Name:      "workbook_commits_total",
			Help:      "Workbook write outcomes.",
		},
		[]string{"outcome"},
	)

	lockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "demoki",
			Name:      "workbook_lock_wait_seconds",
			Help:      "Time spent waiting for the workbook advisory lock.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(chatRequests, reservations, cancellations, commits, lockWait)
	})
}

// IncChat increments the chat turn counter for a dialog state label.
func IncChat(state string) {
	chatRequests.WithLabelValues(state).Inc()
}

func IncReservations() {
	reservations.Inc()
}

func IncCancellations() {
	cancellations.Inc()
}

// IncCommit records a workbook write outcome label (committed,
// rolled_back, failed).
func IncCommit(outcome string) {
	commits.WithLabelValues(outcome).Inc()
}

func ObserveLockWait(d time.Duration) {
	lockWait.Observe(d.Seconds())
}
