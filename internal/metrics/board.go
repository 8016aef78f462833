package metrics

import "github.com/prometheus/client_golang/prometheus"

// Board Prometheus metrics.
var (
	PostsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bbs",
			Name:      "posts_created_total",
			Help:      "Total number of created posts",
		},
		[]string{"kind"}, // "thread" / "reply"
	)

	DuplicateWarnedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bbs",
			Name:      "duplicate_warned_total",
			Help:      "Total number of posts flagged as near-duplicates",
		},
	)

	LikesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bbs",
			Name:      "likes_total",
			Help:      "Total number of like requests",
		},
		[]string{"result"}, // "new" / "repeat"
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bbs",
			Name:      "notifications_total",
			Help:      "Total number of derived notifications",
		},
		[]string{"kind"},
	)

	ThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bbs",
			Name:      "throttled_total",
			Help:      "Total number of writes rejected by the rate gate",
		},
	)

	SimilarityScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bbs",
			Name:      "similarity_scan_duration_seconds",
			Help:      "Vector index scan duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)
)

var boardMetricsRegistered bool

// RegisterBoardMetrics registers Prometheus board metrics. Must be called once from main.
func RegisterBoardMetrics() {
	if boardMetricsRegistered {
		return
	}
	prometheus.MustRegister(PostsCreatedTotal)
	prometheus.MustRegister(DuplicateWarnedTotal)
	prometheus.MustRegister(LikesTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(ThrottledTotal)
	prometheus.MustRegister(SimilarityScanDuration)
	boardMetricsRegistered = true
}
