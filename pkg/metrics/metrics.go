package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Hierarchy metrics
	PlatformsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ldm_platforms_total",
			Help: "Total number of platforms",
		},
	)

	ProjectsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ldm_projects_total",
			Help: "Total number of projects",
		},
	)

	FilesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ldm_files_total",
			Help: "Total number of files by format",
		},
		[]string{"format"},
	)

	RowsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ldm_rows_total",
			Help: "Total number of translation rows by status",
		},
		[]string{"status"},
	)

	TrashItemsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ldm_trash_items_total",
			Help: "Total number of soft-deleted items awaiting purge, by type",
		},
		[]string{"item_type"},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ldm_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ldm_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ldm_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ldm_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldm_api_requests_total",
			Help: "Total number of API requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ldm_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Scheduler / Operation metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ldm_scheduling_latency_seconds",
			Help:    "Time between an Operation's enqueue and the worker picking it up",
			Buckets: prometheus.DefBuckets,
		},
	)

	OperationsScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldm_operations_scheduled_total",
			Help: "Total number of Operations scheduled by class",
		},
		[]string{"class"},
	)

	OperationsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldm_operations_failed_total",
			Help: "Total number of Operations that ended failed or cancelled, by class",
		},
		[]string{"class", "reason"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ldm_operation_duration_seconds",
			Help:    "Operation wall-clock duration in seconds by class",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		},
		[]string{"class"},
	)

	// Raft apply metrics
	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ldm_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TM engine metrics
	TMSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ldm_tm_search_duration_seconds",
			Help:    "Time taken for a TM cascade search in seconds, by tier that produced the match",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tier"},
	)

	TMCascadeTierHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldm_tm_cascade_tier_hits_total",
			Help: "Total number of TM matches returned by each cascade tier",
		},
		[]string{"tier"},
	)

	TMEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ldm_tm_entries_total",
			Help: "Total number of TM entries by TM id",
		},
		[]string{"tm_id"},
	)

	TMIndexRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ldm_tm_index_rebuild_duration_seconds",
			Help:    "Time taken to rebuild a TM's persistent vector index",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 300, 900},
		},
	)

	// Sync engine metrics
	SyncPullDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ldm_sync_pull_duration_seconds",
			Help:    "Time taken for a sync pull by kind (snapshot, delta)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	SyncPushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ldm_sync_push_duration_seconds",
			Help:    "Time taken to push local offline edits to the authoritative backend",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldm_sync_conflicts_total",
			Help: "Total number of sync conflicts encountered, by resolution",
		},
		[]string{"resolution"},
	)
)

func init() {
	prometheus.MustRegister(PlatformsTotal)
	prometheus.MustRegister(ProjectsTotal)
	prometheus.MustRegister(FilesTotal)
	prometheus.MustRegister(RowsTotal)
	prometheus.MustRegister(TrashItemsTotal)

	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(RaftApplyDuration)

	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)

	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(OperationsScheduled)
	prometheus.MustRegister(OperationsFailed)
	prometheus.MustRegister(OperationDuration)

	prometheus.MustRegister(TMSearchDuration)
	prometheus.MustRegister(TMCascadeTierHits)
	prometheus.MustRegister(TMEntriesTotal)
	prometheus.MustRegister(TMIndexRebuildDuration)

	prometheus.MustRegister(SyncPullDuration)
	prometheus.MustRegister(SyncPushDuration)
	prometheus.MustRegister(SyncConflictsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
