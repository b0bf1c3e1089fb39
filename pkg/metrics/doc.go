/*
Package metrics defines and registers the Prometheus metrics exposed by the
LDM server: hierarchy counts, Raft status, API request latency, Operation
scheduling, TM cascade behavior and sync activity. Metrics are exposed over
HTTP for scraping by Prometheus.

# Metrics Catalog

Hierarchy:

	ldm_platforms_total, ldm_projects_total         gauges
	ldm_files_total{format}                         gauge
	ldm_rows_total{status}                           gauge
	ldm_trash_items_total{item_type}                 gauge

Raft:

	ldm_raft_is_leader, ldm_raft_peers_total         gauges
	ldm_raft_log_index, ldm_raft_applied_index       gauges
	ldm_raft_apply_duration_seconds                  histogram

API:

	ldm_api_requests_total{operation,status}         counter
	ldm_api_request_duration_seconds{operation}      histogram

Scheduler:

	ldm_scheduling_latency_seconds                   histogram
	ldm_operations_scheduled_total{class}            counter
	ldm_operations_failed_total{class,reason}        counter
	ldm_operation_duration_seconds{class}            histogram

TM engine:

	ldm_tm_search_duration_seconds{tier}             histogram
	ldm_tm_cascade_tier_hits_total{tier}              counter
	ldm_tm_entries_total{tm_id}                      gauge
	ldm_tm_index_rebuild_duration_seconds            histogram

Sync engine:

	ldm_sync_pull_duration_seconds{kind}             histogram
	ldm_sync_push_duration_seconds                   histogram
	ldm_sync_conflicts_total{resolution}             counter

# Usage

	timer := metrics.NewTimer()
	matches, tier := cascade.Search(ctx, query)
	timer.ObserveDurationVec(metrics.TMSearchDuration, string(tier))
	metrics.TMCascadeTierHits.WithLabelValues(string(tier)).Inc()

All metrics are registered in init(); Collector periodically samples a
Source (the active repository backend) on a 15s tick to keep the hierarchy
and Raft gauges current without putting metrics collection on the write
path.
*/
package metrics
