package models

import "time"

// Severity ranks an alert. Critical sorts before warning.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Alert categories.
const (
	CategoryConnectivity = "connectivity"
	CategoryNodeOffline  = "node_offline"
	CategoryDataAtRisk   = "data_at_risk"
	CategoryDiskHealth   = "disk_unhealthy"
	CategoryPSUHealth    = "psu_unhealthy"
	CategoryProtection   = "protection_degraded"
	CategoryCapacity     = "capacity_projection"
)

// Alert is one actionable finding about one cluster. Immutable once produced.
type Alert struct {
	Severity Severity `json:"severity"`
	Cluster  string   `json:"cluster"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
}

// Aggregates holds environment-wide totals folded over every cluster result,
// including stale contributions. Latency bounds cover only clusters that were
// measured this run; both are nil when nothing was reachable.
type Aggregates struct {
	ClusterCount     int      `json:"cluster_count"`
	HealthyCount     int      `json:"healthy_count"`
	UnreachableCount int      `json:"unreachable_count"`
	TotalNodes       int      `json:"total_nodes"`
	OnlineNodes      int      `json:"online_nodes"`
	OfflineNodes     int      `json:"offline_nodes"`
	TotalBytes       int64    `json:"total_bytes"`
	UsedBytes        int64    `json:"used_bytes"`
	FreeBytes        int64    `json:"free_bytes"`
	SnapshotBytes    int64    `json:"snapshot_bytes"`
	TotalFiles       int64    `json:"total_files"`
	TotalDirectories int64    `json:"total_directories"`
	TotalSnapshots   int64    `json:"total_snapshots"`
	LatencyMinMs     *float64 `json:"latency_min_ms,omitempty"`
	LatencyMaxMs     *float64 `json:"latency_max_ms,omitempty"`
}

// ReportCluster is one cluster's entry in the report, carrying its
// reachability and staleness flags alongside the snapshot. Snapshot is nil
// when the cluster was unreachable with no cached data.
type ReportCluster struct {
	Profile     string           `json:"profile"`
	Reachable   bool             `json:"reachable"`
	Stale       bool             `json:"stale"`
	LastSuccess *time.Time       `json:"last_success,omitempty"`
	LatencyMs   *float64         `json:"latency_ms,omitempty"`
	Error       string           `json:"error,omitempty"`
	Snapshot    *ClusterSnapshot `json:"snapshot,omitempty"`
}

// Report is the single artifact a collection run hands to its consumers.
type Report struct {
	Timestamp  time.Time       `json:"timestamp"`
	Aggregates Aggregates      `json:"aggregates"`
	Alerts     []Alert         `json:"alerts"`
	Clusters   []ReportCluster `json:"clusters"`
}
