package models

import (
	"fmt"
	"sort"
	"strings"
)

// ClusterKind identifies the deployment flavor of a cluster.
type ClusterKind string

const (
	ClusterKindOnPrem   ClusterKind = "onprem"
	ClusterKindCNQAWS   ClusterKind = "cnq_aws"
	ClusterKindANQAzure ClusterKind = "anq_azure"
)

// ClusterType carries the deployment flavor plus, for on-prem clusters,
// the distinct hardware SKUs observed across the node list.
type ClusterType struct {
	Kind ClusterKind `json:"kind"`
	SKUs []string    `json:"skus,omitempty"`
}

// IsCloud reports whether the cluster runs on a cloud platform.
func (t ClusterType) IsCloud() bool {
	return t.Kind == ClusterKindCNQAWS || t.Kind == ClusterKindANQAzure
}

// Label returns the human-readable cluster type for display.
func (t ClusterType) Label() string {
	switch t.Kind {
	case ClusterKindCNQAWS:
		return "CNQ (AWS)"
	case ClusterKindANQAzure:
		return "ANQ (Azure)"
	default:
		if len(t.SKUs) == 0 {
			return "On-Prem"
		}
		return fmt.Sprintf("On-Prem (%s)", strings.Join(t.SKUs, ", "))
	}
}

// OnPremType builds an on-prem ClusterType with a sorted, deduplicated SKU set.
func OnPremType(skus []string) ClusterType {
	seen := make(map[string]struct{}, len(skus))
	distinct := make([]string, 0, len(skus))
	for _, sku := range skus {
		sku = strings.TrimSpace(sku)
		if sku == "" {
			continue
		}
		if _, ok := seen[sku]; ok {
			continue
		}
		seen[sku] = struct{}{}
		distinct = append(distinct, sku)
	}
	sort.Strings(distinct)
	return ClusterType{Kind: ClusterKindOnPrem, SKUs: distinct}
}

// NodeNetworkInfo holds per-node NIC throughput derived from cumulative byte
// counters on the primary frontend device. Link speed and utilization are
// zero/nil for cloud nodes, which do not report a physical link speed.
// BytesTotal carries the raw counter so watch mode can compute deltas across
// polls.
type NodeNetworkInfo struct {
	ThroughputBps  float64  `json:"throughput_bps"`
	LinkSpeedBps   uint64   `json:"link_speed_bps,omitempty"`
	UtilizationPct *float64 `json:"utilization_pct,omitempty"`
	BytesTotal     uint64   `json:"bytes_total,omitempty"`
}

// NodeStatus is one node's state within a cluster snapshot.
type NodeStatus struct {
	ID                 int              `json:"id"`
	Status             string           `json:"status"`
	Model              string           `json:"model"`
	Connections        *int             `json:"connections,omitempty"`
	ConnectionsByProto map[string]int   `json:"connections_by_proto,omitempty"`
	Network            *NodeNetworkInfo `json:"network,omitempty"`
}

// Online reports whether the node is serving.
func (n NodeStatus) Online() bool {
	return strings.EqualFold(strings.TrimSpace(n.Status), "online")
}

// CapacityProjection is the output of the least-squares capacity fit.
// DaysToFull is nil when growth is flat or negative, or when history is
// insufficient to fit.
type CapacityProjection struct {
	GrowthBytesPerDay float64  `json:"growth_bytes_per_day"`
	DaysToFull        *float64 `json:"days_to_full,omitempty"`
	RSquared          float64  `json:"r_squared"`
	LowConfidence     bool     `json:"low_confidence"`
}

// CapacityStatus holds cluster-wide capacity totals.
type CapacityStatus struct {
	TotalBytes    int64               `json:"total_bytes"`
	UsedBytes     int64               `json:"used_bytes"`
	FreeBytes     int64               `json:"free_bytes"`
	SnapshotBytes int64               `json:"snapshot_bytes"`
	UsedPct       float64             `json:"used_pct"`
	Projection    *CapacityProjection `json:"projection,omitempty"`
}

// FileStats is the recursive file and directory count for the cluster root.
type FileStats struct {
	TotalFiles       int64 `json:"total_files"`
	TotalDirectories int64 `json:"total_directories"`
}

// SnapshotStats summarizes filesystem snapshots on the cluster.
type SnapshotStats struct {
	Count      int64 `json:"count"`
	TotalBytes int64 `json:"total_bytes"`
}

// ActivityStatus holds current cluster-wide IOPS and throughput.
type ActivityStatus struct {
	ReadIOPS           float64 `json:"read_iops"`
	WriteIOPS          float64 `json:"write_iops"`
	ReadThroughputBps  float64 `json:"read_throughput_bps"`
	WriteThroughputBps float64 `json:"write_throughput_bps"`
}

// Idle reports whether the cluster shows no client activity at all.
func (a ActivityStatus) Idle() bool {
	return a.ReadIOPS == 0 && a.WriteIOPS == 0 &&
		a.ReadThroughputBps == 0 && a.WriteThroughputBps == 0
}

// UnhealthyDisk locates one disk in a non-healthy state.
type UnhealthyDisk struct {
	NodeID   int    `json:"node_id"`
	Bay      string `json:"bay"`
	DiskType string `json:"disk_type"`
	State    string `json:"state"`
}

// UnhealthyPSU locates one power supply in a non-good state.
type UnhealthyPSU struct {
	NodeID   int    `json:"node_id"`
	Location string `json:"location"`
	Name     string `json:"name"`
	State    string `json:"state"`
}

// HealthStatus carries the raw health facts alerting rules evaluate.
// Pointer fields are nil when the corresponding read failed.
type HealthStatus struct {
	UnhealthyDisks         []UnhealthyDisk `json:"unhealthy_disks,omitempty"`
	UnhealthyPSUs          []UnhealthyPSU  `json:"unhealthy_psus,omitempty"`
	DataAtRisk             *bool           `json:"data_at_risk,omitempty"`
	RemainingNodeFailures  *int            `json:"remaining_node_failures,omitempty"`
	RemainingDriveFailures *int            `json:"remaining_drive_failures,omitempty"`
	ProtectionType         string          `json:"protection_type,omitempty"`
}

// ClusterSnapshot is the full set of facts collected for one cluster at one
// point in time. Any pointer field may be nil when that read failed; the rest
// of the snapshot remains usable.
type ClusterSnapshot struct {
	Name      string          `json:"cluster_name"`
	UUID      string          `json:"uuid,omitempty"`
	Version   string          `json:"version"`
	Type      ClusterType     `json:"cluster_type"`
	Nodes     []NodeStatus    `json:"nodes"`
	Capacity  *CapacityStatus `json:"capacity,omitempty"`
	Files     *FileStats      `json:"files,omitempty"`
	Snapshots *SnapshotStats  `json:"snapshots,omitempty"`
	Activity  *ActivityStatus `json:"activity,omitempty"`
	Health    HealthStatus    `json:"health"`
}

// OnlineNodes counts nodes currently serving.
func (s *ClusterSnapshot) OnlineNodes() int {
	online := 0
	for _, node := range s.Nodes {
		if node.Online() {
			online++
		}
	}
	return online
}
