package qumulo

import (
	"strings"
	"time"
)

// ClusterSettings identifies a cluster.
type ClusterSettings struct {
	Name string
	UUID string
}

// VersionInfo is the cluster software version.
type VersionInfo struct {
	Revision string
	BuildID  string
}

// Node is one entry from the cluster node inventory.
type Node struct {
	ID     int
	Status string
	Model  string
}

// FileSystemStats holds cluster-wide capacity totals in bytes.
type FileSystemStats struct {
	TotalBytes    int64
	FreeBytes     int64
	SnapshotBytes int64
}

// UsedBytes derives used space; the API only reports total and free.
func (s FileSystemStats) UsedBytes() int64 {
	used := s.TotalBytes - s.FreeBytes
	if used < 0 {
		return 0
	}
	return used
}

// CapacityHistoryEntry is one daily sample from the capacity history series.
type CapacityHistoryEntry struct {
	PeriodStart time.Time
	UsedBytes   int64
}

// DriveSlot is one disk slot's state.
type DriveSlot struct {
	ID       string
	NodeID   int
	Bay      string
	DiskType string
	State    string
}

// Healthy reports whether the slot holds a serving disk.
func (s DriveSlot) Healthy() bool {
	return strings.EqualFold(s.State, "healthy")
}

// ChassisPSU is one power supply's state from the chassis inventory.
type ChassisPSU struct {
	NodeID   int
	Name     string
	Location string
	State    string
}

// Good reports whether the power supply is operating normally.
func (p ChassisPSU) Good() bool {
	return strings.EqualFold(p.State, "GOOD")
}

// ProtectionStatus describes the cluster's remaining failure tolerance.
type ProtectionStatus struct {
	RemainingNodeFailures  *int
	RemainingDriveFailures *int
	SystemType             string
}

// RestriperStatus reports data-protection rebuild state.
type RestriperStatus struct {
	Status     string
	DataAtRisk bool
}

// NodeConnections is the active client connection census for one node.
type NodeConnections struct {
	NodeID     int
	Total      int
	ByProtocol map[string]int
}

// NetworkDevice is one NIC's counters from the network status endpoint.
// Byte counters are cumulative since boot; speed is the negotiated link
// speed, zero when the platform does not report one.
type NetworkDevice struct {
	Name          string
	UseFor        string
	BytesSent     uint64
	BytesReceived uint64
	SpeedMbps     uint64
}

// TotalBytes is the combined send and receive counter.
func (d NetworkDevice) TotalBytes() uint64 {
	return d.BytesSent + d.BytesReceived
}

// NodeNetworkStatus is the per-node NIC inventory.
type NodeNetworkStatus struct {
	NodeID  int
	Devices []NetworkDevice
}

// FrontendDevice picks the primary client-facing NIC: bond0 when present,
// otherwise the first device marked for frontend use.
func (n NodeNetworkStatus) FrontendDevice() *NetworkDevice {
	for i := range n.Devices {
		device := &n.Devices[i]
		if device.Name == "bond0" || device.UseFor == "FRONTEND" || device.UseFor == "FRONTEND_AND_BACKEND" {
			return device
		}
	}
	return nil
}

// AggregateTotals is the recursive file and directory count for a path.
type AggregateTotals struct {
	Files       int64
	Directories int64
}

// SnapshotTotals summarizes filesystem snapshots.
type SnapshotTotals struct {
	Count      int64
	TotalBytes int64
}

// Activity types accepted by GetActivitySum.
const (
	ActivityIOPSRead        = "file-iops-read"
	ActivityIOPSWrite       = "file-iops-write"
	ActivityThroughputRead  = "file-throughput-read"
	ActivityThroughputWrite = "file-throughput-write"
)
