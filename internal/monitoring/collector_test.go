package monitoring

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qfleet/qfleet/internal/cache"
	errs "github.com/qfleet/qfleet/internal/errors"
	"github.com/qfleet/qfleet/internal/models"
	"github.com/qfleet/qfleet/internal/qumulo"
)

// fakeClient serves canned responses per call name; entries in failures
// override with an error.
type fakeClient struct {
	settings    *qumulo.ClusterSettings
	version     *qumulo.VersionInfo
	nodes       []qumulo.Node
	fs          *qumulo.FileSystemStats
	history     []qumulo.CapacityHistoryEntry
	activity    map[string]float64
	slots       []qumulo.DriveSlot
	psus        []qumulo.ChassisPSU
	protection  *qumulo.ProtectionStatus
	restriper   *qumulo.RestriperStatus
	connections []qumulo.NodeConnections
	network     [][]qumulo.NodeNetworkStatus
	networkCall int
	aggregates  *qumulo.AggregateTotals
	snapshots   *qumulo.SnapshotTotals
	failures    map[string]error
	closed      bool
}

func (f *fakeClient) fail(name string) error {
	if f.failures == nil {
		return nil
	}
	return f.failures[name]
}

func (f *fakeClient) GetClusterSettings(context.Context) (*qumulo.ClusterSettings, error) {
	if err := f.fail("settings"); err != nil {
		return nil, err
	}
	return f.settings, nil
}

func (f *fakeClient) GetVersion(context.Context) (*qumulo.VersionInfo, error) {
	if err := f.fail("version"); err != nil {
		return nil, err
	}
	return f.version, nil
}

func (f *fakeClient) GetNodes(context.Context) ([]qumulo.Node, error) {
	if err := f.fail("nodes"); err != nil {
		return nil, err
	}
	return f.nodes, nil
}

func (f *fakeClient) GetFileSystem(context.Context) (*qumulo.FileSystemStats, error) {
	if err := f.fail("filesystem"); err != nil {
		return nil, err
	}
	return f.fs, nil
}

func (f *fakeClient) GetCapacityHistory(context.Context, time.Time) ([]qumulo.CapacityHistoryEntry, error) {
	if err := f.fail("history"); err != nil {
		return nil, err
	}
	return f.history, nil
}

func (f *fakeClient) GetActivitySum(_ context.Context, activityType string) (float64, error) {
	if err := f.fail("activity"); err != nil {
		return 0, err
	}
	return f.activity[activityType], nil
}

func (f *fakeClient) GetDriveSlots(context.Context) ([]qumulo.DriveSlot, error) {
	if err := f.fail("slots"); err != nil {
		return nil, err
	}
	return f.slots, nil
}

func (f *fakeClient) GetChassisPSUs(context.Context) ([]qumulo.ChassisPSU, error) {
	if err := f.fail("psus"); err != nil {
		return nil, err
	}
	return f.psus, nil
}

func (f *fakeClient) GetProtectionStatus(context.Context) (*qumulo.ProtectionStatus, error) {
	if err := f.fail("protection"); err != nil {
		return nil, err
	}
	return f.protection, nil
}

func (f *fakeClient) GetRestriperStatus(context.Context) (*qumulo.RestriperStatus, error) {
	if err := f.fail("restriper"); err != nil {
		return nil, err
	}
	return f.restriper, nil
}

func (f *fakeClient) GetNetworkConnections(context.Context) ([]qumulo.NodeConnections, error) {
	if err := f.fail("connections"); err != nil {
		return nil, err
	}
	return f.connections, nil
}

func (f *fakeClient) GetNetworkStatus(context.Context) ([]qumulo.NodeNetworkStatus, error) {
	if err := f.fail("network"); err != nil {
		return nil, err
	}
	if len(f.network) == 0 {
		return nil, nil
	}
	idx := f.networkCall
	if idx >= len(f.network) {
		idx = len(f.network) - 1
	}
	f.networkCall++
	return f.network[idx], nil
}

func (f *fakeClient) GetRecursiveAggregates(context.Context) (*qumulo.AggregateTotals, error) {
	if err := f.fail("aggregates"); err != nil {
		return nil, err
	}
	return f.aggregates, nil
}

func (f *fakeClient) GetSnapshotTotals(context.Context) (*qumulo.SnapshotTotals, error) {
	if err := f.fail("snapshots"); err != nil {
		return nil, err
	}
	return f.snapshots, nil
}

func (f *fakeClient) Close() { f.closed = true }

func healthyFake() *fakeClient {
	remaining := 1
	drives := 2
	return &fakeClient{
		settings: &qumulo.ClusterSettings{Name: "prod-east", UUID: "8f14e45f-ceea-4e17-a0f9-0a5b3c1d2e4f"},
		version:  &qumulo.VersionInfo{Revision: "Qumulo Core 7.2.1"},
		nodes: []qumulo.Node{
			{ID: 1, Status: "online", Model: "C-432T"},
			{ID: 2, Status: "online", Model: "C-432T"},
		},
		fs: &qumulo.FileSystemStats{
			TotalBytes:    605_000_000_000_000,
			FreeBytes:     11_000_000_000_000,
			SnapshotBytes: 3_000_000_000_000,
		},
		activity: map[string]float64{
			qumulo.ActivityIOPSRead:        120,
			qumulo.ActivityIOPSWrite:       45,
			qumulo.ActivityThroughputRead:  2.5e9,
			qumulo.ActivityThroughputWrite: 1.1e9,
		},
		slots: []qumulo.DriveSlot{
			{ID: "1.1", NodeID: 1, Bay: "1", DiskType: "SSD", State: "healthy"},
		},
		psus: []qumulo.ChassisPSU{
			{NodeID: 1, Name: "PSU1", Location: "left", State: "GOOD"},
		},
		protection: &qumulo.ProtectionStatus{
			RemainingNodeFailures:  &remaining,
			RemainingDriveFailures: &drives,
			SystemType:             "EC",
		},
		restriper: &qumulo.RestriperStatus{DataAtRisk: false},
		connections: []qumulo.NodeConnections{
			{NodeID: 1, Total: 3, ByProtocol: map[string]int{"SMB": 2, "NFS": 1}},
		},
		network: [][]qumulo.NodeNetworkStatus{
			{
				{NodeID: 1, Devices: []qumulo.NetworkDevice{
					{Name: "bond0", BytesSent: 1_000_000, BytesReceived: 2_000_000, SpeedMbps: 100_000},
				}},
			},
			{
				{NodeID: 1, Devices: []qumulo.NetworkDevice{
					{Name: "bond0", BytesSent: 1_500_000, BytesReceived: 2_750_000, SpeedMbps: 100_000},
				}},
			},
		},
		aggregates: &qumulo.AggregateTotals{Files: 3500, Directories: 125},
		snapshots:  &qumulo.SnapshotTotals{Count: 3, TotalBytes: 9_000_000_000},
	}
}

func testStore(t *testing.T) *cache.Store {
	t.Helper()
	return cache.New(filepath.Join(t.TempDir(), "status.json"), false)
}

func TestCollectHappyPath(t *testing.T) {
	client := healthyFake()
	collector := NewCollector(testStore(t), time.Second, true, nil)

	result := collector.Collect(context.Background(), client, "east", "")

	require.Equal(t, models.ResultLive, result.State)
	require.NotNil(t, result.Snapshot)
	snap := result.Snapshot

	assert.Equal(t, "prod-east", snap.Name)
	assert.Equal(t, "Qumulo Core 7.2.1", snap.Version)
	assert.Equal(t, models.ClusterKindOnPrem, snap.Type.Kind)
	assert.Equal(t, []string{"C-432T"}, snap.Type.SKUs)
	assert.Len(t, snap.Nodes, 2)
	assert.Equal(t, 2, snap.OnlineNodes())

	require.NotNil(t, snap.Capacity)
	assert.Equal(t, int64(594_000_000_000_000), snap.Capacity.UsedBytes)
	assert.InDelta(t, 98.18, snap.Capacity.UsedPct, 0.01)

	require.NotNil(t, snap.Activity)
	assert.Equal(t, 120.0, snap.Activity.ReadIOPS)
	assert.False(t, snap.Activity.Idle())

	assert.Empty(t, snap.Health.UnhealthyDisks)
	assert.Empty(t, snap.Health.UnhealthyPSUs)
	require.NotNil(t, snap.Health.DataAtRisk)
	assert.False(t, *snap.Health.DataAtRisk)
	require.NotNil(t, snap.Health.RemainingNodeFailures)
	assert.Equal(t, 1, *snap.Health.RemainingNodeFailures)

	require.NotNil(t, snap.Nodes[0].Connections)
	assert.Equal(t, 3, *snap.Nodes[0].Connections)
	assert.Nil(t, snap.Nodes[1].Connections)

	require.NotNil(t, snap.Files)
	assert.Equal(t, int64(3500), snap.Files.TotalFiles)
	require.NotNil(t, snap.Snapshots)
	assert.Equal(t, int64(3), snap.Snapshots.Count)
}

func TestCollectOptionalFieldIsolation(t *testing.T) {
	client := healthyFake()
	client.failures = map[string]error{
		"history":     errors.New("boom"),
		"activity":    errors.New("boom"),
		"slots":       errors.New("boom"),
		"psus":        errors.New("boom"),
		"protection":  errors.New("boom"),
		"restriper":   errors.New("boom"),
		"connections": errors.New("boom"),
		"network":     errors.New("boom"),
		"aggregates":  errors.New("boom"),
		"snapshots":   errors.New("boom"),
	}
	collector := NewCollector(testStore(t), time.Second, true, nil)

	result := collector.Collect(context.Background(), client, "east", "")

	require.Equal(t, models.ResultLive, result.State)
	snap := result.Snapshot
	require.NotNil(t, snap.Capacity)
	assert.Nil(t, snap.Capacity.Projection)
	assert.Nil(t, snap.Activity)
	assert.Nil(t, snap.Health.DataAtRisk)
	assert.Nil(t, snap.Health.RemainingNodeFailures)
	assert.Nil(t, snap.Files)
	assert.Nil(t, snap.Snapshots)
	assert.Nil(t, snap.Nodes[0].Connections)
	assert.Nil(t, snap.Nodes[0].Network)
}

func TestCollectEssentialFailureNoCache(t *testing.T) {
	client := healthyFake()
	client.failures = map[string]error{"nodes": errors.New("connection refused")}
	collector := NewCollector(testStore(t), time.Second, true, nil)

	result := collector.Collect(context.Background(), client, "east", "")

	assert.Equal(t, models.ResultNoData, result.State)
	assert.Nil(t, result.Snapshot)
	assert.True(t, errs.IsUnreachableError(result.Err))
}

func TestCollectEssentialFailureServesCache(t *testing.T) {
	store := testStore(t)
	collector := NewCollector(store, time.Second, true, nil)

	live := collector.Collect(context.Background(), healthyFake(), "east", "")
	require.Equal(t, models.ResultLive, live.State)

	failing := healthyFake()
	failing.failures = map[string]error{"settings": errors.New("connection refused")}
	result := collector.Collect(context.Background(), failing, "east", "")

	require.Equal(t, models.ResultStale, result.State)
	require.NotNil(t, result.Snapshot)
	assert.Equal(t, "prod-east", result.Snapshot.Name)
	assert.False(t, result.LastSuccess.IsZero())
	assert.True(t, errs.IsUnreachableError(result.Err))
}

func TestCollectLatencyCoversAllReads(t *testing.T) {
	clock := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	collector := NewCollector(testStore(t), time.Second, true, nil)
	collector.now = func() time.Time {
		clock = clock.Add(10 * time.Millisecond)
		return clock
	}

	result := collector.Collect(context.Background(), healthyFake(), "east", "")

	require.Equal(t, models.ResultLive, result.State)
	// Every read advances the fake clock, so the span must cover far more
	// than a single call.
	assert.Greater(t, result.Latency, 100*time.Millisecond)
}

func TestCollectSingleShotNICDelta(t *testing.T) {
	client := healthyFake()
	collector := NewCollector(testStore(t), time.Second, false, nil)

	result := collector.Collect(context.Background(), client, "east", "")

	require.Equal(t, models.ResultLive, result.State)
	info := result.Snapshot.Nodes[0].Network
	require.NotNil(t, info)
	// 1.25 MB delta over one second is 10 Mbit/s.
	assert.InDelta(t, 10_000_000, info.ThroughputBps, 1)
	assert.Equal(t, uint64(100_000_000_000), info.LinkSpeedBps)
	require.NotNil(t, info.UtilizationPct)
	assert.InDelta(t, 0.01, *info.UtilizationPct, 0.0001)
	assert.Equal(t, uint64(4_250_000), info.BytesTotal)
}

func TestCollectWatchModeRawCounters(t *testing.T) {
	client := healthyFake()
	collector := NewCollector(testStore(t), time.Second, true, nil)

	result := collector.Collect(context.Background(), client, "east", "")

	require.Equal(t, models.ResultLive, result.State)
	info := result.Snapshot.Nodes[0].Network
	require.NotNil(t, info)
	assert.Zero(t, info.ThroughputBps)
	assert.Nil(t, info.UtilizationPct)
	assert.Equal(t, uint64(3_000_000), info.BytesTotal)
	assert.Equal(t, 1, client.networkCall)
}

func TestCollectCloudClusterSkipsLinkSpeed(t *testing.T) {
	client := healthyFake()
	client.nodes = []qumulo.Node{{ID: 1, Status: "online", Model: "Qumulo-AWS-m5"}}
	collector := NewCollector(testStore(t), time.Second, false, nil)

	result := collector.Collect(context.Background(), client, "aws", "")

	require.Equal(t, models.ResultLive, result.State)
	assert.Equal(t, models.ClusterKindCNQAWS, result.Snapshot.Type.Kind)
	info := result.Snapshot.Nodes[0].Network
	require.NotNil(t, info)
	assert.Zero(t, info.LinkSpeedBps)
	assert.Nil(t, info.UtilizationPct)
	assert.Greater(t, info.ThroughputBps, 0.0)
}

func TestCollectUnhealthyHardwareSurfaces(t *testing.T) {
	client := healthyFake()
	client.slots = append(client.slots, qumulo.DriveSlot{
		ID: "2.5", NodeID: 2, Bay: "5", DiskType: "HDD", State: "dead",
	})
	client.psus = append(client.psus, qumulo.ChassisPSU{
		NodeID: 2, Name: "PSU2", Location: "right", State: "FAILED",
	})
	collector := NewCollector(testStore(t), time.Second, true, nil)

	result := collector.Collect(context.Background(), client, "east", "")

	require.Equal(t, models.ResultLive, result.State)
	require.Len(t, result.Snapshot.Health.UnhealthyDisks, 1)
	assert.Equal(t, "5", result.Snapshot.Health.UnhealthyDisks[0].Bay)
	require.Len(t, result.Snapshot.Health.UnhealthyPSUs, 1)
	assert.Equal(t, "PSU2", result.Snapshot.Health.UnhealthyPSUs[0].Name)
}

func TestCollectTimingRecordsCalls(t *testing.T) {
	timing := NewTimingReport()
	collector := NewCollector(testStore(t), time.Second, true, timing)

	collector.Collect(context.Background(), healthyFake(), "east", "")

	entries := timing.Entries()
	require.NotEmpty(t, entries)
	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		assert.Equal(t, "east", entry.Profile)
		names[entry.Call] = true
	}
	assert.True(t, names["cluster/settings"])
	assert.True(t, names["file-system"])
	assert.True(t, names["network/status"])
}

func TestDetectClusterType(t *testing.T) {
	tests := []struct {
		name   string
		models []string
		want   models.ClusterKind
	}{
		{"on-prem", []string{"C-432T", "C-432T"}, models.ClusterKindOnPrem},
		{"aws", []string{"Qumulo-AWS-m5"}, models.ClusterKindCNQAWS},
		{"azure", []string{"Qumulo-Azure-v2"}, models.ClusterKindANQAzure},
		{"empty models", []string{"", " "}, models.ClusterKindOnPrem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := make([]qumulo.Node, 0, len(tt.models))
			for i, model := range tt.models {
				nodes = append(nodes, qumulo.Node{ID: i + 1, Status: "online", Model: model})
			}
			assert.Equal(t, tt.want, DetectClusterType(nodes).Kind)
		})
	}
}

func TestDetectClusterTypeDistinctSKUs(t *testing.T) {
	nodes := []qumulo.Node{
		{ID: 1, Model: "K-144T"},
		{ID: 2, Model: "C-432T"},
		{ID: 3, Model: "C-432T"},
	}
	clusterType := DetectClusterType(nodes)
	assert.Equal(t, models.ClusterKindOnPrem, clusterType.Kind)
	assert.Equal(t, []string{"C-432T", "K-144T"}, clusterType.SKUs)
}
