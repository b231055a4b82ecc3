package alerts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qfleet/qfleet/internal/models"
)

func boolPtr(v bool) *bool        { return &v }
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func healthySnapshot(name string) *models.ClusterSnapshot {
	return &models.ClusterSnapshot{
		Name:    name,
		Version: "7.2.1",
		Type:    models.OnPremType([]string{"Q0626"}),
		Nodes: []models.NodeStatus{
			{ID: 1, Status: "online", Model: "Q0626"},
			{ID: 2, Status: "online", Model: "Q0626"},
		},
		Health: models.HealthStatus{
			DataAtRisk:            boolPtr(false),
			RemainingNodeFailures: intPtr(1),
		},
	}
}

func TestDeriveHealthyFleetIsQuiet(t *testing.T) {
	results := []models.ClusterResult{
		models.LiveResult("prod", healthySnapshot("prod-cluster"), 40*time.Millisecond),
		models.LiveResult("dr", healthySnapshot("dr-cluster"), 55*time.Millisecond),
	}
	assert.Empty(t, Derive(results))
}

func TestDeriveUnreachableCluster(t *testing.T) {
	cachedAt := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	results := []models.ClusterResult{
		models.StaleResult("edge", errors.New("connect: connection refused"), healthySnapshot("edge-cluster"), cachedAt),
	}

	alerts := Derive(results)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, models.CategoryConnectivity, alerts[0].Category)
	assert.Contains(t, alerts[0].Message, "connection refused")
	assert.Contains(t, alerts[0].Message, "cached data from 2026-08-30")
}

func TestDeriveNoDataClusterUsesProfileName(t *testing.T) {
	results := []models.ClusterResult{
		models.NoDataResult("new-site", errors.New("dial tcp: i/o timeout")),
	}

	alerts := Derive(results)
	require.Len(t, alerts, 1)
	assert.Equal(t, "new-site", alerts[0].Cluster)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
}

func TestDeriveOfflineNodes(t *testing.T) {
	snapshot := healthySnapshot("prod-cluster")
	snapshot.Nodes = append(snapshot.Nodes, models.NodeStatus{ID: 3, Status: "offline", Model: "Q0626"})
	snapshot.Nodes = append(snapshot.Nodes, models.NodeStatus{ID: 4, Status: "offline", Model: "Q0626"})

	alerts := Derive([]models.ClusterResult{models.LiveResult("prod", snapshot, time.Millisecond)})
	require.Len(t, alerts, 2)
	assert.Equal(t, "node 3: OFFLINE", alerts[0].Message)
	assert.Equal(t, "node 4: OFFLINE", alerts[1].Message)
	for _, alert := range alerts {
		assert.Equal(t, models.SeverityCritical, alert.Severity)
		assert.Equal(t, models.CategoryNodeOffline, alert.Category)
	}
}

func TestDeriveHardwareHealth(t *testing.T) {
	snapshot := healthySnapshot("prod-cluster")
	snapshot.Health.UnhealthyDisks = []models.UnhealthyDisk{
		{NodeID: 1, Bay: "5", DiskType: "HDD", State: "missing"},
		{NodeID: 2, Bay: "3", DiskType: "SSD", State: "dead"},
	}
	snapshot.Health.UnhealthyPSUs = []models.UnhealthyPSU{
		{NodeID: 1, Location: "left", Name: "PSU1", State: "FAULT"},
	}

	alerts := Derive([]models.ClusterResult{models.LiveResult("prod", snapshot, time.Millisecond)})
	require.Len(t, alerts, 2)

	assert.Equal(t, models.CategoryDiskHealth, alerts[0].Category)
	assert.Equal(t, "2 unhealthy disks (node 1 bay 5, node 2 bay 3)", alerts[0].Message)
	assert.Equal(t, models.CategoryPSUHealth, alerts[1].Category)
	assert.Equal(t, "1 unhealthy PSU (node 1 PSU1)", alerts[1].Message)
}

func TestDeriveDataAtRisk(t *testing.T) {
	snapshot := healthySnapshot("prod-cluster")
	snapshot.Health.DataAtRisk = boolPtr(true)

	alerts := Derive([]models.ClusterResult{models.LiveResult("prod", snapshot, time.Millisecond)})
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, models.CategoryDataAtRisk, alerts[0].Category)
}

func TestDeriveAbsentHealthFieldsStayQuiet(t *testing.T) {
	snapshot := healthySnapshot("prod-cluster")
	snapshot.Health = models.HealthStatus{}

	assert.Empty(t, Derive([]models.ClusterResult{models.LiveResult("prod", snapshot, time.Millisecond)}))
}

func TestDeriveProtectionDegraded(t *testing.T) {
	snapshot := healthySnapshot("prod-cluster")
	snapshot.Health.RemainingNodeFailures = intPtr(0)

	alerts := Derive([]models.ClusterResult{models.LiveResult("prod", snapshot, time.Millisecond)})
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityWarning, alerts[0].Severity)
	assert.Equal(t, "fault tolerance degraded (0 node failures remaining)", alerts[0].Message)
}

func TestDeriveDriveFailureToleranceExhausted(t *testing.T) {
	snapshot := healthySnapshot("prod-cluster")
	snapshot.Health.RemainingDriveFailures = intPtr(0)

	alerts := Derive([]models.ClusterResult{models.LiveResult("prod", snapshot, time.Millisecond)})
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityWarning, alerts[0].Severity)
	assert.Equal(t, models.CategoryProtection, alerts[0].Category)
	assert.Equal(t, "fault tolerance degraded (0 drive failures remaining)", alerts[0].Message)

	// Both tolerances exhausted warn independently.
	snapshot.Health.RemainingNodeFailures = intPtr(0)
	alerts = Derive([]models.ClusterResult{models.LiveResult("prod", snapshot, time.Millisecond)})
	require.Len(t, alerts, 2)
	assert.Equal(t, "fault tolerance degraded (0 node failures remaining)", alerts[0].Message)
	assert.Equal(t, "fault tolerance degraded (0 drive failures remaining)", alerts[1].Message)

	// Remaining drive tolerance stays quiet.
	snapshot.Health.RemainingNodeFailures = intPtr(1)
	snapshot.Health.RemainingDriveFailures = intPtr(2)
	assert.Empty(t, Derive([]models.ClusterResult{models.LiveResult("prod", snapshot, time.Millisecond)}))
}

func TestDeriveCapacityProjection(t *testing.T) {
	onPrem := healthySnapshot("prod-cluster")
	onPrem.Capacity = &models.CapacityStatus{
		TotalBytes: 605_000_000_000_000,
		UsedBytes:  594_000_000_000_000,
		Projection: &models.CapacityProjection{
			GrowthBytesPerDay: 1_200_000_000_000,
			DaysToFull:        floatPtr(9.17),
			RSquared:          0.98,
		},
	}

	cloud := healthySnapshot("cnq-cluster")
	cloud.Type = models.ClusterType{Kind: models.ClusterKindCNQAWS}
	cloud.Capacity = &models.CapacityStatus{
		Projection: &models.CapacityProjection{
			GrowthBytesPerDay: 2_000_000_000_000,
			DaysToFull:        floatPtr(3.4),
			RSquared:          0.91,
		},
	}

	// Flat cloud cluster at 95% used: no projection warning.
	flat := healthySnapshot("anq-cluster")
	flat.Type = models.ClusterType{Kind: models.ClusterKindANQAzure}
	flat.Capacity = &models.CapacityStatus{
		UsedPct: 95,
		Projection: &models.CapacityProjection{
			GrowthBytesPerDay: 0,
			RSquared:          1,
		},
	}

	alerts := Derive([]models.ClusterResult{
		models.LiveResult("prod", onPrem, time.Millisecond),
		models.LiveResult("cnq", cloud, time.Millisecond),
		models.LiveResult("anq", flat, time.Millisecond),
	})
	require.Len(t, alerts, 2)

	assert.Equal(t, "cnq-cluster", alerts[0].Cluster)
	assert.Contains(t, alerts[0].Message, "within ~4 days")
	assert.Equal(t, "prod-cluster", alerts[1].Cluster)
	assert.Equal(t, "projected to fill in ~10 days (+1.2 TB/day)", alerts[1].Message)
}

func TestDeriveSeverityOrdering(t *testing.T) {
	degraded := healthySnapshot("bravo")
	degraded.Health.RemainingNodeFailures = intPtr(0)

	offline := healthySnapshot("alpha")
	offline.Nodes[1].Status = "offline"

	disks := healthySnapshot("charlie")
	disks.Health.UnhealthyDisks = []models.UnhealthyDisk{{NodeID: 1, Bay: "2", State: "dead"}}

	alerts := Derive([]models.ClusterResult{
		models.LiveResult("bravo", degraded, time.Millisecond),
		models.NoDataResult("zulu", errors.New("timeout")),
		models.LiveResult("alpha", offline, time.Millisecond),
		models.LiveResult("charlie", disks, time.Millisecond),
	})
	require.Len(t, alerts, 4)

	// Criticals first, each severity band ordered by cluster name.
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "alpha", alerts[0].Cluster)
	assert.Equal(t, models.SeverityCritical, alerts[1].Severity)
	assert.Equal(t, "zulu", alerts[1].Cluster)
	assert.Equal(t, models.SeverityWarning, alerts[2].Severity)
	assert.Equal(t, "bravo", alerts[2].Cluster)
	assert.Equal(t, models.SeverityWarning, alerts[3].Severity)
	assert.Equal(t, "charlie", alerts[3].Cluster)
}
