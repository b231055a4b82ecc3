package monitoring

import (
	"time"

	"github.com/qfleet/qfleet/internal/alerts"
	"github.com/qfleet/qfleet/internal/models"
)

// BuildReport folds per-cluster results into the fleet report: aggregate
// counters, derived alerts, and one entry per cluster. Stale results count
// toward the totals; a cluster with no data contributes only its
// unreachable count.
func BuildReport(results []models.ClusterResult, now time.Time) *models.Report {
	report := &models.Report{
		Timestamp: now,
		Clusters:  make([]models.ReportCluster, 0, len(results)),
	}

	for _, result := range results {
		entry := models.ReportCluster{
			Profile:   result.Profile,
			Reachable: result.State == models.ResultLive,
			Stale:     result.State == models.ResultStale,
			Snapshot:  result.Snapshot,
		}
		if result.State == models.ResultStale {
			lastSuccess := result.LastSuccess
			entry.LastSuccess = &lastSuccess
		}
		if result.Err != nil {
			entry.Error = result.Err.Error()
		}
		if result.State == models.ResultLive {
			ms := float64(result.Latency) / float64(time.Millisecond)
			entry.LatencyMs = &ms
		}
		report.Clusters = append(report.Clusters, entry)

		foldAggregates(&report.Aggregates, result, entry.LatencyMs)
	}

	report.Alerts = alerts.Derive(results)
	return report
}

func foldAggregates(agg *models.Aggregates, result models.ClusterResult, latencyMs *float64) {
	agg.ClusterCount++
	if result.State != models.ResultLive {
		agg.UnreachableCount++
	}

	if latencyMs != nil {
		if agg.LatencyMinMs == nil || *latencyMs < *agg.LatencyMinMs {
			v := *latencyMs
			agg.LatencyMinMs = &v
		}
		if agg.LatencyMaxMs == nil || *latencyMs > *agg.LatencyMaxMs {
			v := *latencyMs
			agg.LatencyMaxMs = &v
		}
	}

	snapshot := result.Snapshot
	if snapshot == nil {
		return
	}

	online := snapshot.OnlineNodes()
	agg.TotalNodes += len(snapshot.Nodes)
	agg.OnlineNodes += online
	agg.OfflineNodes += len(snapshot.Nodes) - online
	if result.State == models.ResultLive &&
		online == len(snapshot.Nodes) &&
		len(snapshot.Health.UnhealthyDisks) == 0 &&
		len(snapshot.Health.UnhealthyPSUs) == 0 &&
		(snapshot.Health.DataAtRisk == nil || !*snapshot.Health.DataAtRisk) {
		agg.HealthyCount++
	}

	if snapshot.Capacity != nil {
		agg.TotalBytes += snapshot.Capacity.TotalBytes
		agg.UsedBytes += snapshot.Capacity.UsedBytes
		agg.FreeBytes += snapshot.Capacity.FreeBytes
		agg.SnapshotBytes += snapshot.Capacity.SnapshotBytes
	}
	if snapshot.Files != nil {
		agg.TotalFiles += snapshot.Files.TotalFiles
		agg.TotalDirectories += snapshot.Files.TotalDirectories
	}
	if snapshot.Snapshots != nil {
		agg.TotalSnapshots += snapshot.Snapshots.Count
	}
}
