// Package alerts derives actionable findings from collected cluster state.
// Derivation is pure: the same results always produce the same alert list.
package alerts

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/qfleet/qfleet/internal/capacity"
	"github.com/qfleet/qfleet/internal/models"
)

// rule inspects one cluster result and emits zero or more alerts. Rules are
// independent: a cluster can trip several at once.
type rule func(name string, result models.ClusterResult) []models.Alert

var rules = []rule{
	checkReachability,
	checkOfflineNodes,
	checkDataAtRisk,
	checkDiskHealth,
	checkPSUHealth,
	checkProtection,
	checkCapacityProjection,
}

// Derive evaluates every rule against every cluster result and returns the
// alerts sorted critical-first, then by cluster name so output is stable
// across runs with identical input.
func Derive(results []models.ClusterResult) []models.Alert {
	var derived []models.Alert
	for _, result := range results {
		name := clusterLabel(result)
		for _, check := range rules {
			derived = append(derived, check(name, result)...)
		}
	}

	sort.SliceStable(derived, func(i, j int) bool {
		if derived[i].Severity != derived[j].Severity {
			return derived[i].Severity == models.SeverityCritical
		}
		return derived[i].Cluster < derived[j].Cluster
	})
	return derived
}

func clusterLabel(result models.ClusterResult) string {
	if result.Snapshot != nil && strings.TrimSpace(result.Snapshot.Name) != "" {
		return result.Snapshot.Name
	}
	return result.Profile
}

func checkReachability(name string, result models.ClusterResult) []models.Alert {
	if result.Reachable() {
		return nil
	}
	message := "cluster unreachable"
	if result.Err != nil {
		message = fmt.Sprintf("cluster unreachable: %v", result.Err)
	}
	if result.State == models.ResultStale {
		message += fmt.Sprintf(" (showing cached data from %s)", result.LastSuccess.UTC().Format("2006-01-02 15:04 MST"))
	}
	return []models.Alert{{
		Severity: models.SeverityCritical,
		Cluster:  name,
		Category: models.CategoryConnectivity,
		Message:  message,
	}}
}

func checkOfflineNodes(name string, result models.ClusterResult) []models.Alert {
	if result.Snapshot == nil {
		return nil
	}
	var offline []models.Alert
	for _, node := range result.Snapshot.Nodes {
		if node.Online() {
			continue
		}
		offline = append(offline, models.Alert{
			Severity: models.SeverityCritical,
			Cluster:  name,
			Category: models.CategoryNodeOffline,
			Message:  fmt.Sprintf("node %d: %s", node.ID, strings.ToUpper(node.Status)),
		})
	}
	return offline
}

func checkDataAtRisk(name string, result models.ClusterResult) []models.Alert {
	if result.Snapshot == nil {
		return nil
	}
	atRisk := result.Snapshot.Health.DataAtRisk
	if atRisk == nil || !*atRisk {
		return nil
	}
	return []models.Alert{{
		Severity: models.SeverityCritical,
		Cluster:  name,
		Category: models.CategoryDataAtRisk,
		Message:  "DATA AT RISK: restriper reports data below protection level",
	}}
}

func checkDiskHealth(name string, result models.ClusterResult) []models.Alert {
	if result.Snapshot == nil || len(result.Snapshot.Health.UnhealthyDisks) == 0 {
		return nil
	}
	disks := result.Snapshot.Health.UnhealthyDisks
	locations := make([]string, 0, len(disks))
	for _, disk := range disks {
		locations = append(locations, fmt.Sprintf("node %d bay %s", disk.NodeID, disk.Bay))
	}
	return []models.Alert{{
		Severity: models.SeverityWarning,
		Cluster:  name,
		Category: models.CategoryDiskHealth,
		Message:  fmt.Sprintf("%d unhealthy %s (%s)", len(disks), plural(len(disks), "disk"), strings.Join(locations, ", ")),
	}}
}

func checkPSUHealth(name string, result models.ClusterResult) []models.Alert {
	if result.Snapshot == nil || len(result.Snapshot.Health.UnhealthyPSUs) == 0 {
		return nil
	}
	psus := result.Snapshot.Health.UnhealthyPSUs
	locations := make([]string, 0, len(psus))
	for _, psu := range psus {
		locations = append(locations, fmt.Sprintf("node %d %s", psu.NodeID, psu.Name))
	}
	return []models.Alert{{
		Severity: models.SeverityWarning,
		Cluster:  name,
		Category: models.CategoryPSUHealth,
		Message:  fmt.Sprintf("%d unhealthy %s (%s)", len(psus), plural(len(psus), "PSU"), strings.Join(locations, ", ")),
	}}
}

func checkProtection(name string, result models.ClusterResult) []models.Alert {
	if result.Snapshot == nil {
		return nil
	}
	var degraded []models.Alert
	if remaining := result.Snapshot.Health.RemainingNodeFailures; remaining != nil && *remaining <= 0 {
		degraded = append(degraded, models.Alert{
			Severity: models.SeverityWarning,
			Cluster:  name,
			Category: models.CategoryProtection,
			Message:  fmt.Sprintf("fault tolerance degraded (%d node failures remaining)", *remaining),
		})
	}
	if remaining := result.Snapshot.Health.RemainingDriveFailures; remaining != nil && *remaining <= 0 {
		degraded = append(degraded, models.Alert{
			Severity: models.SeverityWarning,
			Cluster:  name,
			Category: models.CategoryProtection,
			Message:  fmt.Sprintf("fault tolerance degraded (%d drive failures remaining)", *remaining),
		})
	}
	return degraded
}

func checkCapacityProjection(name string, result models.ClusterResult) []models.Alert {
	if result.Snapshot == nil || result.Snapshot.Capacity == nil {
		return nil
	}
	projection := result.Snapshot.Capacity.Projection
	if !capacity.ShouldWarn(projection, result.Snapshot.Type) {
		return nil
	}

	days := int64(math.Ceil(*projection.DaysToFull))
	growthTB := projection.GrowthBytesPerDay / 1e12

	var message string
	if result.Snapshot.Type.IsCloud() {
		message = fmt.Sprintf("may run out of space within ~%d days; consider increasing the capacity clamp", days)
	} else {
		message = fmt.Sprintf("projected to fill in ~%d days (+%.1f TB/day)", days, growthTB)
	}
	if projection.LowConfidence {
		message += " [low confidence]"
	}
	return []models.Alert{{
		Severity: models.SeverityWarning,
		Cluster:  name,
		Category: models.CategoryCapacity,
		Message:  message,
	}}
}

func plural(count int, noun string) string {
	if count == 1 {
		return noun
	}
	return noun + "s"
}
