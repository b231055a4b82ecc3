// Package render draws the fleet report as styled terminal output.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/qfleet/qfleet/internal/models"
)

var (
	colorOK       = lipgloss.Color("#10B981")
	colorWarning  = lipgloss.Color("#F59E0B")
	colorCritical = lipgloss.Color("#EF4444")
	colorMuted    = lipgloss.Color("#6B7280")
	colorAccent   = lipgloss.Color("#3B82F6")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	statusOK = lipgloss.NewStyle().
			Foreground(colorOK).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusCritical = lipgloss.NewStyle().
			Foreground(colorCritical).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(14)
)

// Options adjusts rendering. Plain disables ANSI styling for pipes and dumb
// terminals.
type Options struct {
	Plain bool
}

// Render draws the whole report: fleet summary, alerts, then one section per
// cluster.
func Render(report *models.Report, opts Options) string {
	r := renderer{plain: opts.Plain}

	var b strings.Builder
	r.writeSummary(&b, report)
	r.writeAlerts(&b, report.Alerts)
	for i := range report.Clusters {
		r.writeCluster(&b, &report.Clusters[i])
	}
	return b.String()
}

type renderer struct {
	plain bool
}

func (r renderer) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

func (r renderer) writeSummary(b *strings.Builder, report *models.Report) {
	agg := report.Aggregates

	b.WriteString(r.style(titleStyle, "Fleet status"))
	b.WriteString(mutedSuffix(r, fmt.Sprintf("  (%s)", report.Timestamp.Format("2006-01-02 15:04:05 MST"))))
	b.WriteString("\n\n")

	healthy := fmt.Sprintf("%d/%d healthy", agg.HealthyCount, agg.ClusterCount)
	switch {
	case agg.UnreachableCount > 0:
		healthy = r.style(statusCritical, healthy)
	case agg.HealthyCount < agg.ClusterCount:
		healthy = r.style(statusWarning, healthy)
	default:
		healthy = r.style(statusOK, healthy)
	}

	fmt.Fprintf(b, "  %s %s", r.label("Clusters"), healthy)
	if agg.UnreachableCount > 0 {
		fmt.Fprintf(b, ", %d unreachable", agg.UnreachableCount)
	}
	b.WriteString("\n")

	fmt.Fprintf(b, "  %s %d online", r.label("Nodes"), agg.OnlineNodes)
	if agg.OfflineNodes > 0 {
		fmt.Fprintf(b, ", %s", r.style(statusCritical, fmt.Sprintf("%d offline", agg.OfflineNodes)))
	}
	b.WriteString("\n")

	if agg.TotalBytes > 0 {
		pct := float64(agg.UsedBytes) / float64(agg.TotalBytes) * 100
		fmt.Fprintf(b, "  %s %s of %s used (%.1f%%)\n",
			r.label("Capacity"), FormatBytes(agg.UsedBytes), FormatBytes(agg.TotalBytes), pct)
	}
	if agg.TotalFiles > 0 {
		fmt.Fprintf(b, "  %s %s files, %s directories, %d snapshots\n",
			r.label("Contents"), FormatCount(agg.TotalFiles), FormatCount(agg.TotalDirectories), agg.TotalSnapshots)
	}
	if agg.LatencyMinMs != nil && agg.LatencyMaxMs != nil {
		fmt.Fprintf(b, "  %s %.0f-%.0f ms\n", r.label("API latency"), *agg.LatencyMinMs, *agg.LatencyMaxMs)
	}
	b.WriteString("\n")
}

func (r renderer) writeAlerts(b *strings.Builder, alerts []models.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintf(b, "%s\n\n", r.style(statusOK, "No alerts."))
		return
	}

	fmt.Fprintf(b, "%s\n", r.style(titleStyle, fmt.Sprintf("Alerts (%d)", len(alerts))))
	for _, alert := range alerts {
		marker := r.style(statusWarning, "WARN")
		if alert.Severity == models.SeverityCritical {
			marker = r.style(statusCritical, "CRIT")
		}
		fmt.Fprintf(b, "  %s  %s: %s\n", marker, alert.Cluster, alert.Message)
	}
	b.WriteString("\n")
}

func (r renderer) writeCluster(b *strings.Builder, cluster *models.ReportCluster) {
	name := cluster.Profile
	if cluster.Snapshot != nil && cluster.Snapshot.Name != "" {
		name = cluster.Snapshot.Name
	}
	b.WriteString(r.style(titleStyle, name))

	switch {
	case cluster.Reachable:
		b.WriteString("  " + r.style(statusOK, "reachable"))
		if cluster.LatencyMs != nil {
			b.WriteString(mutedSuffix(r, fmt.Sprintf(" (%.0f ms)", *cluster.LatencyMs)))
		}
	case cluster.Stale:
		b.WriteString("  " + r.style(statusCritical, "UNREACHABLE"))
		if cluster.LastSuccess != nil {
			b.WriteString(mutedSuffix(r, fmt.Sprintf(" (showing cached data from %s)",
				cluster.LastSuccess.Format("2006-01-02 15:04 MST"))))
		}
	default:
		b.WriteString("  " + r.style(statusCritical, "UNREACHABLE"))
		b.WriteString(mutedSuffix(r, " (no cached data)"))
	}
	b.WriteString("\n")

	if cluster.Snapshot == nil {
		if cluster.Error != "" {
			fmt.Fprintf(b, "  %s %s\n", r.label("Error"), cluster.Error)
		}
		b.WriteString("\n")
		return
	}
	snap := cluster.Snapshot

	fmt.Fprintf(b, "  %s %s", r.label("Type"), snap.Type.Label())
	if snap.Version != "" {
		fmt.Fprintf(b, ", %s", snap.Version)
	}
	b.WriteString("\n")

	r.writeNodes(b, snap)
	r.writeCapacity(b, snap)
	r.writeActivity(b, snap)
	r.writeHealth(b, snap)
	b.WriteString("\n")
}

func (r renderer) writeNodes(b *strings.Builder, snap *models.ClusterSnapshot) {
	online := snap.OnlineNodes()
	status := fmt.Sprintf("%d/%d online", online, len(snap.Nodes))
	if online < len(snap.Nodes) {
		status = r.style(statusCritical, status)
	}
	fmt.Fprintf(b, "  %s %s", r.label("Nodes"), status)

	if total := totalConnections(snap); total != nil {
		fmt.Fprintf(b, ", %d client connections", *total)
		if protos := connectionSummary(snap); protos != "" {
			b.WriteString(mutedSuffix(r, " ("+protos+")"))
		}
	}
	b.WriteString("\n")

	for _, node := range snap.Nodes {
		if node.Network == nil || node.Network.ThroughputBps == 0 {
			continue
		}
		line := fmt.Sprintf("node %d: %s", node.ID, FormatBitRate(node.Network.ThroughputBps))
		if node.Network.UtilizationPct != nil {
			line += fmt.Sprintf(" (%.1f%% of %s link)",
				*node.Network.UtilizationPct, FormatBitRate(float64(node.Network.LinkSpeedBps)))
		}
		fmt.Fprintf(b, "  %s %s\n", r.label("NIC"), line)
	}
}

func (r renderer) writeCapacity(b *strings.Builder, snap *models.ClusterSnapshot) {
	capacity := snap.Capacity
	if capacity == nil {
		return
	}

	usage := fmt.Sprintf("%s of %s (%.1f%%)",
		FormatBytes(capacity.UsedBytes), FormatBytes(capacity.TotalBytes), capacity.UsedPct)
	switch {
	case capacity.UsedPct >= 95:
		usage = r.style(statusCritical, usage)
	case capacity.UsedPct >= 80:
		usage = r.style(statusWarning, usage)
	}
	fmt.Fprintf(b, "  %s %s", r.label("Capacity"), usage)
	if capacity.SnapshotBytes > 0 {
		b.WriteString(mutedSuffix(r, fmt.Sprintf(", %s in snapshots", FormatBytes(capacity.SnapshotBytes))))
	}
	b.WriteString("\n")

	if projection := capacity.Projection; projection != nil {
		line := fmt.Sprintf("%+.2f TB/day", projection.GrowthBytesPerDay/1e12)
		if projection.DaysToFull != nil {
			line += fmt.Sprintf(", full in ~%d days", int(*projection.DaysToFull))
		}
		if projection.LowConfidence {
			line += " [low confidence]"
		}
		fmt.Fprintf(b, "  %s %s\n", r.label("Growth"), line)
	}

	if snap.Files != nil {
		fmt.Fprintf(b, "  %s %s files, %s directories",
			r.label("Contents"), FormatCount(snap.Files.TotalFiles), FormatCount(snap.Files.TotalDirectories))
		if snap.Snapshots != nil {
			fmt.Fprintf(b, ", %d snapshots (%s)", snap.Snapshots.Count, FormatBytes(snap.Snapshots.TotalBytes))
		}
		b.WriteString("\n")
	}
}

func (r renderer) writeActivity(b *strings.Builder, snap *models.ClusterSnapshot) {
	activity := snap.Activity
	if activity == nil {
		return
	}
	if activity.Idle() {
		fmt.Fprintf(b, "  %s %s\n", r.label("Activity"), mutedSuffix(r, "idle"))
		return
	}
	fmt.Fprintf(b, "  %s %.0f read / %.0f write IOPS, %s read / %s write\n",
		r.label("Activity"),
		activity.ReadIOPS, activity.WriteIOPS,
		FormatByteRate(activity.ReadThroughputBps), FormatByteRate(activity.WriteThroughputBps))
}

func (r renderer) writeHealth(b *strings.Builder, snap *models.ClusterSnapshot) {
	health := snap.Health

	var problems []string
	if n := len(health.UnhealthyDisks); n > 0 {
		problems = append(problems, fmt.Sprintf("%d unhealthy disk(s)", n))
	}
	if n := len(health.UnhealthyPSUs); n > 0 {
		problems = append(problems, fmt.Sprintf("%d unhealthy PSU(s)", n))
	}
	if health.DataAtRisk != nil && *health.DataAtRisk {
		problems = append(problems, "DATA AT RISK")
	}

	if len(problems) > 0 {
		fmt.Fprintf(b, "  %s %s\n", r.label("Hardware"), r.style(statusCritical, strings.Join(problems, ", ")))
	}

	if health.RemainingNodeFailures != nil {
		tolerance := fmt.Sprintf("%d node / %d drive failures tolerated",
			*health.RemainingNodeFailures, derefInt(health.RemainingDriveFailures))
		if *health.RemainingNodeFailures <= 0 {
			tolerance = r.style(statusWarning, tolerance)
		}
		fmt.Fprintf(b, "  %s %s\n", r.label("Protection"), tolerance)
	}
}

func (r renderer) label(name string) string {
	if r.plain {
		return fmt.Sprintf("%-14s", name)
	}
	return labelStyle.Render(name)
}

func mutedSuffix(r renderer, text string) string {
	return r.style(mutedStyle, text)
}

func totalConnections(snap *models.ClusterSnapshot) *int {
	var total int
	seen := false
	for _, node := range snap.Nodes {
		if node.Connections != nil {
			total += *node.Connections
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return &total
}

func connectionSummary(snap *models.ClusterSnapshot) string {
	byProto := make(map[string]int)
	for _, node := range snap.Nodes {
		for proto, count := range node.ConnectionsByProto {
			byProto[proto] += count
		}
	}
	if len(byProto) == 0 {
		return ""
	}
	protos := make([]string, 0, len(byProto))
	for proto := range byProto {
		protos = append(protos, proto)
	}
	sort.Strings(protos)
	parts := make([]string, 0, len(protos))
	for _, proto := range protos {
		parts = append(parts, fmt.Sprintf("%d %s", byProto[proto], proto))
	}
	return strings.Join(parts, ", ")
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// FormatBytes renders a byte count with a binary-free decimal unit, matching
// how capacity is marketed and reported by the clusters themselves.
func FormatBytes(n int64) string {
	switch {
	case n >= 1e15:
		return fmt.Sprintf("%.2f PB", float64(n)/1e15)
	case n >= 1e12:
		return fmt.Sprintf("%.2f TB", float64(n)/1e12)
	case n >= 1e9:
		return fmt.Sprintf("%.2f GB", float64(n)/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%.2f MB", float64(n)/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.2f KB", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// FormatByteRate renders bytes per second.
func FormatByteRate(bps float64) string {
	return FormatBytes(int64(bps)) + "/s"
}

// FormatBitRate renders bits per second the way link speeds are quoted.
func FormatBitRate(bps float64) string {
	switch {
	case bps >= 1e9:
		return fmt.Sprintf("%.1f Gbit/s", bps/1e9)
	case bps >= 1e6:
		return fmt.Sprintf("%.1f Mbit/s", bps/1e6)
	case bps >= 1e3:
		return fmt.Sprintf("%.1f Kbit/s", bps/1e3)
	default:
		return fmt.Sprintf("%.0f bit/s", bps)
	}
}

// FormatCount renders a large count with thousands separators.
func FormatCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// Timestamp returns the report header line used above watch-mode refreshes.
func Timestamp(t time.Time, interval time.Duration) string {
	return mutedStyle.Render(fmt.Sprintf("Refreshed %s, next in %s",
		t.Format("15:04:05"), interval.Round(time.Second)))
}
