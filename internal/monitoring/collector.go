// Package monitoring collects status snapshots from a fleet of clusters,
// tolerating partial failure per cluster and per field, and folds the
// results into one report.
package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qfleet/qfleet/internal/cache"
	"github.com/qfleet/qfleet/internal/capacity"
	errs "github.com/qfleet/qfleet/internal/errors"
	"github.com/qfleet/qfleet/internal/models"
	"github.com/qfleet/qfleet/internal/qumulo"
)

const capacityHistoryDays = 30

// nicSampleGap separates the two NIC counter reads a single-shot run uses to
// derive throughput.
const nicSampleGap = time.Second

// APIClient is the read surface the collector needs from one cluster.
// *qumulo.Client satisfies it; tests substitute fakes.
type APIClient interface {
	GetClusterSettings(ctx context.Context) (*qumulo.ClusterSettings, error)
	GetVersion(ctx context.Context) (*qumulo.VersionInfo, error)
	GetNodes(ctx context.Context) ([]qumulo.Node, error)
	GetFileSystem(ctx context.Context) (*qumulo.FileSystemStats, error)
	GetCapacityHistory(ctx context.Context, since time.Time) ([]qumulo.CapacityHistoryEntry, error)
	GetActivitySum(ctx context.Context, activityType string) (float64, error)
	GetDriveSlots(ctx context.Context) ([]qumulo.DriveSlot, error)
	GetChassisPSUs(ctx context.Context) ([]qumulo.ChassisPSU, error)
	GetProtectionStatus(ctx context.Context) (*qumulo.ProtectionStatus, error)
	GetRestriperStatus(ctx context.Context) (*qumulo.RestriperStatus, error)
	GetNetworkConnections(ctx context.Context) ([]qumulo.NodeConnections, error)
	GetNetworkStatus(ctx context.Context) ([]qumulo.NodeNetworkStatus, error)
	GetRecursiveAggregates(ctx context.Context) (*qumulo.AggregateTotals, error)
	GetSnapshotTotals(ctx context.Context) (*qumulo.SnapshotTotals, error)
	Close()
}

// Collector runs the per-cluster read pipeline. Reads within one cluster are
// sequential; a failed optional read leaves its field absent, a failed
// essential read fails the cluster and falls back to the cache.
type Collector struct {
	cache   *cache.Store
	timeout time.Duration
	watch   bool
	timing  *TimingReport
	now     func() time.Time
}

// NewCollector builds a collector. timeout bounds each individual remote
// read. In watch mode NIC counters are read once and returned raw; the watch
// loop derives throughput from deltas between polls.
func NewCollector(store *cache.Store, timeout time.Duration, watch bool, timing *TimingReport) *Collector {
	return &Collector{
		cache:   store,
		timeout: timeout,
		watch:   watch,
		timing:  timing,
		now:     time.Now,
	}
}

// Collect produces exactly one result for the profile. On success the cache
// is updated; on cluster-level failure the last cached snapshot stands in
// when one exists. A non-empty expectedUUID is checked against the cluster's
// reported identity; a mismatch is logged but does not fail collection.
func (c *Collector) Collect(ctx context.Context, client APIClient, profile, expectedUUID string) models.ClusterResult {
	start := c.now()

	snapshot, err := c.collect(ctx, client, profile)
	if err == nil && expectedUUID != "" && !strings.EqualFold(snapshot.UUID, expectedUUID) {
		log.Warn().
			Str("profile", profile).
			Str("expected", expectedUUID).
			Str("actual", snapshot.UUID).
			Msg("Cluster UUID does not match the profile")
	}
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Cluster collection failed")
		return c.fallback(profile, err)
	}

	latency := c.now().Sub(start)
	if err := c.cache.Put(profile, snapshot, c.now()); err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Failed to update snapshot cache")
	}
	return models.LiveResult(profile, snapshot, latency)
}

// fallback serves the last successful snapshot for an unreachable cluster,
// or a bare no-data result when none exists.
func (c *Collector) fallback(profile string, cause error) models.ClusterResult {
	entry, ok := c.cache.Get(profile)
	if !ok {
		return models.NoDataResult(profile, cause)
	}
	log.Info().
		Str("profile", profile).
		Time("last_success", entry.LastSuccess).
		Msg("Serving cached snapshot for unreachable cluster")
	return models.StaleResult(profile, cause, entry.Data, entry.LastSuccess)
}

func (c *Collector) collect(ctx context.Context, client APIClient, profile string) (*models.ClusterSnapshot, error) {
	var settings *qumulo.ClusterSettings
	err := c.call(ctx, profile, "cluster/settings", func(callCtx context.Context) error {
		var callErr error
		settings, callErr = client.GetClusterSettings(callCtx)
		return callErr
	})
	if err != nil {
		return nil, errs.WrapUnreachableError("fetch_settings", profile, err)
	}

	var version *qumulo.VersionInfo
	err = c.call(ctx, profile, "version", func(callCtx context.Context) error {
		var callErr error
		version, callErr = client.GetVersion(callCtx)
		return callErr
	})
	if err != nil {
		return nil, errs.WrapUnreachableError("fetch_version", profile, err)
	}

	var nodes []qumulo.Node
	err = c.call(ctx, profile, "cluster/nodes", func(callCtx context.Context) error {
		var callErr error
		nodes, callErr = client.GetNodes(callCtx)
		return callErr
	})
	if err != nil {
		return nil, errs.WrapUnreachableError("fetch_nodes", profile, err)
	}

	var fs *qumulo.FileSystemStats
	err = c.call(ctx, profile, "file-system", func(callCtx context.Context) error {
		var callErr error
		fs, callErr = client.GetFileSystem(callCtx)
		return callErr
	})
	if err != nil {
		return nil, errs.WrapUnreachableError("fetch_capacity", profile, err)
	}

	clusterType := DetectClusterType(nodes)

	snapshot := &models.ClusterSnapshot{
		Name:    settings.Name,
		UUID:    settings.UUID,
		Version: version.Revision,
		Type:    clusterType,
		Nodes:   make([]models.NodeStatus, 0, len(nodes)),
	}
	for _, node := range nodes {
		snapshot.Nodes = append(snapshot.Nodes, models.NodeStatus{
			ID:     node.ID,
			Status: node.Status,
			Model:  node.Model,
		})
	}

	snapshot.Capacity = c.buildCapacity(ctx, client, profile, fs)
	snapshot.Activity = c.fetchActivity(ctx, client, profile)
	c.fetchHealth(ctx, client, profile, snapshot)
	c.fetchConnections(ctx, client, profile, snapshot)
	c.fetchNICStats(ctx, client, profile, snapshot, clusterType.IsCloud())
	snapshot.Files = c.fetchFileStats(ctx, client, profile)
	snapshot.Snapshots = c.fetchSnapshotStats(ctx, client, profile)

	return snapshot, nil
}

func (c *Collector) buildCapacity(ctx context.Context, client APIClient, profile string, fs *qumulo.FileSystemStats) *models.CapacityStatus {
	status := &models.CapacityStatus{
		TotalBytes:    fs.TotalBytes,
		UsedBytes:     fs.UsedBytes(),
		FreeBytes:     fs.FreeBytes,
		SnapshotBytes: fs.SnapshotBytes,
	}
	if status.TotalBytes > 0 {
		status.UsedPct = float64(status.UsedBytes) / float64(status.TotalBytes) * 100
	}

	if status.TotalBytes == 0 {
		return status
	}

	var history []qumulo.CapacityHistoryEntry
	err := c.call(ctx, profile, "capacity-history", func(callCtx context.Context) error {
		var callErr error
		history, callErr = client.GetCapacityHistory(callCtx, c.now().AddDate(0, 0, -capacityHistoryDays))
		return callErr
	})
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Failed to fetch capacity history, skipping projection")
		return status
	}

	points := make([]capacity.HistoryPoint, 0, len(history))
	for _, entry := range history {
		points = append(points, capacity.HistoryPoint{
			Timestamp: entry.PeriodStart,
			UsedBytes: entry.UsedBytes,
		})
	}

	status.Projection = capacity.Project(points, status.TotalBytes, status.UsedBytes)
	if status.Projection == nil {
		log.Debug().
			Str("profile", profile).
			Int("samples", len(points)).
			Msg("Capacity history too short for projection")
	}
	return status
}

func (c *Collector) fetchActivity(ctx context.Context, client APIClient, profile string) *models.ActivityStatus {
	activity := &models.ActivityStatus{}
	reads := []struct {
		activityType string
		target       *float64
	}{
		{qumulo.ActivityIOPSRead, &activity.ReadIOPS},
		{qumulo.ActivityIOPSWrite, &activity.WriteIOPS},
		{qumulo.ActivityThroughputRead, &activity.ReadThroughputBps},
		{qumulo.ActivityThroughputWrite, &activity.WriteThroughputBps},
	}

	for _, read := range reads {
		err := c.call(ctx, profile, "activity/"+read.activityType, func(callCtx context.Context) error {
			sum, callErr := client.GetActivitySum(callCtx, read.activityType)
			if callErr != nil {
				return callErr
			}
			*read.target = sum
			return nil
		})
		if err != nil {
			// A cluster with unknown activity must not look idle.
			log.Warn().Err(err).Str("profile", profile).Msg("Failed to fetch activity, leaving it absent")
			return nil
		}
	}
	return activity
}

func (c *Collector) fetchHealth(ctx context.Context, client APIClient, profile string, snapshot *models.ClusterSnapshot) {
	var slots []qumulo.DriveSlot
	err := c.call(ctx, profile, "cluster/slots", func(callCtx context.Context) error {
		var callErr error
		slots, callErr = client.GetDriveSlots(callCtx)
		return callErr
	})
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Failed to fetch disk health")
	} else {
		for _, slot := range slots {
			if slot.Healthy() {
				continue
			}
			snapshot.Health.UnhealthyDisks = append(snapshot.Health.UnhealthyDisks, models.UnhealthyDisk{
				NodeID:   slot.NodeID,
				Bay:      slot.Bay,
				DiskType: slot.DiskType,
				State:    slot.State,
			})
		}
	}

	var psus []qumulo.ChassisPSU
	err = c.call(ctx, profile, "cluster/chassis", func(callCtx context.Context) error {
		var callErr error
		psus, callErr = client.GetChassisPSUs(callCtx)
		return callErr
	})
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Failed to fetch PSU health")
	} else {
		for _, psu := range psus {
			if psu.Good() {
				continue
			}
			snapshot.Health.UnhealthyPSUs = append(snapshot.Health.UnhealthyPSUs, models.UnhealthyPSU{
				NodeID:   psu.NodeID,
				Location: psu.Location,
				Name:     psu.Name,
				State:    psu.State,
			})
		}
	}

	var protection *qumulo.ProtectionStatus
	err = c.call(ctx, profile, "protection/status", func(callCtx context.Context) error {
		var callErr error
		protection, callErr = client.GetProtectionStatus(callCtx)
		return callErr
	})
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Failed to fetch protection status")
	} else {
		snapshot.Health.RemainingNodeFailures = protection.RemainingNodeFailures
		snapshot.Health.RemainingDriveFailures = protection.RemainingDriveFailures
		snapshot.Health.ProtectionType = protection.SystemType
	}

	var restriper *qumulo.RestriperStatus
	err = c.call(ctx, profile, "restriper/status", func(callCtx context.Context) error {
		var callErr error
		restriper, callErr = client.GetRestriperStatus(callCtx)
		return callErr
	})
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Failed to fetch restriper status")
	} else {
		snapshot.Health.DataAtRisk = &restriper.DataAtRisk
	}
}

func (c *Collector) fetchConnections(ctx context.Context, client APIClient, profile string, snapshot *models.ClusterSnapshot) {
	var connections []qumulo.NodeConnections
	err := c.call(ctx, profile, "network/connections", func(callCtx context.Context) error {
		var callErr error
		connections, callErr = client.GetNetworkConnections(callCtx)
		return callErr
	})
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Failed to fetch network connections")
		return
	}

	byNode := make(map[int]qumulo.NodeConnections, len(connections))
	for _, node := range connections {
		byNode[node.NodeID] = node
	}
	for i := range snapshot.Nodes {
		node, ok := byNode[snapshot.Nodes[i].ID]
		if !ok {
			continue
		}
		total := node.Total
		snapshot.Nodes[i].Connections = &total
		if len(node.ByProtocol) > 0 {
			snapshot.Nodes[i].ConnectionsByProto = node.ByProtocol
		}
	}
}

// fetchNICStats populates per-node NIC throughput. A single-shot run reads
// the counters twice, one second apart, and derives throughput from the
// delta. Watch mode reads once and leaves throughput at zero; the watch loop
// computes it from counters carried across polls.
func (c *Collector) fetchNICStats(ctx context.Context, client APIClient, profile string, snapshot *models.ClusterSnapshot, isCloud bool) {
	var first []qumulo.NodeNetworkStatus
	err := c.call(ctx, profile, "network/status", func(callCtx context.Context) error {
		var callErr error
		first, callErr = client.GetNetworkStatus(callCtx)
		return callErr
	})
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Failed to fetch NIC stats")
		return
	}

	if c.watch {
		applyNICSample(snapshot, first, isCloud)
		return
	}

	if err := sleepCtx(ctx, nicSampleGap); err != nil {
		applyNICSample(snapshot, first, isCloud)
		return
	}

	var second []qumulo.NodeNetworkStatus
	err = c.call(ctx, profile, "network/status#2", func(callCtx context.Context) error {
		var callErr error
		second, callErr = client.GetNetworkStatus(callCtx)
		return callErr
	})
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Failed to fetch second NIC sample")
		applyNICSample(snapshot, first, isCloud)
		return
	}

	applyNICDelta(snapshot, first, second, nicSampleGap, isCloud)
}

// applyNICSample records raw counters and link speed without throughput.
func applyNICSample(snapshot *models.ClusterSnapshot, sample []qumulo.NodeNetworkStatus, isCloud bool) {
	byNode := indexFrontendDevices(sample)
	for i := range snapshot.Nodes {
		device, ok := byNode[snapshot.Nodes[i].ID]
		if !ok {
			continue
		}
		info := &models.NodeNetworkInfo{BytesTotal: device.TotalBytes()}
		if !isCloud {
			info.LinkSpeedBps = device.SpeedMbps * 1_000_000
		}
		snapshot.Nodes[i].Network = info
	}
}

// applyNICDelta derives throughput from two counter samples. A counter going
// backwards (node reboot, counter reset) yields zero for that interval rather
// than a bogus spike.
func applyNICDelta(snapshot *models.ClusterSnapshot, first, second []qumulo.NodeNetworkStatus, elapsed time.Duration, isCloud bool) {
	firstByNode := indexFrontendDevices(first)
	secondByNode := indexFrontendDevices(second)

	for i := range snapshot.Nodes {
		before, ok := firstByNode[snapshot.Nodes[i].ID]
		if !ok {
			continue
		}

		info := &models.NodeNetworkInfo{}
		if !isCloud {
			info.LinkSpeedBps = before.SpeedMbps * 1_000_000
		}

		if after, ok := secondByNode[snapshot.Nodes[i].ID]; ok {
			info.BytesTotal = after.TotalBytes()
			var delta uint64
			if after.TotalBytes() >= before.TotalBytes() {
				delta = after.TotalBytes() - before.TotalBytes()
			}
			info.ThroughputBps = float64(delta*8) / elapsed.Seconds()
			if info.LinkSpeedBps > 0 {
				utilization := info.ThroughputBps / float64(info.LinkSpeedBps) * 100
				info.UtilizationPct = &utilization
			}
		} else {
			info.BytesTotal = before.TotalBytes()
		}

		snapshot.Nodes[i].Network = info
	}
}

func indexFrontendDevices(statuses []qumulo.NodeNetworkStatus) map[int]qumulo.NetworkDevice {
	byNode := make(map[int]qumulo.NetworkDevice, len(statuses))
	for _, status := range statuses {
		if device := status.FrontendDevice(); device != nil {
			byNode[status.NodeID] = *device
		}
	}
	return byNode
}

func (c *Collector) fetchFileStats(ctx context.Context, client APIClient, profile string) *models.FileStats {
	var totals *qumulo.AggregateTotals
	err := c.call(ctx, profile, "recursive-aggregates", func(callCtx context.Context) error {
		var callErr error
		totals, callErr = client.GetRecursiveAggregates(callCtx)
		return callErr
	})
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Failed to fetch file counts")
		return nil
	}
	return &models.FileStats{
		TotalFiles:       totals.Files,
		TotalDirectories: totals.Directories,
	}
}

func (c *Collector) fetchSnapshotStats(ctx context.Context, client APIClient, profile string) *models.SnapshotStats {
	var totals *qumulo.SnapshotTotals
	err := c.call(ctx, profile, "snapshots", func(callCtx context.Context) error {
		var callErr error
		totals, callErr = client.GetSnapshotTotals(callCtx)
		return callErr
	})
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("Failed to fetch snapshot totals")
		return nil
	}
	return &models.SnapshotStats{
		Count:      totals.Count,
		TotalBytes: totals.TotalBytes,
	}
}

// call runs one remote read under the per-call deadline and records its
// duration when timing is enabled.
func (c *Collector) call(ctx context.Context, profile, name string, fn func(context.Context) error) error {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := c.now()
	err := fn(callCtx)
	if c.timing != nil {
		c.timing.Record(profile, name, c.now().Sub(start))
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
