package monitoring

import (
	"sync"
	"time"

	"github.com/qfleet/qfleet/internal/models"
)

// WatchState carries NIC byte counters between watch-mode polls so each poll
// can derive throughput from the delta since the previous one. Keyed by
// profile and node id.
type WatchState struct {
	mu       sync.Mutex
	counters map[watchKey]watchSample
}

type watchKey struct {
	profile string
	nodeID  int
}

type watchSample struct {
	bytesTotal uint64
	seenAt     time.Time
}

func NewWatchState() *WatchState {
	return &WatchState{counters: make(map[watchKey]watchSample)}
}

// ApplyDeltas fills in per-node throughput on the results of one poll from
// the counters remembered at the previous poll, then records the new
// counters. The first poll for a node yields no throughput. A counter that
// went backwards (node reboot, counter reset) yields zero for that interval.
func (w *WatchState) ApplyDeltas(results []models.ClusterResult, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, result := range results {
		if !result.Reachable() || result.Snapshot == nil {
			continue
		}
		for i := range result.Snapshot.Nodes {
			node := &result.Snapshot.Nodes[i]
			if node.Network == nil {
				continue
			}

			key := watchKey{profile: result.Profile, nodeID: node.ID}
			previous, seen := w.counters[key]
			w.counters[key] = watchSample{bytesTotal: node.Network.BytesTotal, seenAt: now}

			if !seen {
				continue
			}
			elapsed := now.Sub(previous.seenAt)
			if elapsed <= 0 {
				continue
			}

			var delta uint64
			if node.Network.BytesTotal >= previous.bytesTotal {
				delta = node.Network.BytesTotal - previous.bytesTotal
			}
			node.Network.ThroughputBps = float64(delta*8) / elapsed.Seconds()
			if node.Network.LinkSpeedBps > 0 {
				utilization := node.Network.ThroughputBps / float64(node.Network.LinkSpeedBps) * 100
				node.Network.UtilizationPct = &utilization
			}
		}
	}
}

// Forget drops remembered counters for profiles no longer being polled.
func (w *WatchState) Forget(profile string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key := range w.counters {
		if key.profile == profile {
			delete(w.counters, key)
		}
	}
}
