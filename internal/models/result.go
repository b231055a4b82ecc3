package models

import "time"

// ResultState distinguishes the three per-cluster collection outcomes.
type ResultState string

const (
	// ResultLive means collection succeeded this run.
	ResultLive ResultState = "live"
	// ResultStale means collection failed but cached data stood in.
	ResultStale ResultState = "stale"
	// ResultNoData means collection failed and no cache entry existed.
	ResultNoData ResultState = "no_data"
)

// ClusterResult is the outcome of collecting one profile. Exactly one of the
// three states applies: live carries a fresh snapshot and a measured latency,
// stale carries a cached snapshot and its age, no-data carries only the error.
type ClusterResult struct {
	Profile     string
	State       ResultState
	Snapshot    *ClusterSnapshot
	Latency     time.Duration
	Err         error
	LastSuccess time.Time
}

// LiveResult builds a result for a successful collection.
func LiveResult(profile string, snapshot *ClusterSnapshot, latency time.Duration) ClusterResult {
	return ClusterResult{
		Profile:  profile,
		State:    ResultLive,
		Snapshot: snapshot,
		Latency:  latency,
	}
}

// StaleResult builds a result for an unreachable cluster backed by cache.
func StaleResult(profile string, err error, snapshot *ClusterSnapshot, lastSuccess time.Time) ClusterResult {
	return ClusterResult{
		Profile:     profile,
		State:       ResultStale,
		Snapshot:    snapshot,
		Err:         err,
		LastSuccess: lastSuccess,
	}
}

// NoDataResult builds a result for an unreachable cluster with no cache entry.
func NoDataResult(profile string, err error) ClusterResult {
	return ClusterResult{
		Profile: profile,
		State:   ResultNoData,
		Err:     err,
	}
}

// Reachable reports whether this run collected the cluster live.
func (r ClusterResult) Reachable() bool {
	return r.State == ResultLive
}
