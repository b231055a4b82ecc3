package monitoring

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qfleet/qfleet/internal/cache"
	"github.com/qfleet/qfleet/internal/config"
	errs "github.com/qfleet/qfleet/internal/errors"
	"github.com/qfleet/qfleet/internal/models"
	"github.com/qfleet/qfleet/internal/qumulo"
)

// ClientFactory builds an API client for one profile. Tests substitute a
// factory returning fakes.
type ClientFactory func(profile config.Profile, timeout time.Duration) (APIClient, error)

// DefaultClientFactory dials the cluster the profile describes.
func DefaultClientFactory(profile config.Profile, timeout time.Duration) (APIClient, error) {
	return qumulo.NewClient(qumulo.ClientConfig{
		Host:               profile.Host,
		Port:               profile.Port,
		Token:              profile.Token,
		InsecureSkipVerify: profile.Insecure,
		Timeout:            timeout,
	})
}

// Options configures one orchestrated collection pass.
type Options struct {
	// Timeout bounds each individual remote read.
	Timeout time.Duration
	// WatchMode skips the second NIC counter sample; throughput comes from
	// deltas between polls instead.
	WatchMode bool
	// Timing, when non-nil, receives per-call durations.
	Timing *TimingReport
}

// Orchestrator fans a collection pass out across the fleet, one goroutine
// per cluster. A slow or failing cluster never cancels the others; the join
// waits for every result.
type Orchestrator struct {
	factory ClientFactory
	cache   *cache.Store
	opts    Options
}

func NewOrchestrator(factory ClientFactory, store *cache.Store, opts Options) *Orchestrator {
	if factory == nil {
		factory = DefaultClientFactory
	}
	return &Orchestrator{factory: factory, cache: store, opts: opts}
}

// CollectAll gathers one result per profile, concurrently, and returns them
// sorted by profile name. Every profile yields exactly one result; when the
// whole fleet is unreachable the results still come back alongside
// ErrAllClustersUnreachable.
func (o *Orchestrator) CollectAll(ctx context.Context, profiles []config.Profile) ([]models.ClusterResult, error) {
	if len(profiles) == 0 {
		return nil, nil
	}

	collector := NewCollector(o.cache, o.opts.Timeout, o.opts.WatchMode, o.opts.Timing)
	results := make([]models.ClusterResult, len(profiles))

	var g errgroup.Group
	for i, profile := range profiles {
		i, profile := i, profile
		g.Go(func() error {
			client, err := o.factory(profile, o.opts.Timeout)
			if err != nil {
				results[i] = models.NoDataResult(profile.Name,
					errs.WrapUnreachableError("connect", profile.Name, err))
				return nil
			}
			defer client.Close()
			results[i] = collector.Collect(ctx, client, profile.Name, profile.ClusterUUID)
			return nil
		})
	}
	// Workers never return errors; the group is a join point only.
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Profile < results[j].Profile
	})

	for _, result := range results {
		if result.Reachable() {
			return results, nil
		}
	}
	return results, errs.ErrAllClustersUnreachable
}
