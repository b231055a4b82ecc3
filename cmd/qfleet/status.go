package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/qfleet/qfleet/internal/cache"
	"github.com/qfleet/qfleet/internal/config"
	errs "github.com/qfleet/qfleet/internal/errors"
	"github.com/qfleet/qfleet/internal/models"
	"github.com/qfleet/qfleet/internal/monitoring"
	"github.com/qfleet/qfleet/internal/render"
	"github.com/qfleet/qfleet/internal/telemetry"
)

var (
	timeoutFlag     time.Duration
	noCacheFlag     bool
	jsonFlag        bool
	plainFlag       bool
	watchFlag       bool
	intervalFlag    int
	timingFlag      bool
	metricsAddrFlag string
)

var statusCmd = &cobra.Command{
	Use:   "status [profiles...]",
	Short: "Collect and display fleet status",
	Long: `Collect status from every configured cluster, or only the named
profiles. Unreachable clusters fall back to the last cached snapshot.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().DurationVar(&timeoutFlag, "timeout", 15*time.Second, "Per-request timeout")
	statusCmd.Flags().BoolVar(&noCacheFlag, "no-cache", false, "Skip the snapshot cache entirely")
	statusCmd.Flags().BoolVar(&jsonFlag, "json", false, "Output the report as JSON")
	statusCmd.Flags().BoolVar(&plainFlag, "plain", false, "Disable terminal styling")
	statusCmd.Flags().BoolVar(&watchFlag, "watch", false, "Refresh continuously")
	statusCmd.Flags().IntVar(&intervalFlag, "interval", 30, "Watch refresh interval in seconds")
	statusCmd.Flags().BoolVar(&timingFlag, "timing", false, "Print per-call API timing to stderr")
	statusCmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "", "Expose Prometheus metrics on this address in watch mode (e.g. :9091)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	configPath, err := config.DefaultPath()
	if err != nil {
		return fmt.Errorf("locate config: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	profiles, err := selectProfiles(cfg, args)
	if err != nil {
		return err
	}

	cachePath, err := cache.DefaultPath()
	if err != nil {
		return fmt.Errorf("locate cache: %w", err)
	}
	store := cache.New(cachePath, noCacheFlag)

	if watchFlag {
		return runWatch(cmd.Context(), configPath, profiles, store)
	}
	return runOnce(cmd.Context(), profiles, store)
}

// selectProfiles picks the clusters a status run covers: the named profiles,
// or the whole configured fleet when no names are given.
func selectProfiles(cfg *config.Config, args []string) ([]config.Profile, error) {
	if len(args) > 0 {
		return cfg.Resolve(args)
	}
	profiles := cfg.ResolveAll()
	if len(profiles) == 0 {
		return nil, errors.New(`no profiles configured; add one with "qfleet profile add"`)
	}
	return profiles, nil
}

func runOnce(ctx context.Context, profiles []config.Profile, store *cache.Store) error {
	var timing *monitoring.TimingReport
	if timingFlag {
		timing = monitoring.NewTimingReport()
	}

	orch := monitoring.NewOrchestrator(nil, store, monitoring.Options{
		Timeout: timeoutFlag,
		Timing:  timing,
	})
	results, err := orch.CollectAll(ctx, profiles)
	if err != nil && !errors.Is(err, errs.ErrAllClustersUnreachable) {
		return err
	}

	report := monitoring.BuildReport(results, time.Now())
	if printErr := printReport(report); printErr != nil {
		return printErr
	}
	if timing != nil {
		fmt.Fprint(os.Stderr, timing.String())
	}
	return err
}

func printReport(report *models.Report) error {
	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Print(render.Render(report, render.Options{Plain: !styledOutput()}))
	return nil
}

func styledOutput() bool {
	return !plainFlag && term.IsTerminal(int(os.Stdout.Fd()))
}

// runWatch refreshes continuously until interrupted. Profile edits are picked
// up live via the config watcher; NIC throughput comes from counter deltas
// between polls.
func runWatch(ctx context.Context, configPath string, profiles []config.Profile, store *cache.Store) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddrFlag != "" {
		metrics := telemetry.NewMetrics()
		metrics.Serve(ctx, metricsAddrFlag)
		return watchLoop(ctx, configPath, profiles, store, metrics)
	}
	return watchLoop(ctx, configPath, profiles, store, nil)
}

func watchLoop(ctx context.Context, configPath string, profiles []config.Profile, store *cache.Store, metrics *telemetry.Metrics) error {
	var mu sync.Mutex
	current := profiles

	watcher, err := config.NewWatcher(configPath, func(cfg *config.Config) {
		resolved := cfg.ResolveAll()
		mu.Lock()
		current = resolved
		mu.Unlock()
		log.Info().Int("profiles", len(resolved)).Msg("Profile configuration reloaded")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable, profile edits need a restart")
	} else {
		defer watcher.Stop()
		if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Config watcher failed to start")
		}
	}

	showCachedPreview(profiles, store)

	state := monitoring.NewWatchState()
	interval := time.Duration(intervalFlag) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	for {
		mu.Lock()
		active := current
		mu.Unlock()

		orch := monitoring.NewOrchestrator(nil, store, monitoring.Options{
			Timeout:   timeoutFlag,
			WatchMode: true,
		})
		results, err := orch.CollectAll(ctx, active)
		if err != nil && !errors.Is(err, errs.ErrAllClustersUnreachable) {
			return err
		}

		now := time.Now()
		state.ApplyDeltas(results, now)
		report := monitoring.BuildReport(results, now)
		if metrics != nil {
			metrics.Observe(results, report.Alerts)
		}

		clearScreen()
		if printErr := printReport(report); printErr != nil {
			return printErr
		}
		if !jsonFlag {
			fmt.Println(render.Timestamp(now, interval))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// showCachedPreview renders whatever the cache holds so the screen is not
// empty while the first collection pass runs.
func showCachedPreview(profiles []config.Profile, store *cache.Store) {
	var results []models.ClusterResult
	for _, profile := range profiles {
		entry, ok := store.Get(profile.Name)
		if !ok {
			continue
		}
		results = append(results, models.StaleResult(profile.Name,
			errors.New("first collection pass pending"), entry.Data, entry.LastSuccess))
	}
	if len(results) == 0 || jsonFlag {
		return
	}

	clearScreen()
	report := monitoring.BuildReport(results, time.Now())
	fmt.Print(render.Render(report, render.Options{Plain: !styledOutput()}))
	fmt.Println("collecting...")
}

func clearScreen() {
	if !term.IsTerminal(int(os.Stdout.Fd())) || jsonFlag {
		return
	}
	fmt.Print("\x1b[2J\x1b[H")
}
