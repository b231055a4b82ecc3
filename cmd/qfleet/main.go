// qfleet reports health, capacity, and activity across a fleet of Qumulo
// clusters from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/qfleet/qfleet/internal/logging"
)

// Set via ldflags at release build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "qfleet",
	Short: "Multi-cluster Qumulo fleet status",
	Long: `qfleet collects health, capacity, and activity from every configured
Qumulo cluster and presents one fleet-wide view.

Profiles live in profiles.json under the user config directory; see
"qfleet profile add". Environment variables:
  QFLEET_CONFIG_DIR  Override the profile directory
  QFLEET_CACHE_DIR   Override the snapshot cache directory`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{
			Format:    logFormatFlag,
			Level:     logLevelFlag,
			Component: "qfleet",
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "auto", "Log format (auto, console, json)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("qfleet %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
	},
}

func main() {
	// A .env alongside the binary can seed QFLEET_* overrides; absence is
	// the normal case.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
