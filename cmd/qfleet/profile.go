package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/qfleet/qfleet/internal/config"
)

var (
	profileHostFlag     string
	profilePortFlag     int
	profileTokenFlag    string
	profileInsecureFlag bool
	profileUUIDFlag     string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage cluster profiles",
}

var profileAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add or update a cluster profile",
	Long: `Add a cluster profile. The first profile added becomes the default.
Adding an existing name overwrites it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile := config.Profile{
			Name:        args[0],
			Host:        profileHostFlag,
			Port:        profilePortFlag,
			Token:       profileTokenFlag,
			Insecure:    profileInsecureFlag,
			ClusterUUID: profileUUIDFlag,
		}
		return updateConfig(func(cfg *config.Config) error {
			if err := cfg.SetProfile(profile); err != nil {
				return err
			}
			fmt.Printf("Profile %q saved\n", profile.Name)
			return nil
		})
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.DefaultPath()
		if err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if len(cfg.Profiles) == 0 {
			fmt.Println("No profiles configured. Add one with: qfleet profile add")
			return nil
		}

		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			profile := cfg.Profiles[name]
			marker := " "
			if name == cfg.DefaultProfile {
				marker = "*"
			}
			fmt.Printf("%s %-20s %s\n", marker, name, profile.Host)
		}
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a cluster profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(cfg *config.Config) error {
			if err := cfg.RemoveProfile(args[0]); err != nil {
				return err
			}
			fmt.Printf("Profile %q removed\n", args[0])
			return nil
		})
	},
}

var profileSetDefaultCmd = &cobra.Command{
	Use:   "set-default NAME",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(cfg *config.Config) error {
			if err := cfg.SetDefault(args[0]); err != nil {
				return err
			}
			fmt.Printf("Default profile set to %q\n", args[0])
			return nil
		})
	},
}

// updateConfig loads, mutates, and atomically saves the profile file.
func updateConfig(mutate func(*config.Config) error) error {
	path, err := config.DefaultPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := mutate(cfg); err != nil {
		return err
	}
	return config.Save(path, cfg)
}

func init() {
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileSetDefaultCmd)

	profileAddCmd.Flags().StringVar(&profileHostFlag, "host", "", "Cluster hostname or IP (required)")
	profileAddCmd.Flags().IntVar(&profilePortFlag, "port", 0, "REST API port (default 8000)")
	profileAddCmd.Flags().StringVar(&profileTokenFlag, "token", "", "API access token (required)")
	profileAddCmd.Flags().BoolVar(&profileInsecureFlag, "insecure", false, "Skip TLS certificate verification")
	profileAddCmd.Flags().StringVar(&profileUUIDFlag, "cluster-uuid", "", "Expected cluster UUID, verified on collection")
	_ = profileAddCmd.MarkFlagRequired("host")
	_ = profileAddCmd.MarkFlagRequired("token")
}
