package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qfleet/qfleet/internal/config"
)

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["status"])
	assert.True(t, names["profile"])
	assert.True(t, names["version"])
}

func TestStatusFlagDefaults(t *testing.T) {
	flags := statusCmd.Flags()

	timeout, err := flags.GetDuration("timeout")
	require.NoError(t, err)
	assert.Equal(t, "15s", timeout.String())

	interval, err := flags.GetInt("interval")
	require.NoError(t, err)
	assert.Equal(t, 30, interval)

	noCache, err := flags.GetBool("no-cache")
	require.NoError(t, err)
	assert.False(t, noCache)

	addr, err := flags.GetString("metrics-addr")
	require.NoError(t, err)
	assert.Empty(t, addr)
}

func TestSelectProfilesCoversFleetWithoutArgs(t *testing.T) {
	cluster := func(name string) config.Profile {
		return config.Profile{Name: name, Host: name + ".example.com", Token: "access-v1:abcdef"}
	}
	cfg := &config.Config{Profiles: map[string]config.Profile{
		"west":    cluster("west"),
		"east":    cluster("east"),
		"central": cluster("central"),
	}}

	// No arguments means the whole fleet, sorted, default or not.
	profiles, err := selectProfiles(cfg, nil)
	require.NoError(t, err)
	require.Len(t, profiles, 3)
	assert.Equal(t, "central", profiles[0].Name)
	assert.Equal(t, "east", profiles[1].Name)
	assert.Equal(t, "west", profiles[2].Name)

	cfg.DefaultProfile = "east"
	profiles, err = selectProfiles(cfg, nil)
	require.NoError(t, err)
	assert.Len(t, profiles, 3)

	// Explicit names narrow the run.
	profiles, err = selectProfiles(cfg, []string{"west"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "west", profiles[0].Name)

	_, err = selectProfiles(cfg, []string{"missing"})
	assert.ErrorIs(t, err, config.ErrProfileNotFound)
}

func TestSelectProfilesEmptyConfig(t *testing.T) {
	cfg := &config.Config{Profiles: map[string]config.Profile{}}

	_, err := selectProfiles(cfg, nil)
	assert.ErrorContains(t, err, "no profiles configured")
}

func TestProfileAddRequiresHostAndToken(t *testing.T) {
	assert.NotNil(t, profileAddCmd.Flags().Lookup("host"))
	assert.NotNil(t, profileAddCmd.Flags().Lookup("token"))

	required := func(name string) bool {
		flag := profileAddCmd.Flags().Lookup(name)
		require.NotNil(t, flag)
		_, ok := flag.Annotations[cobra.BashCompOneRequiredFlag]
		return ok
	}
	assert.True(t, required("host"))
	assert.True(t, required("token"))
}
