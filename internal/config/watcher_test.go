package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnAtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, configFileName)
	require.NoError(t, Save(path, &Config{Profiles: map[string]Profile{}}))

	reloaded := make(chan *Config, 1)
	watcher, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	defer watcher.Stop()
	require.NoError(t, watcher.Start())

	cfg := &Config{Profiles: map[string]Profile{}}
	require.NoError(t, cfg.SetProfile(Profile{Name: "east", Host: "east.example.com", Token: "tok"}))
	require.NoError(t, Save(path, cfg))

	select {
	case got := <-reloaded:
		assert.Contains(t, got.Profiles, "east")
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not observe the config change")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, configFileName)

	reloaded := make(chan *Config, 1)
	watcher, err := NewWatcher(path, func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer watcher.Stop()
	require.NoError(t, watcher.Start())

	require.NoError(t, Save(filepath.Join(dir, "unrelated.json"), &Config{}))

	select {
	case <-reloaded:
		t.Fatal("watcher reacted to an unrelated file")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	watcher, err := NewWatcher(filepath.Join(dir, configFileName), nil)
	require.NoError(t, err)

	watcher.Stop()
	watcher.Stop()
}
