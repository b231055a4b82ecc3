// Package cache persists the last successful snapshot per profile so an
// unreachable cluster can still be reported from stale data.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qfleet/qfleet/internal/models"
)

// schemaVersion guards against silently misreading files written by a future
// layout. Anything else is treated as an empty cache.
const schemaVersion = 1

const cacheFileName = "status.json"

// Entry is one profile's cached snapshot.
type Entry struct {
	LastSuccess time.Time               `json:"last_success"`
	Data        *models.ClusterSnapshot `json:"data"`
}

type cacheFile struct {
	Version  int              `json:"version"`
	Clusters map[string]Entry `json:"clusters"`
}

// Store reads and writes the on-disk snapshot cache. A bypassed store ignores
// both reads and writes for the whole run. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	path   string
	bypass bool
}

// DefaultPath resolves the cache file location, honoring QFLEET_CACHE_DIR.
func DefaultPath() (string, error) {
	if dir := os.Getenv("QFLEET_CACHE_DIR"); dir != "" {
		return filepath.Join(dir, cacheFileName), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache directory: %w", err)
	}
	return filepath.Join(dir, "qfleet", cacheFileName), nil
}

// New creates a store backed by the given file path.
func New(path string, bypass bool) *Store {
	return &Store{path: path, bypass: bypass}
}

// Get returns the cached entry for a profile, or false when the store is
// bypassed, the file is missing or unreadable, or the profile has no entry.
// A corrupt or version-mismatched file is treated as empty, never as an error.
func (s *Store) Get(profile string) (Entry, bool) {
	if s.bypass {
		return Entry{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contents := s.loadLocked()
	entry, ok := contents.Clusters[profile]
	if !ok || entry.Data == nil {
		return Entry{}, false
	}
	return entry, true
}

// Put records a successful snapshot for a profile, overwriting any previous
// entry. The write is atomic from a reader's perspective: the file is staged
// to a temp path and renamed into place.
func (s *Store) Put(profile string, snapshot *models.ClusterSnapshot, timestamp time.Time) error {
	if s.bypass || snapshot == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contents := s.loadLocked()
	contents.Clusters[profile] = Entry{
		LastSuccess: timestamp.UTC(),
		Data:        snapshot,
	}

	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write cache temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			log.Warn().Err(removeErr).Str("path", tmpPath).Msg("Failed to remove orphaned cache temp file")
		}
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// loadLocked reads the cache file, degrading to an empty cache on any
// problem. Missing files are expected on first run and not logged.
func (s *Store) loadLocked() cacheFile {
	empty := cacheFile{Version: schemaVersion, Clusters: map[string]Entry{}}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", s.path).Msg("Snapshot cache unreadable, treating as empty")
		}
		return empty
	}

	var contents cacheFile
	if err := json.Unmarshal(data, &contents); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Snapshot cache corrupt, treating as empty")
		return empty
	}
	if contents.Version != schemaVersion {
		log.Warn().Int("version", contents.Version).Str("path", s.path).Msg("Snapshot cache version mismatch, treating as empty")
		return empty
	}
	if contents.Clusters == nil {
		contents.Clusters = map[string]Entry{}
	}
	return contents
}
