// Package config manages named cluster profiles persisted as a JSON file
// under the user's config directory.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const configFileName = "profiles.json"

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrNoDefaultProfile = errors.New("no default profile configured")
)

// Profile holds the connection parameters for one target cluster.
type Profile struct {
	Name        string `json:"-"`
	Host        string `json:"host"`
	Port        int    `json:"port,omitempty"`
	Token       string `json:"token"`
	Insecure    bool   `json:"insecure,omitempty"`
	ClusterUUID string `json:"cluster_uuid,omitempty"`
}

// Validate checks the profile's required fields.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("profile %q: host is required", p.Name)
	}
	if strings.TrimSpace(p.Token) == "" {
		return fmt.Errorf("profile %q: token is required", p.Name)
	}
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("profile %q: invalid port %d", p.Name, p.Port)
	}
	if p.ClusterUUID != "" {
		if _, err := uuid.Parse(p.ClusterUUID); err != nil {
			return fmt.Errorf("profile %q: invalid cluster uuid: %w", p.Name, err)
		}
	}
	return nil
}

// Config is the full persisted profile configuration.
type Config struct {
	DefaultProfile string             `json:"default_profile,omitempty"`
	Profiles       map[string]Profile `json:"profiles"`
}

// DefaultPath resolves the config file location, honoring QFLEET_CONFIG_DIR.
func DefaultPath() (string, error) {
	if dir := os.Getenv("QFLEET_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, "qfleet", configFileName), nil
}

// Load reads the config file. A missing file yields an empty config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{Profiles: map[string]Profile{}}, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	for name, profile := range cfg.Profiles {
		profile.Name = name
		cfg.Profiles[name] = profile
	}
	return &cfg, nil
}

// Save writes the config atomically: staged to a temp file and renamed into
// place so a crashed write never leaves a truncated config behind.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

// Resolve returns the profiles to collect. With explicit names, each must
// exist. With no names, the default profile is used; if none is set and
// exactly one profile exists, that one is used.
func (c *Config) Resolve(names []string) ([]Profile, error) {
	if len(names) > 0 {
		profiles := make([]Profile, 0, len(names))
		for _, name := range names {
			profile, ok := c.Profiles[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
			}
			profiles = append(profiles, profile)
		}
		return profiles, nil
	}

	if c.DefaultProfile != "" {
		profile, ok := c.Profiles[c.DefaultProfile]
		if !ok {
			return nil, fmt.Errorf("%w: default %q", ErrProfileNotFound, c.DefaultProfile)
		}
		return []Profile{profile}, nil
	}

	if len(c.Profiles) == 1 {
		for _, profile := range c.Profiles {
			return []Profile{profile}, nil
		}
	}
	return nil, ErrNoDefaultProfile
}

// ResolveAll returns every configured profile sorted by name.
func (c *Config) ResolveAll() []Profile {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make([]Profile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, c.Profiles[name])
	}
	return profiles
}

// SetProfile validates and adds or replaces a profile.
func (c *Config) SetProfile(profile Profile) error {
	if strings.TrimSpace(profile.Name) == "" {
		return fmt.Errorf("profile name is required")
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	if c.Profiles == nil {
		c.Profiles = map[string]Profile{}
	}
	c.Profiles[profile.Name] = profile
	if c.DefaultProfile == "" && len(c.Profiles) == 1 {
		c.DefaultProfile = profile.Name
	}
	return nil
}

// RemoveProfile deletes a profile, clearing the default if it pointed there.
func (c *Config) RemoveProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	delete(c.Profiles, name)
	if c.DefaultProfile == name {
		c.DefaultProfile = ""
	}
	return nil
}

// SetDefault marks an existing profile as the default.
func (c *Config) SetDefault(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	c.DefaultProfile = name
	return nil
}
