package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Config is the startup configuration, loaded once. Flags override file
// values, which override defaults.
type Config struct {
	// RootDir is the workspace root; the client's rootUri wins when present.
	RootDir string `yaml:"root_dir"`
	// CachePath is where clones and remote fetches land.
	CachePath string `yaml:"cache_path"`
	// LogPath receives the server log; stdout carries the protocol.
	LogPath string `yaml:"log_path"`
	// RemoteHosts are tried in order when cloning projects.
	RemoteHosts []string `yaml:"remote_hosts"`
	// ProjectMap pins specific projects to a git host.
	ProjectMap map[string]string `yaml:"project_map"`

	Version string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return &Config{
		CachePath:   filepath.Join(cacheDir, "gitlab-ci-ls"),
		RemoteHosts: []string{"gitlab.com"},
	}
}

// Load builds the configuration from an optional YAML file on top of the
// defaults. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(cfg.RemoteHosts) == 0 {
		cfg.RemoteHosts = []string{"gitlab.com"}
	}
	return cfg, nil
}
