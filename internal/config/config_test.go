package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.CachePath == "" {
		t.Error("default cache path missing")
	}
	if len(cfg.RemoteHosts) != 1 || cfg.RemoteHosts[0] != "gitlab.com" {
		t.Errorf("wrong default hosts: %v", cfg.RemoteHosts)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.CachePath != Default().CachePath {
		t.Error("empty path should yield defaults")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `cache_path: /tmp/ls-cache
log_path: /tmp/ls.log
remote_hosts:
  - gitlab.example.com
  - gitlab.com
project_map:
  group/proj: gitlab.internal.example.com
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.CachePath != "/tmp/ls-cache" {
		t.Errorf("wrong cache path: %s", cfg.CachePath)
	}
	if cfg.LogPath != "/tmp/ls.log" {
		t.Errorf("wrong log path: %s", cfg.LogPath)
	}
	if len(cfg.RemoteHosts) != 2 || cfg.RemoteHosts[0] != "gitlab.example.com" {
		t.Errorf("wrong hosts: %v", cfg.RemoteHosts)
	}
	if cfg.ProjectMap["group/proj"] != "gitlab.internal.example.com" {
		t.Errorf("wrong project map: %v", cfg.ProjectMap)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_path: /tmp/ls.log\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.LogPath != "/tmp/ls.log" {
		t.Errorf("file value not applied: %s", cfg.LogPath)
	}
	if len(cfg.RemoteHosts) != 1 || cfg.RemoteHosts[0] != "gitlab.com" {
		t.Errorf("defaults should survive a partial file: %v", cfg.RemoteHosts)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
