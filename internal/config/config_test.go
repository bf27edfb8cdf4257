package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFileParsesSettings(t *testing.T) {
	cfg := &Config{Port: 8765}
	cfg.ConfigPath = filepath.Join(t.TempDir(), "config.yaml")

	content := "port: 9999\ndownloader_path: /opt/bin/depot-downloader\nsteam_root: /home/gordon/.steam/steam\ntoken: test-token\nverbose: true\n"
	if err := os.WriteFile(cfg.ConfigPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file error = %v", err)
	}

	if err := cfg.loadFromFile(); err != nil {
		t.Fatalf("loadFromFile() error = %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.DownloaderPath != "/opt/bin/depot-downloader" {
		t.Errorf("DownloaderPath = %q", cfg.DownloaderPath)
	}
	if cfg.Token != "test-token" {
		t.Errorf("Token = %q", cfg.Token)
	}
	if !cfg.Verbose {
		t.Error("Verbose not set")
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := &Config{Port: 70000, DownloaderPath: "depot-downloader", DownloadRoot: "/tmp"}
	if err := cfg.validate(); err == nil {
		t.Error("validate() accepted port 70000")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := &Config{
		Port:           8765,
		DownloaderPath: "depot-downloader",
		DownloadRoot:   "/tmp/downloads",
		Token:          "abc123",
		ConfigPath:     filepath.Join(t.TempDir(), "sub", "config.yaml"),
	}
	if err := cfg.saveToFile(); err != nil {
		t.Fatalf("saveToFile() error = %v", err)
	}

	loaded := &Config{ConfigPath: cfg.ConfigPath}
	if err := loaded.loadFromFile(); err != nil {
		t.Fatalf("loadFromFile() error = %v", err)
	}
	if loaded.Token != "abc123" || loaded.Port != 8765 {
		t.Errorf("loaded = %+v", loaded)
	}
}
