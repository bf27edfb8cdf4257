// Package config loads server settings from a yaml file with flag
// overrides, generating and persisting the auth token on first run.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           int    `yaml:"port"`
	DownloaderPath string `yaml:"downloader_path"`
	SteamRoot      string `yaml:"steam_root"`
	DownloadRoot   string `yaml:"download_root"`
	JournalPath    string `yaml:"journal_path"`
	Token          string `yaml:"token"`
	Verbose        bool   `yaml:"verbose"`

	ConfigPath string `yaml:"-"`
	PrintToken bool   `yaml:"-"`
}

func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	cfg := &Config{
		Port:           8765,
		DownloaderPath: "depot-downloader",
		SteamRoot:      filepath.Join(homeDir, ".steam", "steam"),
		DownloadRoot:   filepath.Join(homeDir, "depotmate", "downloads"),
		JournalPath:    filepath.Join(homeDir, ".local", "share", "depotmate", "journal.db"),
		ConfigPath:     filepath.Join(homeDir, ".config", "depotmate", "config.yaml"),
	}

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load config file: %w", err)
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "server port (1-65535)")
	flag.StringVar(&cfg.DownloaderPath, "downloader", cfg.DownloaderPath, "path to the depot downloader binary")
	flag.StringVar(&cfg.SteamRoot, "steam-root", cfg.SteamRoot, "Steam installation root")
	flag.StringVar(&cfg.DownloadRoot, "download-root", cfg.DownloadRoot, "directory downloads are placed under")
	flag.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "path to the journal database")
	flag.StringVar(&cfg.Token, "token", cfg.Token, "authentication token (auto-generated if empty)")
	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "stream noise-class output lines to clients")
	flag.BoolVar(&cfg.PrintToken, "print-token", false, "print token to stdout (for local debugging)")
	flag.Parse()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("generate token: %w", err)
		}
		cfg.Token = token
		if err := cfg.saveToFile(); err != nil {
			return nil, fmt.Errorf("save config file: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}
	if c.DownloaderPath == "" {
		return fmt.Errorf("downloader path cannot be empty")
	}
	if c.DownloadRoot == "" {
		return fmt.Errorf("download root cannot be empty")
	}
	return nil
}

func (c *Config) loadFromFile() error {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", c.ConfigPath, err)
	}
	return nil
}

func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.ConfigPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.ConfigPath, data, 0o600)
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
