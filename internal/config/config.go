package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.roomsync/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	// XMPP addressing. Conference domain is appended to default room
	// handles to form full room JIDs.
	ServiceDomain    string `toml:"service_domain"`
	ConferenceDomain string `toml:"conference_domain"`

	// Rooms subscribed to on every connect, by bare handle.
	DefaultRooms []string `toml:"default_rooms"`

	// Profile defaults published when the server returns an empty vCard.
	DisplayName string `toml:"display_name"`
	AvatarURL   string `toml:"avatar_url"`

	// Address for the /metrics endpoint. Empty disables the listener.
	MetricsAddr string `toml:"metrics_addr"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
