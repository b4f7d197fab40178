package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for prosodyweb.
type Config struct {
	ListenAddr   string `toml:"listen_addr"`
	DatabasePath string `toml:"database_path"`
	// ProsodyDomain is the XMPP host rows are written under when the
	// caller does not name one. It must match the VirtualHost the chat
	// server is serving.
	ProsodyDomain      string `toml:"prosody_domain"`
	SessionMaxAgeHours int    `toml:"session_max_age_hours"`
	LogLevel           string `toml:"log_level"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		ListenAddr:         ":8080",
		DatabasePath:       "./data/prosodyweb.db",
		ProsodyDomain:      "localhost",
		SessionMaxAgeHours: 24,
		LogLevel:           "info",
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Load reads the file at path, falling back to defaults when the file
// does not exist.
func (m *Manager) Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	return m.Read(f)
}
