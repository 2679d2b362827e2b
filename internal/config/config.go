package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"keepsake/internal/logging"

	"github.com/BurntSushi/toml"
)

// Supported storage backends.
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	Store StoreConfig `toml:"store"`
	Log   LogConfig   `toml:"log"`
}

type StoreConfig struct {
	Backend string `toml:"backend"`
	DataDir string `toml:"data_dir"`
	File    string `toml:"file"` // relative to DataDir unless absolute
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendBolt,
			DataDir: "~/.keepsake",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML config file and returns the parsed Config.
// If path is empty, ~/.keepsake/config.toml is used when it exists and
// defaults are returned otherwise.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = expandHome("~/.keepsake/config.toml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing config: unknown key %q", undecoded[0].String())
	}

	return cfg, nil
}

// Validate checks field values that Load cannot reject on its own.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendBolt, BackendSQLite:
		if strings.TrimSpace(c.Store.DataDir) == "" {
			return fmt.Errorf("store.data_dir is required for backend %q", c.Store.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	if !logging.ValidLevel(c.Log.Level) {
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// DBPath returns the database file for the configured backend, with a
// leading ~/ expanded. It is empty for the memory backend.
func (s StoreConfig) DBPath() string {
	if s.Backend == BackendMemory {
		return ""
	}
	file := s.File
	if file == "" {
		file = "keepsake.db"
		if s.Backend == BackendSQLite {
			file = "keepsake.sqlite"
		}
	}
	file = expandHome(file)
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(expandHome(s.DataDir), file)
}

// ExpandHome resolves a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	return expandHome(path)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
