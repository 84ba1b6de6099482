// Package config loads moltdeck configuration from an optional YAML file.
//
// Configuration lives at ~/.config/moltdeck/config.yaml (respecting
// XDG_CONFIG_HOME). Every field has a working default, so a missing file is
// not an error: the dashboard starts with a local listener, the production
// Moltbook API, and a credentials store under the XDG data directory.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAddr binds to loopback only. moltdeck is a single-user tool
	// holding API credentials, so it must not listen on public interfaces
	// unless the operator explicitly asks for it.
	DefaultAddr = "127.0.0.1:8000"

	DefaultTemplateDir    = "web/templates"
	DefaultStaticDir      = "web/static"
	DefaultRequestTimeout = 10 * time.Second
	DefaultLogLevel       = "info"
)

// Config is the full moltdeck configuration tree.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Platform PlatformConfig `yaml:"platform"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the HTTP listener and asset locations.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	TemplateDir string `yaml:"template_dir"`
	StaticDir   string `yaml:"static_dir"`
}

// PlatformConfig holds settings for the remote Moltbook API. An empty
// BaseURL means the production endpoint.
type PlatformConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// StorageConfig holds the credential store location. An empty
// CredentialsFile means the default under the XDG data directory.
type StorageConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration so YAML configs can say "10s" or "1m30s"
// instead of nanosecond integers.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string such as "10s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        DefaultAddr,
			TemplateDir: DefaultTemplateDir,
			StaticDir:   DefaultStaticDir,
		},
		Platform: PlatformConfig{
			Timeout: Duration{DefaultRequestTimeout},
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load reads configuration from path, or from the default location when
// path is empty. A missing file yields the defaults; a file that exists but
// cannot be parsed is an error, never silently ignored.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	// Unmarshalling over the defaults keeps them for any field the file
	// leaves out.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// RequestTimeout returns the remote API timeout, falling back to the
// default when unset or nonsensical.
func (c *Config) RequestTimeout() time.Duration {
	if c.Platform.Timeout.Duration <= 0 {
		return DefaultRequestTimeout
	}
	return c.Platform.Timeout.Duration
}

// CredentialsPath resolves the credential store location, defaulting to
// $XDG_DATA_HOME/moltdeck/credentials.json.
func (c *Config) CredentialsPath() (string, error) {
	if c.Storage.CredentialsFile != "" {
		return ExpandPath(c.Storage.CredentialsFile)
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "credentials.json"), nil
}

// LogLevel parses the configured level name. Unknown names are an error so
// a typo in the config never silently drops log output.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.Log.Level)
	}
}

// DefaultConfigPath returns ~/.config/moltdeck/config.yaml, honouring
// XDG_CONFIG_HOME.
func DefaultConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "moltdeck", "config.yaml"), nil
}

// DataDir returns the moltdeck data directory, honouring XDG_DATA_HOME.
func DataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "moltdeck"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
