package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application settings.
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	DB      DBConfig      `yaml:"db" json:"db"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Sphere  SphereConfig  `yaml:"sphere" json:"sphere"`
	Auth    AuthConfig    `yaml:"auth" json:"-"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// DBConfig configures the SQLite database.
type DBConfig struct {
	Path string `yaml:"path" json:"path"`
}

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	Backend string `yaml:"backend" json:"backend"` // local | remote
	Bucket  string `yaml:"bucket" json:"bucket"`

	// local backend
	Dir       string `yaml:"dir" json:"dir"`
	PublicURL string `yaml:"public_url" json:"public_url"` // base URL objects are served from

	// remote backend (Supabase-compatible storage API)
	URL    string `yaml:"url" json:"url"`
	APIKey string `yaml:"api_key" json:"-"`

	ListCacheTTL string `yaml:"list_cache_ttl" json:"list_cache_ttl"`
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
}

// SphereConfig configures the visualization.
type SphereConfig struct {
	Radius float64 `yaml:"radius" json:"radius"`
	Width  int     `yaml:"width" json:"width"`
	Height int     `yaml:"height" json:"height"`

	// MaxPoints caps the n accepted by GET /api/sphere.
	MaxPoints int `yaml:"max_points" json:"max_points"`
}

// AuthConfig configures the admin boundary.
type AuthConfig struct {
	AdminPassword string `yaml:"admin_password"`
	SessionTTL    string `yaml:"session_ttl"`
}

// LoggingConfig configures the logger package.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: "127.0.0.1:13370"},
		DB:     DBConfig{Path: "sphere.db"},
		Storage: StorageConfig{
			Backend:      "local",
			Bucket:       "images",
			Dir:          filepath.Join("data", "images"),
			PublicURL:    "http://127.0.0.1:13370/files",
			ListCacheTTL: "30s",
			PollInterval: "1m",
		},
		Sphere: SphereConfig{
			Radius:    2,
			Width:     800,
			Height:    600,
			MaxPoints: 10000,
		},
		Auth: AuthConfig{SessionTTL: "24h"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults and applies env overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SPHERE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SPHERE_DB"); v != "" {
		c.DB.Path = v
	}
	if v := os.Getenv("SPHERE_ADMIN_PASSWORD"); v != "" {
		c.Auth.AdminPassword = v
	}
	if v := os.Getenv("SPHERE_STORAGE_URL"); v != "" {
		c.Storage.URL = v
		c.Storage.Backend = "remote"
	}
	if v := os.Getenv("SPHERE_STORAGE_KEY"); v != "" {
		c.Storage.APIKey = v
	}
	if v := os.Getenv("SPHERE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if strings.TrimSpace(c.DB.Path) == "" {
		return fmt.Errorf("db.path is required")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the local backend")
		}
	case "remote":
		if c.Storage.URL == "" {
			return fmt.Errorf("storage.url is required for the remote backend")
		}
	default:
		return fmt.Errorf("storage.backend %q: want local or remote", c.Storage.Backend)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if !(c.Sphere.Radius > 0) {
		return fmt.Errorf("sphere.radius must be positive, got %v", c.Sphere.Radius)
	}
	if c.Sphere.Width <= 0 || c.Sphere.Height <= 0 {
		return fmt.Errorf("sphere.width and sphere.height must be positive")
	}
	if c.Sphere.MaxPoints <= 0 {
		return fmt.Errorf("sphere.max_points must be positive")
	}
	return nil
}

// GetSessionTTL returns the admin session lifetime.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Auth.SessionTTL, 24*time.Hour)
}

// GetListCacheTTL returns how long a bucket listing is reused.
func (c *Config) GetListCacheTTL() time.Duration {
	return parseDuration(c.Storage.ListCacheTTL, 30*time.Second)
}

// GetPollInterval returns the refresh period for remote buckets.
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.Storage.PollInterval, time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
