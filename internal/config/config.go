package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// SupabaseConfig points at the PostgREST endpoint of the backing store.
type SupabaseConfig struct {
	// URL is the project base URL, e.g. "https://xyz.supabase.co".
	URL string `yaml:"url" json:"url" validate:"omitempty,url"`
	// AnonKey is sent as the apikey header on every request.
	AnonKey string `yaml:"anon_key" json:"-"`
	// AccessToken is the signed-in viewer's session JWT. Empty means the
	// board runs anonymously (read-only).
	AccessToken string `yaml:"access_token" json:"-"`
	// JWTSecret, when set, is used to verify AccessToken instead of only
	// decoding its claims.
	JWTSecret string `yaml:"jwt_secret,omitempty" json:"-"`
	// Timeout bounds a single REST call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// SavedConfig selects where the saved-event set is persisted.
type SavedConfig struct {
	// Path is the JSON file used when RedisAddr is empty.
	Path string `yaml:"path" json:"path"`
	// RedisAddr, if set, stores the set in Redis instead of a file.
	RedisAddr     string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty" json:"-"`
	RedisDB       int    `yaml:"redis_db,omitempty" json:"redis_db,omitempty" validate:"gte=0"`
	// Key namespaces the Redis set.
	Key string `yaml:"key" json:"key"`
}

// FeedConfig describes the external public-safety feed.
type FeedConfig struct {
	URL string `yaml:"url" json:"url" validate:"required,url"`
	// BaseURL resolves relative item links.
	BaseURL string `yaml:"base_url" json:"base_url" validate:"omitempty,url"`
	// Proxy is a fmt template with a single %s receiving the escaped feed URL.
	Proxy   string        `yaml:"proxy" json:"proxy"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the board UI.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// Timezone is the IANA timezone used for calendar-day semantics.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required"`

	// RefreshCron is the cron schedule for re-polling the store.
	RefreshCron string `yaml:"refresh" json:"refresh" validate:"required"`

	LogLevel string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`

	Supabase SupabaseConfig `yaml:"supabase" json:"supabase"`
	Saved    SavedConfig    `yaml:"saved" json:"saved"`
	Feed     FeedConfig     `yaml:"feed" json:"feed"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Stockholm",
		RefreshCron: "*/5 * * * *",
		LogLevel:    "info",
		Supabase: SupabaseConfig{
			Timeout: 15 * time.Second,
		},
		Saved: SavedConfig{
			Path: "./var/saved.json",
			Key:  "evboard:saved",
		},
		Feed: FeedConfig{
			URL:     "https://polisen.se/api/events",
			BaseURL: "https://polisen.se",
			Proxy:   "https://corsproxy.io/?url=%s",
			Timeout: 15 * time.Second,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.Supabase.URL = strings.TrimRight(strings.TrimSpace(c.Supabase.URL), "/")
	if c.Supabase.Timeout <= 0 {
		c.Supabase.Timeout = def.Supabase.Timeout
	}
	if c.Saved.Path == "" {
		c.Saved.Path = def.Saved.Path
	}
	if c.Saved.Key == "" {
		c.Saved.Key = def.Saved.Key
	}
	if c.Feed.URL == "" {
		c.Feed.URL = def.Feed.URL
	}
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = def.Feed.BaseURL
	}
	if c.Feed.Timeout <= 0 {
		c.Feed.Timeout = def.Feed.Timeout
	}
	// An empty proxy is allowed and disables the fallback route.
}

// ApplyEnv overrides secrets and deployment values from the environment.
// A .env file in the working directory is loaded first when present.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("SUPABASE_URL"); v != "" {
		c.Supabase.URL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("SUPABASE_ANON_KEY"); v != "" {
		c.Supabase.AnonKey = v
	}
	if v := os.Getenv("SUPABASE_JWT_SECRET"); v != "" {
		c.Supabase.JWTSecret = v
	}
	if v := os.Getenv("EVBOARD_ACCESS_TOKEN"); v != "" {
		c.Supabase.AccessToken = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Saved.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Saved.RedisPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

var validate = validator.New()

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Feed.Proxy != "" && strings.Count(c.Feed.Proxy, "%s") != 1 {
		return fmt.Errorf("config: feed.proxy must contain exactly one %%s")
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist a default config is written with 0600
//     perms and returned.
//   - If the file exists it is unmarshalled and normalized.
//
// Environment overrides are not applied here; callers run ApplyEnv so that
// secrets never end up in the file written on first run.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".evboard-config-*.tmp")
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data next to path and renames it into place.
// The parent directory is created with 0700.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
