package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Player   PlayerConfig   `toml:"player"`
	Batch    BatchConfig    `toml:"batch"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig points the client at the music library server.
type ServerConfig struct {
	URL            string `toml:"url"`
	APIPrefix      string `toml:"api_prefix"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PlayerConfig contains playback defaults and the load/retry policy.
type PlayerConfig struct {
	Volume              int    `toml:"volume"`
	Repeat              string `toml:"repeat"`
	Shuffle             bool   `toml:"shuffle"`
	LoadTimeoutSeconds  int    `toml:"load_timeout_seconds"`
	MaxRetry            int    `toml:"max_retry"`
	RetryBackoffSeconds int    `toml:"retry_backoff_seconds"`
	PlaylistLimit       int    `toml:"playlist_limit"`
}

// BatchConfig controls status polling for batch jobs and scans.
type BatchConfig struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	RefreshDelaySeconds int `toml:"refresh_delay_seconds"`
	MaxPollFailures     int `toml:"max_poll_failures"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings. An empty File logs to stderr.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// APIBaseURL joins the server URL and API prefix.
func (c ServerConfig) APIBaseURL() string {
	return strings.TrimRight(c.URL, "/") + "/" + strings.Trim(c.APIPrefix, "/")
}

// Timeout returns the HTTP client timeout.
func (c ServerConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

// LoadTimeout returns how long a track may take to become playable.
func (c PlayerConfig) LoadTimeout() time.Duration {
	return seconds(c.LoadTimeoutSeconds)
}

// RetryBackoff returns the minimum delay between a playback error and a retry.
func (c PlayerConfig) RetryBackoff() time.Duration {
	return seconds(c.RetryBackoffSeconds)
}

// PollInterval returns the status polling period.
func (c BatchConfig) PollInterval() time.Duration {
	return seconds(c.PollIntervalSeconds)
}

// RefreshDelay returns the wait between job completion and the dependent view refresh.
func (c BatchConfig) RefreshDelay() time.Duration {
	return seconds(c.RefreshDelaySeconds)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidConfig)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides config values from MTX_* environment variables.
//
// Call after godotenv has loaded any .env file so both sources are honoured.
func ApplyEnv(c *Config) {
	if v := os.Getenv("MTX_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("MTX_DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("MTX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MTX_LOG_FILE"); v != "" {
		c.Log.File = v
	}
}

// Validate reports configuration values the client cannot work with.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("%w: server.url is empty", ErrInvalidConfig)
	}
	if c.Player.Volume < 0 || c.Player.Volume > 100 {
		return fmt.Errorf("%w: player.volume must be within 0..100, got %d", ErrInvalidConfig, c.Player.Volume)
	}
	if c.Batch.PollIntervalSeconds <= 0 {
		return fmt.Errorf("%w: batch.poll_interval_seconds must be positive", ErrInvalidConfig)
	}
	return nil
}
