package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML (or YAML) file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials" yaml:"credentials"`
	Database    DatabaseConfig    `toml:"database" yaml:"database"`
	Server      ServerConfig      `toml:"server" yaml:"server"`
	Library     LibraryConfig     `toml:"library" yaml:"library"`
	Sync        SyncConfig        `toml:"sync" yaml:"sync"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify" yaml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube" yaml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials for the client-credentials flow.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" yaml:"client_id"`
	ClientSecret string `toml:"client_secret" yaml:"client_secret"`
}

// YouTubeConfig points at the YouTube Music proxy.
type YouTubeConfig struct {
	ProxyURL string `toml:"proxy_url" yaml:"proxy_url"`
	AuthFile string `toml:"auth_file" yaml:"auth_file"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" yaml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns" yaml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host" yaml:"host"`
	Port int    `toml:"port" yaml:"port"`
}

// LibraryConfig locates the root folder holding playlist folders.
type LibraryConfig struct {
	Root string `toml:"root" yaml:"root"`
}

// SyncConfig tunes resolver, fetch pool and commit behavior.
type SyncConfig struct {
	Concurrency         int     `toml:"concurrency" yaml:"concurrency"`
	MaxAttempts         int     `toml:"max_attempts" yaml:"max_attempts"`
	InitialBackoffMS    int     `toml:"initial_backoff_ms" yaml:"initial_backoff_ms"`
	MaxBackoffMS        int     `toml:"max_backoff_ms" yaml:"max_backoff_ms"`
	RateLimit           float64 `toml:"rate_limit" yaml:"rate_limit"`
	MaxCandidates       int     `toml:"max_candidates" yaml:"max_candidates"`
	AcceptanceThreshold float64 `toml:"acceptance_threshold" yaml:"acceptance_threshold"`
	DurationTolerance   float64 `toml:"duration_tolerance" yaml:"duration_tolerance"`
	CommitRetries       int     `toml:"commit_retries" yaml:"commit_retries"`
	AudioFormat         string  `toml:"audio_format" yaml:"audio_format"`
	AudioQuality        string  `toml:"audio_quality" yaml:"audio_quality"`
	DownloadCovers      bool    `toml:"download_covers" yaml:"download_covers"`
}

// LogConfig sets the logger level.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// InitialBackoff returns the configured first retry delay.
func (s SyncConfig) InitialBackoff() time.Duration {
	return time.Duration(s.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the configured retry delay cap.
func (s SyncConfig) MaxBackoff() time.Duration {
	return time.Duration(s.MaxBackoffMS) * time.Millisecond
}

// LoadConfig reads and parses a configuration file from the specified path.
//
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
// Values absent from the file keep their defaults from [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	if config.Library.Root == "" {
		config.Library.Root = DefaultLibraryRoot()
	}
	return &config
}

// DefaultLibraryRoot returns <user music dir>/Playlists.
func DefaultLibraryRoot() string {
	return filepath.Join(xdg.UserDirs.Music, "Playlists")
}

// Validate rejects values the sync engine cannot run with.
func (c *Config) Validate() error {
	s := c.Sync
	switch {
	case s.Concurrency < 1:
		return fmt.Errorf("%w: sync.concurrency must be at least 1", ErrInvalidConfig)
	case s.MaxAttempts < 1:
		return fmt.Errorf("%w: sync.max_attempts must be at least 1", ErrInvalidConfig)
	case s.MaxCandidates < 1:
		return fmt.Errorf("%w: sync.max_candidates must be at least 1", ErrInvalidConfig)
	case s.AcceptanceThreshold < 0 || s.AcceptanceThreshold > 1:
		return fmt.Errorf("%w: sync.acceptance_threshold must be within [0,1]", ErrInvalidConfig)
	case s.DurationTolerance < 0:
		return fmt.Errorf("%w: sync.duration_tolerance must not be negative", ErrInvalidConfig)
	case s.CommitRetries < 0:
		return fmt.Errorf("%w: sync.commit_retries must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
