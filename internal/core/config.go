package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "http://localhost:3000"
	DefaultOutput  = "test_results.json"
)

// Config is the charcheck configuration file.
type Config struct {
	BaseURL        string `yaml:"base_url"`
	Output         string `yaml:"output"`
	HistoryDB      string `yaml:"history_db"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Delays         struct {
		FollowUpMS          int `yaml:"follow_up_ms"`
		BetweenCharactersMS int `yaml:"between_characters_ms"`
	} `yaml:"delays"`
	Generation struct {
		MaxTokens         int     `yaml:"max_tokens"`
		FollowUpMaxTokens int     `yaml:"follow_up_max_tokens"`
		Temperature       float64 `yaml:"temperature"`
	} `yaml:"generation"`
	// Messages overrides the opening message sent to individual characters.
	Messages  map[string]string `yaml:"messages"`
	Telemetry struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"telemetry"`

	// Token is never read from YAML; see LoadSecretsEnv.
	Token string `yaml:"-"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	var cfg Config
	cfg.BaseURL = DefaultBaseURL
	cfg.Output = DefaultOutput
	cfg.HistoryDB = filepath.Join(dataHome(), "charcheck", "runs.db")
	cfg.TimeoutSeconds = 60
	cfg.Delays.FollowUpMS = 1000
	cfg.Delays.BetweenCharactersMS = 1000
	cfg.Generation.MaxTokens = 500
	cfg.Generation.FollowUpMaxTokens = 300
	cfg.Generation.Temperature = 0.7
	return cfg
}

// Timeout is the per-request HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FollowUpDelay is the pause before a memory follow-up request.
func (c Config) FollowUpDelay() time.Duration {
	return time.Duration(c.Delays.FollowUpMS) * time.Millisecond
}

// BetweenCharactersDelay is the pause after each character's checks.
func (c Config) BetweenCharactersDelay() time.Duration {
	return time.Duration(c.Delays.BetweenCharactersMS) * time.Millisecond
}

// Validate rejects values the suite cannot run with.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if c.Output == "" {
		return errors.New("output is required")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	if c.Delays.FollowUpMS < 0 || c.Delays.BetweenCharactersMS < 0 {
		return errors.New("delays must not be negative")
	}
	if c.Generation.MaxTokens <= 0 || c.Generation.FollowUpMaxTokens <= 0 {
		return errors.New("generation token limits must be positive")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 1 {
		return fmt.Errorf("generation temperature must be within [0,1], got %v", c.Generation.Temperature)
	}
	return nil
}

// DefaultConfigPath resolves $XDG_CONFIG_HOME/charcheck/config.yaml or
// ~/.config/charcheck/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configHome(), "charcheck", "config.yaml")
}

// LoadConfig reads YAML configuration from path on top of DefaultConfig.
// If path is empty the default location is used and a missing file is not
// an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("open config: %w", err)
	}

	// Keep tokens out of YAML: secrets.env next to the config, then the environment.
	secrets, err := LoadSecretsEnv(filepath.Join(filepath.Dir(path), "secrets.env"))
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv(TokenEnv); v != "" {
		secrets[TokenEnv] = v
	}
	cfg.Token = secrets[TokenEnv]
	return cfg, nil
}

func configHome() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return base
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

func dataHome() string {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return base
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}
