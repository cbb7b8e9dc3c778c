package reflex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// SanityPolicy decides what happens when a startup sanity check, such as
// the client version check, fails.
type SanityPolicy string

const (
	// SanityExit logs the failure and terminates the process.
	SanityExit SanityPolicy = "exit"

	// SanityWarn logs the failure and keeps running.
	SanityWarn SanityPolicy = "warn"

	// SanityIgnore keeps running without logging.
	SanityIgnore SanityPolicy = "ignore"
)

// DefaultConfigPath is where LoadConfig looks when no path is given.
const DefaultConfigPath = "config/reflex.yaml"

// envPrefix prefixes every environment override, e.g.
// REFLEX_ON_FAILED_SANITY_CHECKS.
const envPrefix = "REFLEX"

// Config is the process-wide dispatch configuration. It is read once at
// startup and must not change while dispatches are running.
type Config struct {
	OnFailedSanityChecks SanityPolicy  `yaml:"on_failed_sanity_checks" envconfig:"ON_FAILED_SANITY_CHECKS"`
	Development          bool          `yaml:"development" envconfig:"DEVELOPMENT"`
	ChannelName          string        `yaml:"channel_name" envconfig:"CHANNEL_NAME"`
	Logging              bool          `yaml:"logging" envconfig:"LOGGING"`
	LogLevel             string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
	SessionTTL           time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`

	// Version is the installed server version. Clients must report the
	// same version.
	Version string `yaml:"-" ignored:"true"`

	// ConfigPath is the file the configuration was loaded from. Used in
	// operator diagnostics only.
	ConfigPath string `yaml:"-" ignored:"true"`

	Logger logrus.FieldLogger `yaml:"-" ignored:"true"`

	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int) `yaml:"-" ignored:"true"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		OnFailedSanityChecks: SanityExit,
		ChannelName:          "ReflexChannel",
		Logging:              true,
		LogLevel:             "info",
		SessionTTL:           24 * time.Hour,
		Version:              Version,
		ConfigPath:           DefaultConfigPath,
	}
}

// LoadConfig reads the YAML file at path, if it exists, then applies
// REFLEX_* environment overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath
	}
	cfg.ConfigPath = path

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the dispatcher cannot use.
func (c Config) Validate() error {
	switch c.OnFailedSanityChecks {
	case SanityExit, SanityWarn, SanityIgnore:
	default:
		return fmt.Errorf("invalid on_failed_sanity_checks %q: must be one of exit, warn, ignore", c.OnFailedSanityChecks)
	}
	if c.ChannelName == "" {
		return errors.New("channel_name must not be empty")
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level: %w", err)
		}
	}
	if c.SessionTTL < 0 {
		return errors.New("session_ttl must not be negative")
	}
	return nil
}

// NewLogger returns a logrus logger at the configured level.
func (c Config) NewLogger() *logrus.Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

// withDefaults fills in the process collaborators left unset.
func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.Exit == nil {
		c.Exit = os.Exit
	}
	if c.Version == "" {
		c.Version = Version
	}
	if c.ConfigPath == "" {
		c.ConfigPath = DefaultConfigPath
	}
	if c.OnFailedSanityChecks == "" {
		c.OnFailedSanityChecks = SanityExit
	}
	return c
}

// WriteDefaultConfig writes the default configuration to path. It refuses
// to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	raw, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
