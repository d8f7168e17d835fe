// Package config loads codedrop settings from defaults, an optional YAML
// file, the environment and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/rescp17/codedrop/api"
	"github.com/rescp17/codedrop/pkg/transfer"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

const (
	EnvPrefix  = "CODEDROP"
	configName = "codedrop"
	appDirName = "codedrop"
)

// RelayConfig configures the relay subcommand.
type RelayConfig struct {
	Listen        string  `mapstructure:"listen"`
	Announce      bool    `mapstructure:"announce"`
	AllocateRate  float64 `mapstructure:"allocate_rate"` // allocations per second per client
	AllocateBurst int     `mapstructure:"allocate_burst"`
	TLSCert       string  `mapstructure:"tls_cert"`
	TLSKey        string  `mapstructure:"tls_key"`
}

// TLS reports whether the relay serves HTTPS.
func (r RelayConfig) TLS() bool {
	return r.TLSCert != "" && r.TLSKey != ""
}

// Config holds the application-level configuration.
type Config struct {
	Wormhole wormhole.Config `mapstructure:",squash"`

	Discover             bool   `mapstructure:"discover"`
	OutputDir            string `mapstructure:"output_dir"`
	HistoryPath          string `mapstructure:"history_path"`
	HistoryRetentionDays int    `mapstructure:"history_retention_days"`
	MaxReceiveSize       int64  `mapstructure:"max_receive_size"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	Relay RelayConfig `mapstructure:"relay"`
}

// Dir returns the per-user directory holding config, history and logs.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, appDirName)
}

// SetDefaults registers every key so that environment variables are picked
// up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	wh := wormhole.DefaultConfig()
	dir := Dir()

	v.SetDefault("app_id", wh.AppID)
	v.SetDefault("rendezvous_url", wh.RendezvousURL)
	v.SetDefault("transit_relay_url", "")
	v.SetDefault("code_length", wh.PassphraseComponents)
	v.SetDefault("disable_compression", false)

	v.SetDefault("discover", false)
	v.SetDefault("output_dir", ".")
	v.SetDefault("history_path", filepath.Join(dir, "history"))
	v.SetDefault("history_retention_days", 30)
	v.SetDefault("max_receive_size", int64(transfer.DefaultMaxReceiveSize))

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", filepath.Join(dir, "codedrop.log"))

	def := api.DefaultServerConfig()
	v.SetDefault("relay.listen", ":4000")
	v.SetDefault("relay.announce", false)
	v.SetDefault("relay.allocate_rate", float64(def.AllocateRate))
	v.SetDefault("relay.allocate_burst", def.AllocateBurst)
	v.SetDefault("relay.tls_cert", "")
	v.SetDefault("relay.tls_key", "")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file into v and decodes the result. An explicit
// file must exist; otherwise codedrop.yaml is looked up in the working and
// user config directories and may be absent.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		slog.Debug("No config file found, using defaults")
	} else {
		slog.Debug("Loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := c.Wormhole.Validate(); err != nil {
		return err
	}
	if c.MaxReceiveSize < 0 {
		return errors.New("max_receive_size cannot be negative")
	}
	if c.HistoryRetentionDays < 0 {
		return errors.New("history_retention_days cannot be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.Relay.AllocateRate <= 0 {
		return errors.New("relay.allocate_rate must be positive")
	}
	if c.Relay.AllocateBurst <= 0 {
		return errors.New("relay.allocate_burst must be positive")
	}
	if (c.Relay.TLSCert == "") != (c.Relay.TLSKey == "") {
		return errors.New("relay.tls_cert and relay.tls_key must be set together")
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Retention is how long history records are kept. Zero keeps them forever.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}

// ServerConfig builds the relay settings.
func (c *Config) ServerConfig() api.ServerConfig {
	cfg := api.DefaultServerConfig()
	cfg.AllocateRate = rate.Limit(c.Relay.AllocateRate)
	cfg.AllocateBurst = c.Relay.AllocateBurst
	return cfg
}
