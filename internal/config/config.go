// Package config loads and validates xllinks configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent is a browser user agent; some origins reject bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; WOW64; rv:77.0) Gecko/20100101 Firefox/77.0"

// Config captures all run configuration knobs loaded via Viper.
type Config struct {
	Probe   ProbeConfig   `mapstructure:"probe"`
	Store   StoreConfig   `mapstructure:"store"`
	Files   FilesConfig   `mapstructure:"files"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Mirror  MirrorConfig  `mapstructure:"mirror"`
}

// ProbeConfig controls the per-link HTTP fetch.
type ProbeConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	MaxBodyBytes   int     `mapstructure:"max_body_bytes"`
	RatePerHost    float64 `mapstructure:"rate_per_host"`
	BurstPerHost   int     `mapstructure:"burst_per_host"`
}

// StoreConfig governs the workbook result store.
type StoreConfig struct {
	FlushEvery int    `mapstructure:"flush_every"`
	Group      string `mapstructure:"group"`
}

// FilesConfig names the side files written next to the manifest.
type FilesConfig struct {
	OverflowName   string `mapstructure:"overflow_name"`
	CheckpointName string `mapstructure:"checkpoint_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the end-of-run Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// MirrorConfig enables copying recorded rows into Postgres.
type MirrorConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("XLLINKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("probe.timeout_seconds", 10)
	v.SetDefault("probe.user_agent", DefaultUserAgent)
	v.SetDefault("probe.max_body_bytes", 10*1024*1024)
	v.SetDefault("probe.rate_per_host", 0)
	v.SetDefault("probe.burst_per_host", 1)
	v.SetDefault("store.flush_every", 1000)
	v.SetDefault("store.group", "UNCLASSIFIED")
	v.SetDefault("files.overflow_name", "unprocessed.lnx")
	v.SetDefault("files.checkpoint_name", "stamp")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("mirror.dsn", "")
	v.SetDefault("mirror.table", "link_records")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Probe.TimeoutSeconds <= 0 {
		return fmt.Errorf("probe.timeout_seconds must be > 0")
	}
	if strings.TrimSpace(c.Probe.UserAgent) == "" {
		return fmt.Errorf("probe.user_agent must be set")
	}
	if c.Probe.MaxBodyBytes < 0 {
		return fmt.Errorf("probe.max_body_bytes must be >= 0")
	}
	if c.Probe.RatePerHost < 0 {
		return fmt.Errorf("probe.rate_per_host must be >= 0")
	}
	if c.Probe.BurstPerHost <= 0 {
		return fmt.Errorf("probe.burst_per_host must be > 0")
	}
	if c.Store.FlushEvery <= 0 {
		return fmt.Errorf("store.flush_every must be > 0")
	}
	if strings.TrimSpace(c.Store.Group) == "" {
		return fmt.Errorf("store.group must be set")
	}
	if c.Files.OverflowName == "" || strings.ContainsAny(c.Files.OverflowName, `/\`) {
		return fmt.Errorf("files.overflow_name must be a bare file name")
	}
	if c.Files.CheckpointName == "" || strings.ContainsAny(c.Files.CheckpointName, `/\`) {
		return fmt.Errorf("files.checkpoint_name must be a bare file name")
	}
	if c.Files.OverflowName == c.Files.CheckpointName {
		return fmt.Errorf("files.overflow_name and files.checkpoint_name must differ")
	}
	if c.Mirror.DSN != "" && c.Mirror.Table == "" {
		return fmt.Errorf("mirror.table must be set when mirror.dsn is set")
	}
	return nil
}

// ProbeTimeout converts the configured timeout into a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}
