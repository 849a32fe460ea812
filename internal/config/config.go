// Package config loads provider configuration from a TOML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/fruitsalade/syncroot/internal/syncroot"
)

// Platform names.
const (
	PlatformAuto     = "auto"
	PlatformCfAPI    = "cfapi"
	PlatformEmulated = "emulated"
)

// Config holds everything syncrootctl needs.
type Config struct {
	syncroot.ProviderOptions

	// Platform is auto, cfapi or emulated.
	Platform string `toml:"platform"`
	// StatePath is the emulated platform's registration database.
	StatePath string `toml:"state_path"`
	// ShimLibrary is the native DLL exporting RegisterSyncRoot.
	ShimLibrary string `toml:"shim_library"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// MetricsAddr is where `run` serves /metrics; empty disables it.
	MetricsAddr string `toml:"metrics_addr"`

	Retry RetryConfig `toml:"retry"`
}

// RetryConfig bounds caller-side retries of transient OS failures.
type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	InitialWait Duration `toml:"initial_wait"`
	MaxWait     Duration `toml:"max_wait"`
}

// Duration is a time.Duration written as "250ms" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with every default applied and no provider id.
func Default() *Config {
	return &Config{
		Platform:    PlatformAuto,
		StatePath:   filepath.Join(defaultStateDir(), "roots.db"),
		ShimLibrary: "SyncRootShim.dll",
		LogLevel:    "info",
		LogFormat:   "console",
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: Duration{100 * time.Millisecond},
			MaxWait:     Duration{5 * time.Second},
		},
	}
}

// Load applies defaults, then the TOML file at path (skipped when path is
// empty or missing), then environment overrides, and validates the result.
// A missing provider id fails here with syncroot.ErrMissingProviderID.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		default:
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				keys := make([]string, len(undecoded))
				for i, k := range undecoded {
					keys[i] = k.String()
				}
				sort.Strings(keys)
				return nil, fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks provider options and the remaining settings.
func (c *Config) Validate() error {
	if err := c.ProviderOptions.Validate(); err != nil {
		return err
	}
	switch c.Platform {
	case PlatformAuto, PlatformCfAPI, PlatformEmulated:
	default:
		return fmt.Errorf("platform %q: use auto, cfapi or emulated", c.Platform)
	}
	if c.ResolvedPlatform() == PlatformEmulated && c.StatePath == "" {
		return errors.New("state_path is required for the emulated platform")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// ResolvedPlatform maps auto to the platform for this OS.
func (c *Config) ResolvedPlatform() string {
	if c.Platform != PlatformAuto {
		return c.Platform
	}
	if runtime.GOOS == "windows" {
		return PlatformCfAPI
	}
	return PlatformEmulated
}

func applyEnv(cfg *Config) {
	cfg.ProviderID = envOr("SYNCROOT_PROVIDER_ID", cfg.ProviderID)
	cfg.Platform = envOr("SYNCROOT_PLATFORM", cfg.Platform)
	cfg.StatePath = envOr("SYNCROOT_STATE_PATH", cfg.StatePath)
	cfg.ShimLibrary = envOr("SYNCROOT_SHIM_LIBRARY", cfg.ShimLibrary)
	cfg.LogLevel = envOr("SYNCROOT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("SYNCROOT_LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsAddr = envOr("SYNCROOT_METRICS_ADDR", cfg.MetricsAddr)
	cfg.Retry.MaxAttempts = envInt("SYNCROOT_RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "syncroot")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".syncroot")
}
