// The application's root configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	mu       sync.RWMutex
)

// DefaultPatienceMs is the bounded wait applied when none is configured.
const DefaultPatienceMs = 1000

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Driver  DriverConfig  `mapstructure:"driver"`
	Browser BrowserConfig `mapstructure:"browser"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" json:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" json:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// DriverConfig holds the settings of a single driver instance.
type DriverConfig struct {
	// Endpoint locates a running automation backend (ws:// or http:// DevTools
	// address). When empty a local browser is launched.
	Endpoint string `mapstructure:"endpoint"`
	// PatienceMs bounds every state-change verification.
	PatienceMs     int           `mapstructure:"patience_ms"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// Patience returns PatienceMs as a duration.
func (d DriverConfig) Patience() time.Duration {
	return time.Duration(d.PatienceMs) * time.Millisecond
}

// BrowserConfig holds settings for a locally launched browser.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors"`
	ExecPath        string   `mapstructure:"exec_path"`
	Args            []string `mapstructure:"args"`
	WindowWidth     int      `mapstructure:"window_width"`
	WindowHeight    int      `mapstructure:"window_height"`
	Debug           bool     `mapstructure:"debug"`
}

// MetricsConfig controls the prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// SetDefaults registers default values so the app runs with a minimal config.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "ariadriver")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("driver.endpoint", "")
	v.SetDefault("driver.patience_ms", DefaultPatienceMs)
	v.SetDefault("driver.poll_interval", 25*time.Millisecond)
	v.SetDefault("driver.command_timeout", 10*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 800)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9464")
}

// NewDefaultConfig returns a configuration populated with the defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshalling plain defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks the configuration for values the driver cannot honour.
func (c *Config) Validate() error {
	var errs []error
	if c.Driver.PatienceMs < 0 {
		errs = append(errs, errors.New("driver.patience_ms must not be negative"))
	}
	if c.Driver.PollInterval <= 0 {
		errs = append(errs, errors.New("driver.poll_interval must be positive"))
	}
	if c.Driver.CommandTimeout < 0 {
		errs = append(errs, errors.New("driver.command_timeout must not be negative"))
	}
	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
			errs = append(errs, fmt.Errorf("metrics.address is invalid: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Load unmarshals and validates the configuration held by v and installs it
// as the global instance. An invalid configuration is returned alongside the
// error so callers can still honour its logger settings, but it is not
// installed. Every call reloads, so one process may run several commands.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return &cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	Set(&cfg)
	return &cfg, nil
}

// Set stores cfg as the global instance.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
