// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Supported browser backends.
const (
	BackendCDP        = "cdp"
	BackendPlaywright = "playwright"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Runner    RunnerConfig    `mapstructure:"runner" yaml:"runner"`
	Target    TargetConfig    `mapstructure:"target" yaml:"target"`
	Report    ReportConfig    `mapstructure:"report" yaml:"report"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the browser sessions the runner drives.
type BrowserConfig struct {
	Backend         string   `mapstructure:"backend" yaml:"backend"`
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string `mapstructure:"args" yaml:"args"`
	ViewportWidth   int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight  int      `mapstructure:"viewport_height" yaml:"viewport_height"`
	// SlowMo delays every playwright operation; ignored by the cdp backend.
	SlowMo            time.Duration `mapstructure:"slow_mo" yaml:"slow_mo"`
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// LaunchRate caps how many sessions are opened per second. Zero disables pacing.
	LaunchRate float64 `mapstructure:"launch_rate" yaml:"launch_rate"`
}

// RunnerConfig tunes the scenario runner's wait policy.
type RunnerConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`
}

// TargetConfig describes the application under test.
type TargetConfig struct {
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	AdminEmail    string `mapstructure:"admin_email" yaml:"admin_email"`
	AdminPassword string `mapstructure:"admin_password" yaml:"admin_password"`
	// LogDate is the yyyy-mm-dd page the daily-log journey writes to. Empty means today.
	LogDate string `mapstructure:"log_date" yaml:"log_date"`
}

// ReportConfig selects how run reports are rendered.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
	Theme  string `mapstructure:"theme" yaml:"theme"`
}

// ArtifactsConfig controls failure screenshots.
type ArtifactsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "walkthrough")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.backend", BackendCDP)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.slow_mo", "0s")
	v.SetDefault("browser.launch_timeout", "60s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.launch_rate", 2.0)

	// -- Runner --
	v.SetDefault("runner.default_timeout", "5s")
	v.SetDefault("runner.poll_interval", "250ms")
	v.SetDefault("runner.concurrency", 1)

	// -- Target --
	v.SetDefault("target.base_url", "http://localhost:3000")
	v.SetDefault("target.admin_email", "alex@example.com")
	v.SetDefault("target.admin_password", "")
	v.SetDefault("target.log_date", "")

	// -- Report --
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "stdout")
	v.SetDefault("report.theme", "mono")

	// -- Artifacts --
	v.SetDefault("artifacts.enabled", true)
	v.SetDefault("artifacts.dir", "./test-results/screenshots")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The admin password never belongs in a committed config file.
	_ = v.BindEnv("target.admin_password", "WALKTHROUGH_ADMIN_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading "~" in every filesystem path setting.
func (c *Config) expandPaths() error {
	paths := map[string]*string{
		"logger.log_file":   &c.Logger.LogFile,
		"artifacts.dir":     &c.Artifacts.Dir,
		"browser.exec_path": &c.Browser.ExecPath,
	}
	if c.Report.Output != "stdout" {
		paths["report.output"] = &c.Report.Output
	}
	for key, p := range paths {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand %s %q: %w", key, *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Browser.Backend) {
	case BackendCDP, BackendPlaywright:
	default:
		return fmt.Errorf("browser.backend must be %q or %q, got %q", BackendCDP, BackendPlaywright, c.Browser.Backend)
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("browser.action_timeout must be a positive duration")
	}
	if c.Browser.LaunchRate < 0 {
		return fmt.Errorf("browser.launch_rate must not be negative")
	}
	if err := c.Runner.Validate(); err != nil {
		return fmt.Errorf("runner configuration invalid: %w", err)
	}
	if c.Target.BaseURL == "" {
		return fmt.Errorf("target.base_url is a required configuration field")
	}
	if c.Target.LogDate != "" {
		if _, err := time.Parse("2006-01-02", c.Target.LogDate); err != nil {
			return fmt.Errorf("target.log_date must be formatted as yyyy-mm-dd: %w", err)
		}
	}
	switch c.Report.Format {
	case "text", "json", "sarif":
	default:
		return fmt.Errorf("unsupported report.format: %s", c.Report.Format)
	}
	if c.Artifacts.Enabled && c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir is required when artifacts are enabled")
	}
	return nil
}

// Validate checks the RunnerConfig settings.
func (r *RunnerConfig) Validate() error {
	if r.DefaultTimeout <= 0 {
		return fmt.Errorf("default_timeout must be a positive duration")
	}
	if r.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if r.PollInterval > r.DefaultTimeout {
		return fmt.Errorf("poll_interval (%s) must not exceed default_timeout (%s)", r.PollInterval, r.DefaultTimeout)
	}
	if r.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be a positive integer")
	}
	return nil
}
