// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is built once before
// any attempt starts and treated as read-only afterwards; components receive
// it (or a section of it) explicitly, never through package globals.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Scanner   ScannerConfig   `mapstructure:"scanner" yaml:"scanner"`
	Detector  DetectorConfig  `mapstructure:"detector" yaml:"detector"`
	Navigator NavigatorConfig `mapstructure:"navigator" yaml:"navigator"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	Args           []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth  int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	// NavigationTimeout bounds a full page load; shorter renderer calls use
	// Navigator.OpTimeout.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// SettleWait is the post-load quiet period before the first scan.
	SettleWait time.Duration `mapstructure:"settle_wait" yaml:"settle_wait"`
}

// ScannerConfig tunes the viewport sweep.
type ScannerConfig struct {
	// MaxScroll caps how far down a page the sweep goes, in pixels.
	MaxScroll int `mapstructure:"max_scroll" yaml:"max_scroll"`
	// StepSize is the scroll increment in the upper half of the page. The
	// sweep halves it below the midpoint, where careers links cluster.
	StepSize int `mapstructure:"step_size" yaml:"step_size"`
	// ScrollSettle is how long the sweep waits after each scroll before
	// querying elements.
	ScrollSettle time.Duration `mapstructure:"scroll_settle" yaml:"scroll_settle"`
}

// DetectorConfig carries the label vocabulary and the footer heuristic.
type DetectorConfig struct {
	// Vocabulary maps a normalized label phrase to its weight.
	Vocabulary map[string]float64 `mapstructure:"vocabulary" yaml:"vocabulary"`
	// FooterFraction is the fraction of total page height above which an
	// element counts as footer-region (e.g. 0.7 = bottom 30%).
	FooterFraction float64 `mapstructure:"footer_fraction" yaml:"footer_fraction"`
	// FooterBonus multiplies the vocabulary weight for footer-region
	// matches. A soft signal, never a filter.
	FooterBonus float64 `mapstructure:"footer_bonus" yaml:"footer_bonus"`
}

// NavigatorConfig tunes click delivery and destination classification.
type NavigatorConfig struct {
	// ClickRetries is the per-page budget of ranked candidates to try when
	// clicks fail.
	ClickRetries int `mapstructure:"click_retries" yaml:"click_retries"`
	// OpTimeout bounds each renderer round trip (scroll, query, click).
	OpTimeout time.Duration `mapstructure:"op_timeout" yaml:"op_timeout"`
	// StabilizeWindow is how long to poll for a URL change after a click.
	StabilizeWindow time.Duration `mapstructure:"stabilize_window" yaml:"stabilize_window"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// RedirectTraps lists domains known to divert navigation away from the
	// careers destination (consent walls, region pickers, login gates).
	RedirectTraps []string `mapstructure:"redirect_traps" yaml:"redirect_traps"`
	// CareerDomains maps a site's public domain to its separate careers
	// domain, used as a fallback candidate source when on-page detection
	// dead-ends (e.g. spotify.com -> lifeatspotify.com).
	CareerDomains map[string]string `mapstructure:"career_domains" yaml:"career_domains"`
}

// DiscoveryConfig bounds one attempt.
type DiscoveryConfig struct {
	MaxHops int `mapstructure:"max_hops" yaml:"max_hops"`
	// Concurrency is how many attempts (start URLs) run in parallel, each
	// with its own browser session.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// AttemptTimeout bounds one whole attempt.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" yaml:"attempt_timeout"`
	// MinPostingEntries is how many distinct job-posting-like entries a page
	// needs for the content half of the listing heuristic.
	MinPostingEntries int `mapstructure:"min_posting_entries" yaml:"min_posting_entries"`
	// SessionsPerSecond paces browser session creation across workers.
	SessionsPerSecond float64 `mapstructure:"sessions_per_second" yaml:"sessions_per_second"`
}

// OutputConfig names the training record sink.
type OutputConfig struct {
	// Path of the JSONL record file; empty or "stdout" writes to stdout.
	Path string `mapstructure:"path" yaml:"path"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "careerscout")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.settle_wait", "3s")

	// -- Scanner --
	v.SetDefault("scanner.max_scroll", 20000)
	v.SetDefault("scanner.step_size", 800)
	v.SetDefault("scanner.scroll_settle", "500ms")

	// -- Detector --
	// Weights come from field observation across corporate homepages; exact
	// label matches beat hedged phrasings.
	v.SetDefault("detector.vocabulary", map[string]float64{
		"careers":              1.0,
		"jobs":                 1.0,
		"career opportunities": 0.9,
		"open positions":       0.8,
		"vacancies":            0.7,
		"hiring":               0.6,
		"join us":              0.5,
		"work with us":         0.5,
		"employment":           0.5,
		"internships":          0.4,
	})
	v.SetDefault("detector.footer_fraction", 0.7)
	v.SetDefault("detector.footer_bonus", 1.25)

	// -- Navigator --
	v.SetDefault("navigator.click_retries", 3)
	v.SetDefault("navigator.op_timeout", "5s")
	v.SetDefault("navigator.stabilize_window", "3s")
	v.SetDefault("navigator.poll_interval", "250ms")
	v.SetDefault("navigator.redirect_traps", []string{})
	v.SetDefault("navigator.career_domains", map[string]string{})

	// -- Discovery --
	v.SetDefault("discovery.max_hops", 4)
	v.SetDefault("discovery.concurrency", 2)
	v.SetDefault("discovery.attempt_timeout", "5m")
	v.SetDefault("discovery.min_posting_entries", 3)
	v.SetDefault("discovery.sessions_per_second", 1.0)

	// -- Output --
	v.SetDefault("output.path", "records.jsonl")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Scanner.StepSize <= 0 {
		return fmt.Errorf("scanner.step_size must be a positive pixel count")
	}
	if c.Scanner.MaxScroll < 0 {
		return fmt.Errorf("scanner.max_scroll must not be negative")
	}
	if len(c.Detector.Vocabulary) == 0 {
		return fmt.Errorf("detector.vocabulary must not be empty")
	}
	for label, weight := range c.Detector.Vocabulary {
		if weight <= 0 {
			return fmt.Errorf("detector.vocabulary[%q] weight must be positive", label)
		}
	}
	if c.Detector.FooterFraction <= 0 || c.Detector.FooterFraction >= 1 {
		return fmt.Errorf("detector.footer_fraction must be in (0, 1)")
	}
	if c.Detector.FooterBonus < 1 {
		return fmt.Errorf("detector.footer_bonus must be >= 1")
	}
	if c.Navigator.ClickRetries < 1 {
		return fmt.Errorf("navigator.click_retries must be at least 1")
	}
	if c.Discovery.MaxHops < 0 {
		return fmt.Errorf("discovery.max_hops must not be negative")
	}
	if c.Discovery.Concurrency <= 0 {
		return fmt.Errorf("discovery.concurrency must be a positive integer")
	}
	return nil
}
