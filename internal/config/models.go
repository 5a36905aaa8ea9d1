package config

import (
	"fmt"
	"net"
	"slices"
	"time"

	"github.com/muurk/ccufind/internal/discovery"
)

// CurrentVersion is the only config file version this build understands
const CurrentVersion = 1

// Output formats accepted by the scan command
const (
	FormatDetailed = "detailed"
	FormatCompact  = "compact"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// OutputFormats lists the valid output formats
var OutputFormats = []string{FormatDetailed, FormatCompact, FormatJSON, FormatYAML}

// Config represents the entire user configuration file.
type Config struct {
	Version   int                `yaml:"version"`
	Discovery *DiscoverySettings `yaml:"discovery,omitempty"`
	Output    *OutputSettings    `yaml:"output,omitempty"`
}

// DiscoverySettings holds the discovery tuning stored in the file.
// Durations are plain milliseconds so the file stays hand-editable.
type DiscoverySettings struct {
	TimeoutMs     int      `yaml:"timeout_ms"`           // Per send/receive timeout
	RetryCount    int      `yaml:"retry_count"`          // Probes per interface
	TTL           int      `yaml:"ttl"`                  // Multicast TTL, 0 selects the default
	ResendDelayMs int      `yaml:"resend_delay_ms"`      // Pause between probes
	MaxParallel   int      `yaml:"max_parallel"`         // Concurrent sessions, 0 is unbounded
	LocalIP       string   `yaml:"local_ip"`             // Membership address, empty for per-interface
	Interfaces    []string `yaml:"interfaces,omitempty"` // Interface allowlist, empty for all
}

// OutputSettings holds presentation preferences
type OutputSettings struct {
	Format string `yaml:"format"` // detailed, compact, json or yaml
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version:   CurrentVersion,
		Discovery: defaultDiscovery(),
		Output:    defaultOutput(),
	}
}

func defaultDiscovery() *DiscoverySettings {
	return &DiscoverySettings{
		TimeoutMs:     int(discovery.DefaultTimeout / time.Millisecond),
		RetryCount:    discovery.DefaultRetryCount,
		TTL:           discovery.DefaultTTL,
		ResendDelayMs: int(discovery.DefaultResendDelay / time.Millisecond),
	}
}

func defaultOutput() *OutputSettings {
	return &OutputSettings{Format: FormatDetailed}
}

// fillDefaults restores sections missing from a loaded file
func (c *Config) fillDefaults() {
	if c.Discovery == nil {
		c.Discovery = defaultDiscovery()
	}
	if c.Output == nil {
		c.Output = defaultOutput()
	}
	if c.Output.Format == "" {
		c.Output.Format = FormatDetailed
	}
}

// Validate checks the values a user may have edited by hand.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}

	if d := c.Discovery; d != nil {
		switch {
		case d.TimeoutMs < 0:
			return fmt.Errorf("discovery.timeout_ms must not be negative (got %d)", d.TimeoutMs)
		case d.RetryCount < 0:
			return fmt.Errorf("discovery.retry_count must not be negative (got %d)", d.RetryCount)
		case d.ResendDelayMs < 0:
			return fmt.Errorf("discovery.resend_delay_ms must not be negative (got %d)", d.ResendDelayMs)
		case d.MaxParallel < 0:
			return fmt.Errorf("discovery.max_parallel must not be negative (got %d)", d.MaxParallel)
		case d.TTL < 0 || d.TTL > 255:
			return fmt.Errorf("discovery.ttl must be between 0 and 255, 0 selects the default (got %d)", d.TTL)
		}
		if d.LocalIP != "" {
			ip := net.ParseIP(d.LocalIP)
			if ip == nil || ip.To4() == nil {
				return fmt.Errorf("discovery.local_ip is not an IPv4 address: %q", d.LocalIP)
			}
		}
	}

	if o := c.Output; o != nil && o.Format != "" && !slices.Contains(OutputFormats, o.Format) {
		return fmt.Errorf("unknown output.format %q (expected one of %v)", o.Format, OutputFormats)
	}

	return nil
}

// DiscoveryConfig converts the file settings into discovery tuning.
// Zero timeout and TTL fall back to the discovery defaults.
func (c *Config) DiscoveryConfig() discovery.Config {
	cfg := discovery.DefaultConfig()

	d := c.Discovery
	if d == nil {
		return cfg
	}

	if d.TimeoutMs > 0 {
		cfg.Timeout = time.Duration(d.TimeoutMs) * time.Millisecond
	}
	cfg.RetryCount = d.RetryCount
	if d.TTL > 0 {
		cfg.TTL = d.TTL
	}
	cfg.ResendDelay = time.Duration(d.ResendDelayMs) * time.Millisecond
	cfg.MaxParallel = d.MaxParallel
	cfg.Interfaces = slices.Clone(d.Interfaces)

	return cfg
}

// LocalIP returns the configured membership address, or "" for per-interface
func (c *Config) LocalIP() string {
	if c.Discovery == nil {
		return ""
	}
	return c.Discovery.LocalIP
}

// OutputFormat returns the configured output format
func (c *Config) OutputFormat() string {
	if c.Output == nil || c.Output.Format == "" {
		return FormatDetailed
	}
	return c.Output.Format
}
