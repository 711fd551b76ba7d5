package config

import (
	"fmt"
	"net"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates configuration problems that must block startup
// (Fatals) from ones that are merely surprising and get clamped or logged
// (Warnings).
type ValidationResult struct {
	Warnings []error
	Fatals   []error
}

// HasFatals reports whether any fatal validation errors were collected.
func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// AllErrors returns fatals followed by warnings as a single flat slice.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered checks the config for invalid values, clamping anything
// that would otherwise cause a panic or a nonsensical runtime state and
// collecting the rest as warnings or fatals.
func (c *Config) ValidateTiered() ValidationResult {
	var result ValidationResult

	if c.BindAddress != "" {
		if ip := net.ParseIP(c.BindAddress); ip == nil && c.BindAddress != "localhost" {
			result.Fatals = append(result.Fatals, fmt.Errorf("bind_address %q is not a valid IP address", c.BindAddress))
		}
	}

	if c.Port == 0 {
		result.Fatals = append(result.Fatals, fmt.Errorf("port must be nonzero"))
	}

	if c.MaxConnections < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("max_connections %d is below minimum 1, clamping", c.MaxConnections))
		c.MaxConnections = 1
	} else if c.MaxConnections > 10000 {
		result.Warnings = append(result.Warnings, fmt.Errorf("max_connections %d exceeds maximum 10000, clamping", c.MaxConnections))
		c.MaxConnections = 10000
	}

	if c.ConnectionTimeoutSeconds < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("connection_timeout_seconds %d is below minimum 1, clamping", c.ConnectionTimeoutSeconds))
		c.ConnectionTimeoutSeconds = 1
	} else if c.ConnectionTimeoutSeconds > 3600 {
		result.Warnings = append(result.Warnings, fmt.Errorf("connection_timeout_seconds %d exceeds maximum 3600, clamping", c.ConnectionTimeoutSeconds))
		c.ConnectionTimeoutSeconds = 3600
	}

	if c.SessionTimeoutSeconds < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("session_timeout_seconds %d is below minimum 1, clamping", c.SessionTimeoutSeconds))
		c.SessionTimeoutSeconds = 1
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error), defaulting to info", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_format %q is not valid (use text or json), defaulting to text", c.LogFormat))
		c.LogFormat = "text"
	}

	if c.AuditEnabled && c.AuditPath == "" {
		c.AuditPath = GetDataDir() + "/audit.jsonl"
	}

	if c.TokenTTLSeconds < 60 {
		result.Warnings = append(result.Warnings, fmt.Errorf("token_ttl_seconds %d is below minimum 60, clamping", c.TokenTTLSeconds))
		c.TokenTTLSeconds = 60
	} else if c.TokenTTLSeconds > 86400 {
		result.Warnings = append(result.Warnings, fmt.Errorf("token_ttl_seconds %d exceeds maximum 86400, clamping", c.TokenTTLSeconds))
		c.TokenTTLSeconds = 86400
	}

	if c.CommandRateLimitMax < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("command_rate_limit_max %d is below minimum 1, clamping", c.CommandRateLimitMax))
		c.CommandRateLimitMax = 1
	}
	if c.CommandRateLimitWindowSeconds < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("command_rate_limit_window_seconds %d is below minimum 1, clamping", c.CommandRateLimitWindowSeconds))
		c.CommandRateLimitWindowSeconds = 1
	}
	if c.SessionRateLimitMax < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("session_rate_limit_max %d is below minimum 1, clamping", c.SessionRateLimitMax))
		c.SessionRateLimitMax = 1
	}
	if c.SessionRateLimitWindowSeconds < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("session_rate_limit_window_seconds %d is below minimum 1, clamping", c.SessionRateLimitWindowSeconds))
		c.SessionRateLimitWindowSeconds = 1
	}

	if c.BatchSize < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("batch_size %d is below minimum 1, clamping", c.BatchSize))
		c.BatchSize = 1
	} else if c.BatchSize > 1000 {
		result.Warnings = append(result.Warnings, fmt.Errorf("batch_size %d exceeds maximum 1000, clamping", c.BatchSize))
		c.BatchSize = 1000
	}
	if c.BatchMinIntervalMS < 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("batch_min_interval_ms %d cannot be negative, clamping to 0", c.BatchMinIntervalMS))
		c.BatchMinIntervalMS = 0
	}
	if c.BatchMaxMemoryMB < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("batch_max_memory_mb %d is below minimum 1, clamping", c.BatchMaxMemoryMB))
		c.BatchMaxMemoryMB = 1
	}
	if c.BatchMaxAgeMS < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("batch_max_age_ms %d is below minimum 1, clamping", c.BatchMaxAgeMS))
		c.BatchMaxAgeMS = 1
	}

	if c.DisplayCacheTTLSeconds < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("display_cache_ttl_seconds %d is below minimum 1, clamping", c.DisplayCacheTTLSeconds))
		c.DisplayCacheTTLSeconds = 1
	}
	if c.FrameCacheTTLSeconds < 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("frame_cache_ttl_seconds %d cannot be negative, clamping to 0", c.FrameCacheTTLSeconds))
		c.FrameCacheTTLSeconds = 0
	}

	if c.AlertFeedEnabled && c.AlertFeedURL == "" {
		result.Fatals = append(result.Fatals, fmt.Errorf("alert_feed_enabled is true but alert_feed_url is empty"))
	}
	if c.AlertFeedURL != "" && !strings.HasPrefix(c.AlertFeedURL, "ws://") && !strings.HasPrefix(c.AlertFeedURL, "wss://") {
		result.Fatals = append(result.Fatals, fmt.Errorf("alert_feed_url %q must use ws:// or wss://", c.AlertFeedURL))
	}

	switch c.PlatformOverride {
	case "", "enigo", "headless", "headless-silent":
	default:
		result.Warnings = append(result.Warnings, fmt.Errorf("platform_override %q is not recognized, falling back to auto-detect", c.PlatformOverride))
		c.PlatformOverride = ""
	}

	return result
}
