package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/sqlfence/pkg/adapter"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks if the configuration is valid. The schema itself is
// checked when the grammar is compiled.
func (c *Config) Validate() error {
	if !slices.Contains(OutputModes, c.Output) {
		return fmt.Errorf("invalid output %q (want one of %s)", c.Output, strings.Join(OutputModes, ", "))
	}
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log_level %q (want one of %s)", c.LogLevel, strings.Join(logLevels, ", "))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.LogFormat)) {
		return fmt.Errorf("invalid log_format %q (want one of %s)", c.LogFormat, strings.Join(logFormats, ", "))
	}
	if c.Limits.MaxRows < 0 {
		return fmt.Errorf("limits.max_rows must not be negative")
	}
	if c.Limits.Timeout < 0 {
		return fmt.Errorf("limits.timeout must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Target != nil {
		if err := ValidateTarget(c.Target); err != nil {
			return fmt.Errorf("invalid target configuration: %w", err)
		}
	}
	return nil
}

// ValidateTarget checks that the target names a registered adapter. A file
// target without a type gets one from its extension. A target with neither a
// type nor any other setting is treated as absent.
func ValidateTarget(t *TargetConfig) error {
	if t.Type == "" {
		t.Type = adapter.TypeForPath(t.Path)
	}
	if t.Type == "" {
		if t.Path != "" || t.Host != "" || t.Database != "" {
			return fmt.Errorf("target type is required")
		}
		return nil
	}
	t.Type = strings.ToLower(t.Type)
	if !adapter.IsRegistered(t.Type) {
		return &adapter.UnknownAdapterError{Type: t.Type, Available: adapter.ListAdapters()}
	}
	return nil
}
