package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

var validTLSModes = map[string]bool{
	"":            true,
	"off":         true,
	"skip-verify": true,
	"preferred":   true,
}

// Validate checks the configuration for inconsistent or out-of-range values.
func (c *Config) Validate() error {
	if err := c.Database.validate(); err != nil {
		return err
	}
	return c.Observability.validate()
}

func (d *DatabaseConfig) validate() error {
	if strings.TrimSpace(d.ConnectionString) == "" {
		if d.Port < 1 || d.Port > 65535 {
			return fmt.Errorf("database.port %d is out of valid range (1-65535)", d.Port)
		}
	}
	if !validTLSModes[d.TLSMode] {
		return fmt.Errorf("database.tls_mode %q is not one of off, skip-verify, preferred", d.TLSMode)
	}
	if d.Pool.MaxOpen < 0 {
		return fmt.Errorf("database.pool.max_open must not be negative")
	}
	if d.Pool.MaxIdle < 0 {
		return fmt.Errorf("database.pool.max_idle must not be negative")
	}
	if _, err := d.EffectiveDatabaseName(); err != nil {
		return err
	}
	return nil
}

func (o *ObservabilityConfig) validate() error {
	if !validLogLevels[o.Logging.Level] {
		return fmt.Errorf("observability.logging.level %q is not one of debug, info, warn, error", o.Logging.Level)
	}
	if !validLogFormats[o.Logging.Format] {
		return fmt.Errorf("observability.logging.format %q is not one of json, text", o.Logging.Format)
	}
	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		return fmt.Errorf("observability.trace_sample_ratio %v must be between 0.0 and 1.0", o.TraceSampleRatio)
	}
	if o.MetricsEnabled && (o.MetricsPort < 1 || o.MetricsPort > 65535) {
		return fmt.Errorf("observability.metrics_port %d is out of valid range (1-65535)", o.MetricsPort)
	}
	return nil
}
