// Package config provides configuration loading for cortex.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then CORTEX_* environment variables. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Config holds the complete cortex configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Events    EventsConfig    `koanf:"events"`
	Secrets   SecretsConfig   `koanf:"secrets"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StorageConfig selects the session store backend.
type StorageConfig struct {
	Driver string `koanf:"driver"` // memory, file, sqlite
	Path   string `koanf:"path"`
}

// AnalysisConfig configures the external analysis API client.
type AnalysisConfig struct {
	BaseURL         string   `koanf:"base_url"`
	APIKey          Secret   `koanf:"api_key"`
	Timeout         Duration `koanf:"timeout"`
	RateLimit       float64  `koanf:"rate_limit"` // requests per second
	Burst           int      `koanf:"burst"`
	MaxRetries      int      `koanf:"max_retries"`
	BreakerFailures int      `koanf:"breaker_failures"` // consecutive failures before opening
	BreakerTimeout  Duration `koanf:"breaker_timeout"`  // open state duration
}

// AnalyticsConfig tunes the tension graph.
type AnalyticsConfig struct {
	ClusterThreshold int `koanf:"cluster_threshold"`
}

// EventsConfig configures NATS event publishing.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// SecretsConfig configures redaction of thought text before analysis.
type SecretsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AllowlistPath string `koanf:"allowlist_path"`
}

// LoggingConfig is the subset of logging settings exposed in the config file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // grpc or http/protobuf
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch c.Storage.Driver {
	case "memory":
	case "file", "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be memory, file or sqlite, got %q", c.Storage.Driver))
	}

	if u, err := url.Parse(c.Analysis.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("analysis.base_url must be an absolute URL, got %q", c.Analysis.BaseURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("analysis.base_url scheme must be http or https, got %q", u.Scheme))
	}
	if c.Analysis.Timeout.Duration() <= 0 {
		errs = append(errs, errors.New("analysis.timeout must be positive"))
	}
	if c.Analysis.RateLimit <= 0 {
		errs = append(errs, errors.New("analysis.rate_limit must be positive"))
	}
	if c.Analysis.Burst < 1 {
		errs = append(errs, errors.New("analysis.burst must be at least 1"))
	}
	if c.Analysis.MaxRetries < 0 {
		errs = append(errs, errors.New("analysis.max_retries cannot be negative"))
	}
	if c.Analysis.BreakerFailures < 1 {
		errs = append(errs, errors.New("analysis.breaker_failures must be at least 1"))
	}

	if c.Analytics.ClusterThreshold < 1 {
		errs = append(errs, errors.New("analytics.cluster_threshold must be at least 1"))
	}

	if c.Events.Enabled {
		if c.Events.URL == "" {
			errs = append(errs, errors.New("events.nats_url is required when events are enabled"))
		}
		if strings.ContainsAny(c.Events.SubjectPrefix, " *>") {
			errs = append(errs, fmt.Errorf("events.subject_prefix contains invalid characters: %q", c.Events.SubjectPrefix))
		}
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate))
		}
	}

	return errors.Join(errs...)
}
