package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/querytemplate"
	"github.com/platformbuilds/mirador-servicehealth/internal/timerange"
)

// validateConfig validates the loaded configuration. An empty endpoint list
// is allowed: queries then fail with a configuration error the dashboard
// can render.
func validateConfig(config *Config) error {
	for _, ep := range config.Database.VictoriaMetrics.Endpoints {
		if err := ValidateEndpoint(ep); err != nil {
			return fmt.Errorf("victoria_metrics endpoint %q: %w", ep, err)
		}
	}
	if config.Database.VictoriaMetrics.Timeout < 0 {
		return fmt.Errorf("victoria_metrics timeout must not be negative")
	}
	if config.Database.VictoriaMetrics.Retries < 0 {
		return fmt.Errorf("victoria_metrics retries must not be negative")
	}
	if d := config.Database.VictoriaMetrics.Discovery; d.Enabled {
		if d.Service == "" {
			return fmt.Errorf("victoria_metrics discovery requires a service name")
		}
		if d.Scheme != "http" && d.Scheme != "https" {
			return fmt.Errorf("victoria_metrics discovery scheme must be http or https, got %q", d.Scheme)
		}
		if !d.UseSRV && (d.Port < 1 || d.Port > 65535) {
			return fmt.Errorf("victoria_metrics discovery port out of range: %d", d.Port)
		}
	}

	if config.Cache.Enabled {
		for _, node := range config.Cache.Nodes {
			if err := ValidateRedisNode(node); err != nil {
				return err
			}
		}
		if config.Cache.TTL < 1 {
			return fmt.Errorf("cache TTL must be at least 1 second")
		}
	}

	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}

	if config.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate_limit_per_minute must not be negative")
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validEnvironments := []string{"development", "staging", "production", "test"}
	if !contains(validEnvironments, config.Environment) {
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	if err := validateServiceHealth(config.ServiceHealth); err != nil {
		return err
	}
	return validateCatalog(config.Catalog)
}

func validateServiceHealth(sh ServiceHealthConfig) error {
	if sh.TopK < 1 || sh.TopK > 100 {
		return fmt.Errorf("service_health.top_k must be between 1 and 100, got %d", sh.TopK)
	}
	loc, err := time.LoadLocation(sh.Timezone)
	if err != nil {
		return fmt.Errorf("service_health.timezone: %w", err)
	}
	if _, err := timerange.NewResolver(timerange.WithLocation(loc)).Resolve(sh.DefaultFrom, sh.DefaultTo); err != nil {
		return fmt.Errorf("service_health default range: %w", err)
	}
	if _, err := querytemplate.New(sh.QueryTemplates); err != nil {
		return fmt.Errorf("service_health.query_templates: %w", err)
	}
	b := sh.Bounds
	if b.LatencyMin >= b.LatencyMax || b.ThroughputMin >= b.ThroughputMax {
		return fmt.Errorf("service_health.bounds: min must be below max")
	}
	return nil
}

func validateCatalog(c CatalogConfig) error {
	switch c.Source {
	case "file":
		if c.File == "" {
			return fmt.Errorf("catalog.file is required when catalog.source is file")
		}
	case "metrics":
		if len(c.SeriesMatch) == 0 {
			return fmt.Errorf("catalog.series_match is required when catalog.source is metrics")
		}
	default:
		return fmt.Errorf("invalid catalog source: %q", c.Source)
	}
	return nil
}

// ValidateEndpoint validates that an endpoint is properly formatted
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint must use http or https scheme")
	}

	if parsed.Host == "" {
		return fmt.Errorf("endpoint must include host")
	}

	return nil
}

// ValidateRedisNode validates Valkey node format (host:port)
func ValidateRedisNode(node string) error {
	if node == "" {
		return fmt.Errorf("valkey node cannot be empty")
	}

	host, port, err := net.SplitHostPort(node)
	if err != nil {
		return fmt.Errorf("valkey node must be in format host:port: %w", err)
	}

	if host == "" {
		return fmt.Errorf("valkey node must include host")
	}

	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid valkey port: %w", err)
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
