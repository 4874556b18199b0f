package config

import "github.com/spf13/viper"

// GetDefaultConfig returns a configuration with all default values
func GetDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Port:        8010,
		LogLevel:    "info",

		RateLimitPerMinute: 1000,

		Database: DatabaseConfig{
			VictoriaMetrics: VictoriaMetricsConfig{
				Endpoints:   []string{"http://localhost:8481"},
				Timeout:     30000,
				Retries:     1,
				BackoffMS:   500,
				ClusterPath: true,
				Discovery: DiscoveryConfig{
					Port:           8481,
					Scheme:         "http",
					RefreshSeconds: 30,
				},
			},
		},

		Cache: CacheConfig{
			Enabled: true,
			Nodes:   []string{"localhost:6379"},
			TTL:     60,
		},

		CORS: CORSConfig{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           3600,
		},

		WebSocket: WebSocketConfig{
			Enabled:         true,
			MaxConnections:  1000,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    30,
			MaxMessageSize:  1048576,
		},

		Monitoring: MonitoringConfig{
			Enabled:           true,
			MetricsPath:       "/metrics",
			PrometheusEnabled: true,
			TracingEnabled:    false,
			OTLPEndpoint:      "localhost:4317",
		},

		ServiceHealth: ServiceHealthConfig{
			TopK:        5,
			DefaultFrom: "now-1h",
			DefaultTo:   "now",
			Timezone:    "UTC",
			Labels: LabelsConfig{
				Service:       "service_name",
				Environment:   "deployment_environment",
				RemoteService: "server",
			},
			QueryTemplates: map[string]string{},
			Bounds: BoundsConfig{
				LatencyMin:    0,
				LatencyMax:    1000,
				ThroughputMin: 0,
				ThroughputMax: 100,
			},
		},

		Catalog: CatalogConfig{
			Source:          "metrics",
			SeriesMatch:     []string{`target_info`},
			AttributePrefix: "attr_",
			CacheTTL:        300,
		},
	}
}

// setDefaults mirrors GetDefaultConfig into viper so env-only deployments
// unmarshal the same values.
func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("environment", d.Environment)
	v.SetDefault("port", d.Port)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("rate_limit_per_minute", d.RateLimitPerMinute)

	v.SetDefault("database.victoria_metrics.endpoints", d.Database.VictoriaMetrics.Endpoints)
	v.SetDefault("database.victoria_metrics.timeout", d.Database.VictoriaMetrics.Timeout)
	v.SetDefault("database.victoria_metrics.retries", d.Database.VictoriaMetrics.Retries)
	v.SetDefault("database.victoria_metrics.backoff_ms", d.Database.VictoriaMetrics.BackoffMS)
	v.SetDefault("database.victoria_metrics.cluster_path", d.Database.VictoriaMetrics.ClusterPath)
	v.SetDefault("database.victoria_metrics.discovery.enabled", false)
	v.SetDefault("database.victoria_metrics.discovery.port", d.Database.VictoriaMetrics.Discovery.Port)
	v.SetDefault("database.victoria_metrics.discovery.scheme", d.Database.VictoriaMetrics.Discovery.Scheme)
	v.SetDefault("database.victoria_metrics.discovery.refresh_seconds", d.Database.VictoriaMetrics.Discovery.RefreshSeconds)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.nodes", d.Cache.Nodes)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.db", d.Cache.DB)

	v.SetDefault("cors.allowed_origins", d.CORS.AllowedOrigins)
	v.SetDefault("cors.allowed_methods", d.CORS.AllowedMethods)
	v.SetDefault("cors.allowed_headers", d.CORS.AllowedHeaders)
	v.SetDefault("cors.exposed_headers", d.CORS.ExposedHeaders)
	v.SetDefault("cors.allow_credentials", d.CORS.AllowCredentials)
	v.SetDefault("cors.max_age", d.CORS.MaxAge)

	v.SetDefault("websocket.enabled", d.WebSocket.Enabled)
	v.SetDefault("websocket.max_connections", d.WebSocket.MaxConnections)
	v.SetDefault("websocket.read_buffer_size", d.WebSocket.ReadBufferSize)
	v.SetDefault("websocket.write_buffer_size", d.WebSocket.WriteBufferSize)
	v.SetDefault("websocket.ping_interval", d.WebSocket.PingInterval)
	v.SetDefault("websocket.max_message_size", d.WebSocket.MaxMessageSize)

	v.SetDefault("monitoring.enabled", d.Monitoring.Enabled)
	v.SetDefault("monitoring.metrics_path", d.Monitoring.MetricsPath)
	v.SetDefault("monitoring.prometheus_enabled", d.Monitoring.PrometheusEnabled)
	v.SetDefault("monitoring.tracing_enabled", d.Monitoring.TracingEnabled)
	v.SetDefault("monitoring.otlp_endpoint", d.Monitoring.OTLPEndpoint)

	sh := d.ServiceHealth
	v.SetDefault("service_health.top_k", sh.TopK)
	v.SetDefault("service_health.default_from", sh.DefaultFrom)
	v.SetDefault("service_health.default_to", sh.DefaultTo)
	v.SetDefault("service_health.timezone", sh.Timezone)
	v.SetDefault("service_health.labels.service", sh.Labels.Service)
	v.SetDefault("service_health.labels.environment", sh.Labels.Environment)
	v.SetDefault("service_health.labels.remote_service", sh.Labels.RemoteService)
	v.SetDefault("service_health.bounds.latency_min", sh.Bounds.LatencyMin)
	v.SetDefault("service_health.bounds.latency_max", sh.Bounds.LatencyMax)
	v.SetDefault("service_health.bounds.throughput_min", sh.Bounds.ThroughputMin)
	v.SetDefault("service_health.bounds.throughput_max", sh.Bounds.ThroughputMax)
	v.SetDefault("service_health.sparklines", sh.Sparklines)

	v.SetDefault("catalog.source", d.Catalog.Source)
	v.SetDefault("catalog.series_match", d.Catalog.SeriesMatch)
	v.SetDefault("catalog.attribute_prefix", d.Catalog.AttributePrefix)
	v.SetDefault("catalog.cache_ttl", d.Catalog.CacheTTL)
}
