package config

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	// RateLimitPerMinute caps requests per client IP; 0 disables the limiter.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Cache         CacheConfig         `mapstructure:"cache" yaml:"cache"`
	CORS          CORSConfig          `mapstructure:"cors" yaml:"cors"`
	WebSocket     WebSocketConfig     `mapstructure:"websocket" yaml:"websocket"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring" yaml:"monitoring"`
	ServiceHealth ServiceHealthConfig `mapstructure:"service_health" yaml:"service_health"`
	Catalog       CatalogConfig       `mapstructure:"catalog" yaml:"catalog"`
}

// DatabaseConfig holds the metrics backend configuration
type DatabaseConfig struct {
	VictoriaMetrics VictoriaMetricsConfig `mapstructure:"victoria_metrics" yaml:"victoria_metrics"`
}

type VictoriaMetricsConfig struct {
	// Optional friendly name for this metrics source
	Name      string   `mapstructure:"name" yaml:"name"`
	Endpoints []string `mapstructure:"endpoints" yaml:"endpoints"`
	Timeout   int      `mapstructure:"timeout" yaml:"timeout"` // milliseconds
	Username  string   `mapstructure:"username" yaml:"username"`
	Password  string   `mapstructure:"password" yaml:"password"`
	// Retries is the total number of attempts for transport errors and 5xx.
	Retries   int `mapstructure:"retries" yaml:"retries"`
	BackoffMS int `mapstructure:"backoff_ms" yaml:"backoff_ms"`
	// ClusterPath prefers the vmselect /select/0/prometheus path.
	ClusterPath bool `mapstructure:"cluster_path" yaml:"cluster_path"`
	// Discovery replaces Endpoints with the addresses behind a DNS name.
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
}

// DiscoveryConfig enables DNS endpoint discovery for a headless Service
type DiscoveryConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Service        string `mapstructure:"service" yaml:"service"` // e.g. vmselect.vm.svc.cluster.local
	Port           int    `mapstructure:"port" yaml:"port"`
	Scheme         string `mapstructure:"scheme" yaml:"scheme"` // http | https
	RefreshSeconds int    `mapstructure:"refresh_seconds" yaml:"refresh_seconds"`
	UseSRV         bool   `mapstructure:"use_srv" yaml:"use_srv"`
}

// CacheConfig handles Valkey caching of backend query results
type CacheConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	Nodes    []string `mapstructure:"nodes" yaml:"nodes"`
	TTL      int      `mapstructure:"ttl" yaml:"ttl"` // seconds
	Password string   `mapstructure:"password" yaml:"password"`
	DB       int      `mapstructure:"db" yaml:"db"`
}

// CORSConfig handles Cross-Origin Resource Sharing
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// WebSocketConfig handles the dashboard state stream
type WebSocketConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	MaxConnections  int  `mapstructure:"max_connections" yaml:"max_connections"`
	ReadBufferSize  int  `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int  `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	PingInterval    int  `mapstructure:"ping_interval" yaml:"ping_interval"` // seconds
	MaxMessageSize  int  `mapstructure:"max_message_size" yaml:"max_message_size"`
}

// MonitoringConfig handles self-monitoring configuration
type MonitoringConfig struct {
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath       string `mapstructure:"metrics_path" yaml:"metrics_path"`
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled" yaml:"prometheus_enabled"`
	TracingEnabled    bool   `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	OTLPEndpoint      string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// ServiceHealthConfig drives the dashboard widgets.
type ServiceHealthConfig struct {
	TopK        int    `mapstructure:"top_k" yaml:"top_k"`
	DefaultFrom string `mapstructure:"default_from" yaml:"default_from"`
	DefaultTo   string `mapstructure:"default_to" yaml:"default_to"`
	// Timezone is an IANA name used for date math rounding.
	Timezone string       `mapstructure:"timezone" yaml:"timezone"`
	Labels   LabelsConfig `mapstructure:"labels" yaml:"labels"`
	// QueryTemplates overrides built-in templates by name.
	QueryTemplates map[string]string `mapstructure:"query_templates" yaml:"query_templates"`
	Bounds         BoundsConfig      `mapstructure:"bounds" yaml:"bounds"`
	// Sparklines keeps full metric series on service table rows.
	Sparklines bool `mapstructure:"sparklines" yaml:"sparklines"`
}

// LabelsConfig names the backend labels used for grouping and matching.
type LabelsConfig struct {
	Service       string `mapstructure:"service" yaml:"service"`
	Environment   string `mapstructure:"environment" yaml:"environment"`
	RemoteService string `mapstructure:"remote_service" yaml:"remote_service"`
}

// BoundsConfig is the fallback range of the latency (ms) and throughput
// sliders when no samples are available.
type BoundsConfig struct {
	LatencyMin    float64 `mapstructure:"latency_min" yaml:"latency_min"`
	LatencyMax    float64 `mapstructure:"latency_max" yaml:"latency_max"`
	ThroughputMin float64 `mapstructure:"throughput_min" yaml:"throughput_min"`
	ThroughputMax float64 `mapstructure:"throughput_max" yaml:"throughput_max"`
}

// CatalogConfig selects where service metadata comes from.
type CatalogConfig struct {
	// Source is "file" or "metrics".
	Source string `mapstructure:"source" yaml:"source"`
	File   string `mapstructure:"file" yaml:"file"`
	// SeriesMatch are the match[] selectors for the metrics source.
	SeriesMatch []string `mapstructure:"series_match" yaml:"series_match"`
	// AttributePrefix marks series labels that become group-by attributes;
	// "__" inside the remainder separates nesting levels.
	AttributePrefix string `mapstructure:"attribute_prefix" yaml:"attribute_prefix"`
	CacheTTL        int    `mapstructure:"cache_ttl" yaml:"cache_ttl"` // seconds
}
