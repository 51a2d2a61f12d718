package domain

// Config holds the complete Shrike configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Profile determines the default component wiring
	Profile Profile `json:"profile"`

	// Component configurations
	Repository   RepositoryConfig   `json:"repository"`
	Cache        CacheConfig        `json:"cache"`
	EventBus     EventBusConfig     `json:"eventBus"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// OrchestratorConfig bounds the repricing pipeline's fan-out.
type OrchestratorConfig struct {
	// MaxConcurrency caps in-flight decisions during batch processing.
	MaxConcurrency int `json:"maxConcurrency"`

	// ListingCacheTTL bounds staleness of cached listing snapshots, seconds.
	ListingCacheTTL int `json:"listingCacheTtl"`

	// ChurnLimit caps repricing attempts per SKU per window. Zero
	// disables the churn guard.
	ChurnLimit int `json:"churnLimit"`

	// ChurnWindowSecs is the rolling window for the churn guard.
	ChurnWindowSecs int `json:"churnWindowSecs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Profile selects a deployment shape.
type Profile string

const (
	// ProfileStandalone runs on SQLite, in-process channels, and a local
	// LRU cache. Single binary, no external services.
	ProfileStandalone Profile = "standalone"

	// ProfileCluster runs on PostgreSQL, NATS, and Redis.
	ProfileCluster Profile = "cluster"
)

// DefaultConfig returns a default configuration for the standalone profile.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Profile: ProfileStandalone,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./shrike.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrency:  50,
			ListingCacheTTL: 120,
			ChurnLimit:      20,
			ChurnWindowSecs: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "shrike",
		},
	}
}

// ClusterConfig returns a configuration for the cluster profile.
func ClusterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Profile = ProfileCluster
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "shrike",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Orchestrator.MaxConcurrency = 100
	cfg.Tracing.Enabled = true
	return cfg
}
