package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Signer    SignerConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Reporting ReportingConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	AuthTTL  time.Duration
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// SignerConfig holds remote signer connection configuration
type SignerConfig struct {
	InternalURL    string
	ProbeTimeout   time.Duration
	InspectTimeout time.Duration
	ForwardTimeout time.Duration
	SyncInterval   time.Duration
	ComposeService string
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	TokenTTL       time.Duration
	BootstrapAdmin bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the Prometheus metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// ReportingConfig holds usage aggregator reporting configuration
type ReportingConfig struct {
	AggregatorURL  string
	APIKey         string
	Interval       time.Duration
	RequestTimeout time.Duration
}

// TracingConfig holds Jaeger tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// Load reads configuration from a YAML file with environment overrides
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.rateLimitRPS", 50)
	viper.SetDefault("server.rateLimitBurst", 100)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "pymthouse")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.authTTL", "30s")

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Signer defaults
	viper.SetDefault("signer.internalURL", "http://localhost:8935")
	viper.SetDefault("signer.probeTimeout", "3s")
	viper.SetDefault("signer.inspectTimeout", "5s")
	viper.SetDefault("signer.forwardTimeout", "30s")
	viper.SetDefault("signer.syncInterval", "30s")
	viper.SetDefault("signer.composeService", "go-livepeer")

	// Auth defaults
	viper.SetDefault("auth.tokenTTL", "2160h") // 90 days
	viper.SetDefault("auth.bootstrapAdmin", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9100)

	// Reporting defaults
	viper.SetDefault("reporting.aggregatorURL", "")
	viper.SetDefault("reporting.apiKey", "")
	viper.SetDefault("reporting.interval", "5m")
	viper.SetDefault("reporting.requestTimeout", "10s")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "pymthouse-gateway")
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")
}
