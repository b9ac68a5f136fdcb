package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"console" validate:"oneof=console json"`
	DataSource string `envconfig:"DATA_SOURCE" default:"mock" validate:"oneof=mock postgres"`
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Postgres   PostgresConfig `validate:"-"` // checked only when DataSource is postgres
	Redis      RedisConfig
	Catalog    CatalogConfig
	Mock       MockConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080" validate:"required,numeric"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090" validate:"required,numeric"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" validate:"required"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432" validate:"required,numeric"`
	User     string `envconfig:"POSTGRES_USER" validate:"required"`
	Password string `envconfig:"POSTGRES_PASSWORD" validate:"required"`
	DBName   string `envconfig:"POSTGRES_DBNAME" validate:"required"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// RedisConfig enables the catalog cache when URL is set.
type RedisConfig struct {
	URL      string        `envconfig:"REDIS_URL" validate:"omitempty,url"`
	CacheTTL time.Duration `envconfig:"REDIS_CACHE_TTL" default:"5m" validate:"gt=0"`
}

// CatalogConfig tunes the catalog engine.
type CatalogConfig struct {
	DefaultPageSize     int           `envconfig:"DEFAULT_PAGE_SIZE" default:"12" validate:"gt=0,lte=100"`
	VirtualizeThreshold int           `envconfig:"VIRTUALIZE_THRESHOLD" default:"24" validate:"gt=0"`
	RecommendationLimit int           `envconfig:"RECOMMENDATION_LIMIT" default:"10" validate:"gt=0,lte=100"`
	InitialLoadTimeout  time.Duration `envconfig:"INITIAL_LOAD_TIMEOUT" default:"10s" validate:"gt=0"`
}

// MockConfig drives the generated product source.
type MockConfig struct {
	ItemCount             int           `envconfig:"MOCK_ITEM_COUNT" default:"50" validate:"gte=0"`
	Seed                  uint64        `envconfig:"MOCK_SEED" default:"1"`
	CatalogLatency        time.Duration `envconfig:"MOCK_CATALOG_LATENCY" default:"800ms" validate:"gte=0"`
	RecommendationLatency time.Duration `envconfig:"MOCK_RECOMMENDATION_LATENCY" default:"500ms" validate:"gte=0"`
	FailureRate           float64       `envconfig:"MOCK_FAILURE_RATE" default:"0" validate:"gte=0,lte=1"`
}

// Load initializes the configuration from environment variables and
// validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.DataSource == "postgres" {
		if err := v.Struct(cfg.Postgres); err != nil {
			return nil, fmt.Errorf("invalid postgres configuration: %w", err)
		}
	}
	return &cfg, nil
}
