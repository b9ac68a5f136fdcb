package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "mock", cfg.DataSource)
	assert.Equal(t, "8080", cfg.HttpServer.Port)
	assert.Equal(t, "9090", cfg.GrpcServer.Port)
	assert.Equal(t, 12, cfg.Catalog.DefaultPageSize)
	assert.Equal(t, 24, cfg.Catalog.VirtualizeThreshold)
	assert.Equal(t, 10, cfg.Catalog.RecommendationLimit)
	assert.Equal(t, 50, cfg.Mock.ItemCount)
	assert.Equal(t, 800*time.Millisecond, cfg.Mock.CatalogLatency)
	assert.Equal(t, 500*time.Millisecond, cfg.Mock.RecommendationLatency)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("DEFAULT_PAGE_SIZE", "24")
	t.Setenv("MOCK_SEED", "42")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 24, cfg.Catalog.DefaultPageSize)
	assert.Equal(t, uint64(42), cfg.Mock.Seed)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"DATA_SOURCE":       "mongo",
		"LOG_LEVEL":         "verbose",
		"DEFAULT_PAGE_SIZE": "0",
		"MOCK_FAILURE_RATE": "1.5",
		"HTTP_SERVER_PORT":  "http",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_PostgresRequiresConnectionSettings(t *testing.T) {
	t.Setenv("DATA_SOURCE", "postgres")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "catalog")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DBNAME", "catalog")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=catalog password=secret dbname=catalog sslmode=disable", cfg.Postgres.DSN())
}
