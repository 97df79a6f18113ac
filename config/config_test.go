package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorylens/models"
)

func missingPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(missingPath(t))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(42), cfg.Dataset.Seed)
	assert.Equal(t, models.DefaultSelection(), cfg.Dataset.Selection())
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, 30*time.Second, cfg.Stats.Interval)
	assert.Equal(t, 500*time.Millisecond, cfg.Simulator.Frequency)

	loc, err := cfg.Dataset.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATASET_SEED", "7")
	t.Setenv("DATASET_TZ", "UTC")
	t.Setenv("DEFAULT_RANGE", "30d")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("STATS_INTERVAL", "5s")

	cfg, err := Load(missingPath(t))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, int64(7), cfg.Dataset.Seed)
	assert.Equal(t, models.Range30d, cfg.Dataset.Selection().Range)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.BrokerList())
	assert.True(t, cfg.Kafka.Enabled())
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Stats.Interval)
	assert.Contains(t, cfg.GetDatabaseURL(), "host='db.internal'")
	assert.Contains(t, cfg.GetDatabaseURL(), "password='secret'")

	loc, err := cfg.Dataset.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
server:
  port: "7000"
dataset:
  seed: 99
  default_factory: "member-a"
kafka:
  brokers: "localhost:9092"
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))
	t.Setenv("SERVER_PORT", "7001")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.Server.Port)
	assert.Equal(t, int64(99), cfg.Dataset.Seed)
	assert.Equal(t, "member-a", cfg.Dataset.Selection().FactoryID)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.BrokerList())
	assert.Equal(t, "factorylens.kpi", cfg.Kafka.KPITopic)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad shift", "DEFAULT_SHIFT", "D"},
		{"bad range", "DEFAULT_RANGE", "1y"},
		{"bad zone", "DATASET_TZ", "Mars/Olympus"},
		{"zero interval", "STATS_INTERVAL", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load(missingPath(t))
			assert.Error(t, err)
		})
	}
}

func TestAllowOrigins(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:3000"}, ServerConfig{FrontendURL: "http://localhost:3000"}.AllowOrigins())
	assert.Equal(t,
		[]string{"http://localhost:3000", "https://lens.example.com"},
		ServerConfig{FrontendURL: "https://lens.example.com"}.AllowOrigins(),
	)
}

func TestGetDatabaseURL_QuotesValues(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     string
	}{
		{"empty password", "", "password='' dbname='factorylens'"},
		{"spaces", "two words", "password='two words' dbname='factorylens'"},
		{"quote and backslash", `it's\x`, `password='it\'s\\x' dbname='factorylens'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_HOST", "db")
			t.Setenv("DB_PASSWORD", tt.password)

			cfg, err := Load(missingPath(t))
			require.NoError(t, err)

			dsn := cfg.GetDatabaseURL()
			assert.Contains(t, dsn, tt.want)
			assert.Contains(t, dsn, "host='db' port=5432 user='factorylens'")
		})
	}
}

func TestGetDatabaseURL_ParsesWithEmptyPassword(t *testing.T) {
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "")

	cfg, err := Load(missingPath(t))
	require.NoError(t, err)

	_, err = pq.NewConnector(cfg.GetDatabaseURL())
	require.NoError(t, err)
}
