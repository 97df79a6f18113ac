package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"factorylens/models"
)

// DefaultPath is the optional YAML file read before environment overrides
const DefaultPath = "config.yaml"

// Config holds application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Stats     StatsConfig     `yaml:"stats"`
	Log       LogConfig       `yaml:"log"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	FrontendURL string `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	GinMode     string `yaml:"gin_mode" env:"GIN_MODE" env-default:"debug"`
}

// AllowOrigins lists the origins accepted by CORS and the websocket upgrader
func (s ServerConfig) AllowOrigins() []string {
	origins := []string{"http://localhost:3000"}
	if s.FrontendURL != "" && s.FrontendURL != origins[0] {
		origins = append(origins, s.FrontendURL)
	}
	return origins
}

// DatasetConfig controls generation and the initial selection
type DatasetConfig struct {
	Seed           int64  `yaml:"seed" env:"DATASET_SEED" env-default:"42"`
	TimeZone       string `yaml:"tz" env:"DATASET_TZ" env-default:"Local"`
	DefaultFactory string `yaml:"default_factory" env:"DEFAULT_FACTORY" env-default:"fanarlool"`
	DefaultRange   string `yaml:"default_range" env:"DEFAULT_RANGE" env-default:"7d"`
	DefaultShift   string `yaml:"default_shift" env:"DEFAULT_SHIFT" env-default:"A"`
	DefaultProduct string `yaml:"default_product" env:"DEFAULT_PRODUCT" env-default:"A"`
}

// Location resolves the time zone that defines calendar days
func (d DatasetConfig) Location() (*time.Location, error) {
	if d.TimeZone == "" || strings.EqualFold(d.TimeZone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(d.TimeZone)
}

// Selection is the selection the dashboard starts with
func (d DatasetConfig) Selection() models.Selection {
	return models.Selection{
		FactoryID: d.DefaultFactory,
		Range:     models.RangeKey(d.DefaultRange),
		Shift:     models.ShiftCode(d.DefaultShift),
		Product:   models.ProductCode(d.DefaultProduct),
	}
}

// DatabaseConfig holds database connection configuration. An empty host
// disables the snapshot export.
type DatabaseConfig struct {
	Host          string `yaml:"host" env:"DB_HOST" env-default:""`
	Port          int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	Name          string `yaml:"name" env:"DB_NAME" env-default:"factorylens"`
	User          string `yaml:"user" env:"DB_USER" env-default:"factorylens"`
	Password      string `yaml:"-" env:"DB_PASSWORD"`
	SSLMode       string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
	ExportOnStart bool   `yaml:"export_on_start" env:"DB_EXPORT_ON_START" env-default:"true"`
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// KafkaConfig holds Kafka connection configuration. An empty broker list
// disables publishing.
type KafkaConfig struct {
	Brokers     string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:""`
	ClientID    string `yaml:"client_id" env:"KAFKA_CLIENT_ID" env-default:"factorylens"`
	KPITopic    string `yaml:"kpi_topic" env:"KAFKA_KPI_TOPIC" env-default:"factorylens.kpi"`
	AlertTopic  string `yaml:"alert_topic" env:"KAFKA_ALERT_TOPIC" env-default:"factorylens.alerts"`
	RecordTopic string `yaml:"record_topic" env:"KAFKA_RECORD_TOPIC" env-default:"factorylens.records"`
}

// BrokerList splits the comma separated broker addresses
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Enabled reports whether any broker is configured
func (k KafkaConfig) Enabled() bool {
	return len(k.BrokerList()) > 0
}

// StatsConfig controls the periodic stats broadcast
type StatsConfig struct {
	Interval time.Duration `yaml:"interval" env:"STATS_INTERVAL" env-default:"30s"`
}

// LogConfig selects the logger encoding
type LogConfig struct {
	Mode string `yaml:"mode" env:"LOG_MODE" env-default:"development"`
}

// SimulatorConfig controls the dataset replay publisher
type SimulatorConfig struct {
	Frequency time.Duration `yaml:"frequency" env:"SIMULATOR_FREQUENCY" env-default:"500ms"`
}

// Load reads path when it exists, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks values that cleanenv cannot
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port must not be empty")
	}
	if _, err := c.Dataset.Location(); err != nil {
		return fmt.Errorf("invalid DATASET_TZ %q: %w", c.Dataset.TimeZone, err)
	}
	if err := c.Dataset.Selection().Validate(); err != nil {
		return err
	}
	if c.Stats.Interval <= 0 {
		return fmt.Errorf("stats interval must be positive, got %s", c.Stats.Interval)
	}
	if c.Simulator.Frequency <= 0 {
		return fmt.Errorf("simulator frequency must be positive, got %s", c.Simulator.Frequency)
	}
	return nil
}

// GetDatabaseURL returns the lib/pq key/value connection string. Values are
// quoted so empty or spaced values cannot swallow the next key.
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(c.Database.Host), c.Database.Port, dsnValue(c.Database.User),
		dsnValue(c.Database.Password), dsnValue(c.Database.Name), dsnValue(c.Database.SSLMode))
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func dsnValue(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}
