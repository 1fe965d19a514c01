// Package config loads and validates run configuration from YAML files with
// environment-variable overrides. It provides typed structs for the expander,
// the corpus indexer, logging, metrics and every optional output sink.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/errors"
)

// Config is the top-level run configuration.
type Config struct {
	Expander ExpanderConfig `yaml:"expander"`
	Index    IndexConfig    `yaml:"index"`
	Sinks    SinksConfig    `yaml:"sinks"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ExpanderConfig controls the greedy expansion: cache policy, the expansion
// factor, the optional lookahead tie-break and sharding.
type ExpanderConfig struct {
	CacheEnabled   bool    `yaml:"cacheEnabled"`
	CacheThreshold int     `yaml:"cacheThreshold"`
	ExpansionAlpha float64 `yaml:"expansionAlpha"`
	Lookahead      bool    `yaml:"lookahead"`
	Workers        int     `yaml:"workers"`
	BatchSize      int     `yaml:"batchSize"`
	ProgressEvery  int     `yaml:"progressEvery"`
	Separator      string  `yaml:"separator"`
	Joiner         string  `yaml:"joiner"`
}

// IndexConfig controls corpus indexing.
type IndexConfig struct {
	FenceSentences bool   `yaml:"fenceSentences"`
	SnapshotDir    string `yaml:"snapshotDir"`
}

// SinksConfig selects the optional record sinks that receive every expanded
// sentence in addition to the forms and sentence files.
type SinksConfig struct {
	Kafka         bool          `yaml:"kafka"`
	Redis         bool          `yaml:"redis"`
	Postgres      bool          `yaml:"postgres"`
	RetryAttempts int           `yaml:"retryAttempts"`
	RetryBackoff  time.Duration `yaml:"retryBackoff"`
	Timeout       time.Duration `yaml:"timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	Table           string        `yaml:"table"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RedisConfig holds Redis connection parameters and the key namespace used
// for published forms.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	KeyPrefix string        `yaml:"keyPrefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a Config matching the reference behaviour of the expander:
// cache threshold 5, alpha 0.5, lookahead on, a single worker.
func Default() *Config {
	return &Config{
		Expander: ExpanderConfig{
			CacheEnabled:   true,
			CacheThreshold: 5,
			ExpansionAlpha: 0.5,
			Lookahead:      true,
			Workers:        1,
			BatchSize:      2048,
			ProgressEvery:  1000,
			Separator:      "/",
			Joiner:         "_",
		},
		Sinks: SinksConfig{
			RetryAttempts: 3,
			RetryBackoff:  100 * time.Millisecond,
			Timeout:       30 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "errormining",
			User:            "errormining",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			Table:           "expanded_forms",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "expanded-sentences",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "forms:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate rejects values the expander cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Expander.CacheThreshold < 0:
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "cacheThreshold must be >= 0, got %d", c.Expander.CacheThreshold)
	case c.Expander.ExpansionAlpha < 0:
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "expansionAlpha must be >= 0, got %g", c.Expander.ExpansionAlpha)
	case c.Expander.Workers < 1:
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "workers must be >= 1, got %d", c.Expander.Workers)
	case c.Expander.BatchSize < 1:
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "batchSize must be >= 1, got %d", c.Expander.BatchSize)
	case c.Expander.Separator == "":
		return apperrors.New(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "separator must not be empty")
	case c.Sinks.RetryAttempts < 1:
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "sinks.retryAttempts must be >= 1, got %d", c.Sinks.RetryAttempts)
	case c.Sinks.RetryBackoff < 0 || c.Sinks.Timeout < 0:
		return apperrors.New(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "sinks.retryBackoff and sinks.timeout must not be negative")
	case c.Sinks.Kafka && len(c.Kafka.Brokers) == 0:
		return apperrors.New(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "kafka sink enabled without brokers")
	case c.Sinks.Postgres && c.Postgres.Table == "":
		return apperrors.New(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "postgres sink enabled without a table")
	}
	return nil
}

// applyEnvOverrides reads EX_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EX_CACHE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Expander.CacheThreshold = n
		}
	}
	if v := os.Getenv("EX_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Expander.CacheEnabled = b
		}
	}
	if v := os.Getenv("EX_EXPANSION_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Expander.ExpansionAlpha = f
		}
	}
	if v := os.Getenv("EX_LOOKAHEAD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Expander.Lookahead = b
		}
	}
	if v := os.Getenv("EX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Expander.Workers = n
		}
	}
	if v := os.Getenv("EX_FENCE_SENTENCES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Index.FenceSentences = b
		}
	}
	if v := os.Getenv("EX_SNAPSHOT_DIR"); v != "" {
		cfg.Index.SnapshotDir = v
	}
	if v := os.Getenv("EX_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("EX_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("EX_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("EX_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("EX_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("EX_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("EX_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("EX_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("EX_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("EX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("EX_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
			cfg.Metrics.Enabled = true
		}
	}
}
