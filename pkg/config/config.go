// Package config loads and validates newsdex configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Indexer, Analyzer, Crawler, Search, Redis, Kafka, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"readTimeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gt=0"`
}

// PostgresConfig holds PostgreSQL connection parameters for the
// fingerprint store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns" validate:"min=0"`
	MaxIdleConns    int           `yaml:"maxIdleConns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
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
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers" validate:"required,min=1,dive,required"`
	ConsumerGroup string      `yaml:"consumerGroup" validate:"required"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest" validate:"required"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" validate:"required_if=Enabled true"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"min=0"`
	PoolSize int           `yaml:"poolSize" validate:"min=1"`
	CacheTTL time.Duration `yaml:"cacheTTL" validate:"gte=0"`
}

// IndexerConfig controls where the index lives and how it is built and
// persisted.
type IndexerConfig struct {
	IndexPath          string        `yaml:"indexPath" validate:"required"`
	IncludeExtraFields bool          `yaml:"includeExtraFields"`
	Workers            int           `yaml:"workers" validate:"min=1,max=256"`
	SaveInterval       time.Duration `yaml:"saveInterval" validate:"gte=0"`
	ReloadInterval     time.Duration `yaml:"reloadInterval" validate:"gte=0"`
	CrawlInterval      time.Duration `yaml:"crawlInterval" validate:"gte=0"`
}

// AnalyzerConfig controls tokenization. The same analyzer settings must be
// used by the indexer and the searcher.
type AnalyzerConfig struct {
	RemoveStopwords bool   `yaml:"removeStopwords"`
	StopwordsFile   string `yaml:"stopwordsFile"`
	Stem            bool   `yaml:"stem"`
}

// CrawlerConfig controls document discovery and fingerprint persistence.
type CrawlerConfig struct {
	Roots      []string `yaml:"roots" validate:"dive,required"`
	Extension  string   `yaml:"extension" validate:"required,startswith=."`
	Store      string   `yaml:"store" validate:"oneof=sqlite postgres memory"`
	SQLitePath string   `yaml:"sqlitePath" validate:"required_if=Store sqlite"`
}

// SearchConfig controls query execution limits and timeouts.
type SearchConfig struct {
	RankLimit        int           `yaml:"rankLimit" validate:"min=1"`
	DefaultLimit     int           `yaml:"defaultLimit" validate:"min=1,ltefield=RankLimit"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxCandidateDocs int           `yaml:"maxCandidateDocs" validate:"min=0"`
	MaxComparisons   int64         `yaml:"maxComparisons" validate:"min=0"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port" validate:"min=1,max=65535"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	return defaultConfig()
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "newsdex",
			User:            "newsdex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "newsdex-indexer",
			Topics: KafkaTopics{
				DocumentIngest: "newsdex.documents",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			IndexPath:      "data/index.txt",
			Workers:        4,
			SaveInterval:   30 * time.Second,
			ReloadInterval: 0,
			CrawlInterval:  0,
		},
		Analyzer: AnalyzerConfig{
			RemoveStopwords: true,
			Stem:            true,
		},
		Crawler: CrawlerConfig{
			Roots:      []string{"data/articles"},
			Extension:  ".html",
			Store:      "sqlite",
			SQLitePath: "data/fingerprints.db",
		},
		Search: SearchConfig{
			RankLimit:        150,
			DefaultLimit:     20,
			Timeout:          5 * time.Second,
			MaxCandidateDocs: 100000,
			MaxComparisons:   50_000_000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads NEWSDEX_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NEWSDEX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("NEWSDEX_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("NEWSDEX_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("NEWSDEX_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("NEWSDEX_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("NEWSDEX_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("NEWSDEX_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("NEWSDEX_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("NEWSDEX_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("NEWSDEX_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("NEWSDEX_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("NEWSDEX_INDEX_PATH"); v != "" {
		cfg.Indexer.IndexPath = v
	}
	if v := os.Getenv("NEWSDEX_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("NEWSDEX_CRAWLER_ROOTS"); v != "" {
		cfg.Crawler.Roots = strings.Split(v, ",")
	}
	if v := os.Getenv("NEWSDEX_CRAWLER_STORE"); v != "" {
		cfg.Crawler.Store = v
	}
	if v := os.Getenv("NEWSDEX_SEARCH_RANK_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.RankLimit = n
		}
	}
	if v := os.Getenv("NEWSDEX_SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.Timeout = d
		}
	}
	if v := os.Getenv("NEWSDEX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NEWSDEX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
