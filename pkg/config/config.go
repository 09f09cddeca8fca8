// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Search engine, Rebuild, Query,
// Sync, Synonyms, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Search   SearchConfig   `yaml:"search"`
	Rebuild  RebuildConfig  `yaml:"rebuild"`
	Query    QueryConfig    `yaml:"query"`
	Sync     SyncConfig     `yaml:"sync"`
	Synonyms SynonymsConfig `yaml:"synonyms"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `yaml:"corsOrigins"`
	// InteractionLimit caps like, unlike and view calls per client IP per
	// InteractionWindow. Zero disables the limit.
	InteractionLimit  int           `yaml:"interactionLimit"`
	InteractionWindow time.Duration `yaml:"interactionWindow"`
}

// PostgresConfig holds PostgreSQL connection parameters for the recipe store.
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
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the query cache and the distributed rebuild lock.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings used by the counter-sync
// outbox.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	CounterUpdates string `yaml:"counterUpdates"`
}

// SearchConfig describes the search engine the index lives in.
type SearchConfig struct {
	// Driver is "elasticsearch" or "memory".
	Driver         string        `yaml:"driver"`
	Addresses      []string      `yaml:"addresses"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Index          string        `yaml:"index"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// RebuildConfig controls the administrative index rebuild.
type RebuildConfig struct {
	ConfirmAttempts int           `yaml:"confirmAttempts"`
	ConfirmInterval time.Duration `yaml:"confirmInterval"`
	BatchSize       int           `yaml:"batchSize"`
	// LockTTL is the Redis lease expiry; the holder renews it every third of
	// the TTL, so it only bounds how long a crashed rebuild blocks others.
	LockTTL       time.Duration `yaml:"lockTTL"`
	RetryAttempts int           `yaml:"retryAttempts"`
}

// QueryConfig holds relevance tuning and paging limits for the query path.
type QueryConfig struct {
	DefaultPageSize    int     `yaml:"defaultPageSize"`
	MaxPageSize        int     `yaml:"maxPageSize"`
	RescoreWindow      int     `yaml:"rescoreWindow"`
	PhraseSlop         int     `yaml:"phraseSlop"`
	QueryWeight        float64 `yaml:"queryWeight"`
	RescoreQueryWeight float64 `yaml:"rescoreQueryWeight"`
	LikesFactor        float64 `yaml:"likesFactor"`
	ClicksFactor       float64 `yaml:"clicksFactor"`
	FallbackPlain      bool    `yaml:"fallbackPlain"`
}

// SyncConfig controls how counter changes reach the index.
type SyncConfig struct {
	// Mode is "direct" (partial update from the API process) or "kafka".
	Mode      string        `yaml:"mode"`
	QueueSize int           `yaml:"queueSize"`
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SynonymsConfig points at an optional YAML synonym file. When Path is empty
// the built-in table is used.
type SynonymsConfig struct {
	Path string `yaml:"path"`
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
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
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

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	switch c.Search.Driver {
	case "elasticsearch":
		if len(c.Search.Addresses) == 0 {
			return fmt.Errorf("search.addresses is required for the elasticsearch driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown search.driver %q", c.Search.Driver)
	}
	if strings.TrimSpace(c.Search.Index) == "" {
		return fmt.Errorf("search.index must not be empty")
	}
	switch c.Sync.Mode {
	case "direct", "kafka":
	default:
		return fmt.Errorf("unknown sync.mode %q", c.Sync.Mode)
	}
	if c.Query.DefaultPageSize < 1 || c.Query.MaxPageSize < c.Query.DefaultPageSize {
		return fmt.Errorf("query page sizes invalid: default=%d max=%d", c.Query.DefaultPageSize, c.Query.MaxPageSize)
	}
	if c.Server.InteractionLimit > 0 && c.Server.InteractionWindow <= 0 {
		return fmt.Errorf("server.interactionWindow must be positive when interactionLimit is set")
	}
	if c.Rebuild.ConfirmAttempts < 1 {
		return fmt.Errorf("rebuild.confirmAttempts must be positive")
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			CORSOrigins:       []string{"http://localhost:3000"},
			InteractionLimit:  60,
			InteractionWindow: time.Minute,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "recetas",
			User:            "recetas",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "recipe-search-sync",
			Topics: KafkaTopics{
				CounterUpdates: "recipe-counter-updates",
			},
		},
		Search: SearchConfig{
			Driver:         "elasticsearch",
			Addresses:      []string{"http://localhost:9200"},
			Index:          "recetas",
			RequestTimeout: 10 * time.Second,
		},
		Rebuild: RebuildConfig{
			ConfirmAttempts: 10,
			ConfirmInterval: 500 * time.Millisecond,
			BatchSize:       500,
			LockTTL:         time.Minute,
			RetryAttempts:   3,
		},
		Query: QueryConfig{
			DefaultPageSize:    10,
			MaxPageSize:        100,
			RescoreWindow:      50,
			PhraseSlop:         3,
			QueryWeight:        0.7,
			RescoreQueryWeight: 1.8,
			LikesFactor:        1,
			ClicksFactor:       0.5,
			FallbackPlain:      true,
		},
		Sync: SyncConfig{
			Mode:      "direct",
			QueueSize: 1024,
			Workers:   2,
			Timeout:   5 * time.Second,
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

// applyEnvOverrides reads RS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RS_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("RS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v, ok := os.LookupEnv("RS_REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RS_SEARCH_DRIVER"); v != "" {
		cfg.Search.Driver = v
	}
	if v := os.Getenv("RS_SEARCH_ADDRESSES"); v != "" {
		cfg.Search.Addresses = strings.Split(v, ",")
	}
	if v := os.Getenv("RS_SEARCH_USERNAME"); v != "" {
		cfg.Search.Username = v
	}
	if v := os.Getenv("RS_SEARCH_PASSWORD"); v != "" {
		cfg.Search.Password = v
	}
	if v := os.Getenv("RS_SEARCH_INDEX"); v != "" {
		cfg.Search.Index = v
	}
	if v := os.Getenv("RS_SEARCH_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.RequestTimeout = d
		}
	}
	if v := os.Getenv("RS_SYNC_MODE"); v != "" {
		cfg.Sync.Mode = v
	}
	if v := os.Getenv("RS_SYNONYMS_PATH"); v != "" {
		cfg.Synonyms.Path = v
	}
	if v := os.Getenv("RS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
