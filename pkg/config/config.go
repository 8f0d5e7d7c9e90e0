// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Poller, Dedup, Retrieval,
// Enrichment, Tier, etc.).
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
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Poller     PollerConfig     `yaml:"poller"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Tier       TierConfig       `yaml:"tier"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
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
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters for the duplicate gate.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	NewsIngest string `yaml:"newsIngest"`
}

// FeedSource is a single RSS feed endpoint.
type FeedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// TickerSource is an RSS endpoint template for symbol-specific stock news.
// The fetch URL is Template + SYMBOL + Suffix.
type TickerSource struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
	Suffix   string `yaml:"suffix"`
}

// PollerConfig controls the RSS poll cycle and the configured feed sources.
type PollerConfig struct {
	Interval        time.Duration           `yaml:"interval"`
	SourceDelay     time.Duration           `yaml:"sourceDelay"`
	FetchTimeout    time.Duration           `yaml:"fetchTimeout"`
	ItemsPerFeed    int                     `yaml:"itemsPerFeed"`
	Feeds           map[string][]FeedSource `yaml:"feeds"`
	TickerSources   []TickerSource          `yaml:"tickerSources"`
	TickerItemLimit int                     `yaml:"tickerItemLimit"`
}

// DedupConfig controls the duplicate gate's two cache tiers.
type DedupConfig struct {
	CacheSize int           `yaml:"cacheSize"`
	TTL       time.Duration `yaml:"ttl"`
}

// RetrievalConfig controls result sizing and the free-tier delivery delay.
type RetrievalConfig struct {
	DefaultLimit     int `yaml:"defaultLimit"`
	MaxLimit         int `yaml:"maxLimit"`
	OverfetchFactor  int `yaml:"overfetchFactor"`
	FreeDelayMinutes int `yaml:"freeDelayMinutes"`
}

// EnrichmentConfig controls the AI analysis sweep and provider settings.
type EnrichmentConfig struct {
	Enabled        bool          `yaml:"enabled"`
	SweepInterval  time.Duration `yaml:"sweepInterval"`
	BatchSize      int           `yaml:"batchSize"`
	RequestDelay   time.Duration `yaml:"requestDelay"`
	ProviderURL    string        `yaml:"providerUrl"`
	APIKey         string        `yaml:"apiKey"`
	Model          string        `yaml:"model"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	DailyQuota     int           `yaml:"dailyQuota"`
}

// TierConfig holds the external entitlement service endpoint.
type TierConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
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
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if len(cfg.Poller.Feeds) == 0 {
		cfg.Poller.Feeds = DefaultFeeds()
	}
	if len(cfg.Poller.TickerSources) == 0 {
		cfg.Poller.TickerSources = DefaultTickerSources()
	}
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
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
			Database:        "newsplatform",
			User:            "newsplatform",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "newsplatform-group",
			Topics: KafkaTopics{
				NewsIngest: "news-ingest",
			},
		},
		Poller: PollerConfig{
			Interval:        60 * time.Second,
			SourceDelay:     500 * time.Millisecond,
			FetchTimeout:    15 * time.Second,
			ItemsPerFeed:    5,
			TickerItemLimit: 10,
		},
		Dedup: DedupConfig{
			CacheSize: 1000,
			TTL:       24 * time.Hour,
		},
		Retrieval: RetrievalConfig{
			DefaultLimit:     20,
			MaxLimit:         100,
			OverfetchFactor:  3,
			FreeDelayMinutes: 15,
		},
		Enrichment: EnrichmentConfig{
			Enabled:        true,
			SweepInterval:  30 * time.Second,
			BatchSize:      10,
			RequestDelay:   200 * time.Millisecond,
			ProviderURL:    "https://api.groq.com/openai/v1",
			Model:          "llama-3.1-8b-instant",
			RequestTimeout: 30 * time.Second,
			DailyQuota:     14000,
		},
		Tier: TierConfig{
			BaseURL: "http://localhost:8090",
			Timeout: 5 * time.Second,
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

// applyEnvOverrides reads NP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("NP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("NP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("NP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("NP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("NP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("NP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("NP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("NP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("NP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("NP_ENRICHMENT_API_KEY"); v != "" {
		cfg.Enrichment.APIKey = v
	}
	if v := os.Getenv("NP_ENRICHMENT_PROVIDER_URL"); v != "" {
		cfg.Enrichment.ProviderURL = v
	}
	if v := os.Getenv("NP_ENRICHMENT_MODEL"); v != "" {
		cfg.Enrichment.Model = v
	}
	if v := os.Getenv("NP_TIER_BASE_URL"); v != "" {
		cfg.Tier.BaseURL = v
	}
	if v := os.Getenv("NP_TIER_API_KEY"); v != "" {
		cfg.Tier.APIKey = v
	}
	if v := os.Getenv("NP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("NP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
