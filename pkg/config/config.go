// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Corpus, Retrieval, Sources, LLM,
// Pipeline, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Sources   SourcesConfig   `yaml:"sources"`
	LLM       LLMConfig       `yaml:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	// AdminToken guards reinitialize and uploads. Empty leaves them open.
	AdminToken string `yaml:"adminToken"`
	// ResearchPerMinute caps research runs per client. Zero disables it.
	ResearchPerMinute int `yaml:"researchPerMinute"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty Host
// disables run history and analytics snapshots.
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
	SnapshotEvery   time.Duration `yaml:"snapshotEvery"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables event publishing.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ResearchEvents string `yaml:"researchEvents"`
	CorpusEvents   string `yaml:"corpusEvents"`
}

// RedisConfig holds Redis connection and fetch-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// CorpusConfig controls where local documents live and how they are chunked.
type CorpusConfig struct {
	FilesDir     string `yaml:"filesDir"`
	ChunkSize    int    `yaml:"chunkSize"`
	ChunkOverlap int    `yaml:"chunkOverlap"`
}

// RetrievalConfig controls local index queries and excerpt truncation.
type RetrievalConfig struct {
	TopK             int `yaml:"topK"`
	MaxSnippetLength int `yaml:"maxSnippetLength"`
}

// ProviderConfig configures one external evidence provider.
type ProviderConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BaseURL        string        `yaml:"baseUrl"`
	MaxItems       int           `yaml:"maxItems"`
	SearchLimit    int           `yaml:"searchLimit"`
	PolitenessWait time.Duration `yaml:"politenessWait"`
	FetchTimeout   time.Duration `yaml:"fetchTimeout"`
}

// SourcesConfig holds the per-provider settings.
type SourcesConfig struct {
	UserAgent string         `yaml:"userAgent"`
	Wikipedia ProviderConfig `yaml:"wikipedia"`
	Arxiv     ProviderConfig `yaml:"arxiv"`
}

// LLMConfig configures the OpenAI-compatible generation endpoint.
type LLMConfig struct {
	BaseURL       string        `yaml:"baseUrl"`
	APIKey        string        `yaml:"apiKey"`
	Model         string        `yaml:"model"`
	Temperature   float32       `yaml:"temperature"`
	MaxTokens     int           `yaml:"maxTokens"`
	RetryAttempts int           `yaml:"retryAttempts"`
	CallTimeout   time.Duration `yaml:"callTimeout"`
}

// PipelineConfig bounds a single research run.
type PipelineConfig struct {
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

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result. Missing values keep their defaults.
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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects parameter combinations the chunker and retriever cannot
// work with. Errors wrap ErrConfig.
func (c *Config) Validate() error {
	if c.Corpus.ChunkSize <= 0 {
		return apperrors.Newf(apperrors.ErrConfig, 0, "chunkSize must be positive, got %d", c.Corpus.ChunkSize)
	}
	if c.Corpus.ChunkOverlap < 0 || c.Corpus.ChunkOverlap >= c.Corpus.ChunkSize {
		return apperrors.Newf(apperrors.ErrConfig, 0,
			"chunkOverlap must be in [0, chunkSize), got overlap=%d size=%d",
			c.Corpus.ChunkOverlap, c.Corpus.ChunkSize)
	}
	if c.Retrieval.TopK <= 0 {
		return apperrors.Newf(apperrors.ErrConfig, 0, "retrieval topK must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MaxSnippetLength <= 0 {
		return apperrors.Newf(apperrors.ErrConfig, 0, "maxSnippetLength must be positive, got %d", c.Retrieval.MaxSnippetLength)
	}
	for name, p := range map[string]ProviderConfig{"wikipedia": c.Sources.Wikipedia, "arxiv": c.Sources.Arxiv} {
		if p.MaxItems < 1 || p.MaxItems > 10 {
			return apperrors.Newf(apperrors.ErrConfig, 0, "%s maxItems must be in [1,10], got %d", name, p.MaxItems)
		}
	}
	return nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8000,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      180 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			MaxUploadBytes:    32 << 20,
			ResearchPerMinute: 10,
		},
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "research",
			User:            "research",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			SnapshotEvery:   time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "research-assistant",
			Topics: KafkaTopics{
				ResearchEvents: "research-events",
				CorpusEvents:   "corpus-events",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 6 * time.Hour,
		},
		Corpus: CorpusConfig{
			FilesDir:     "files",
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK:             4,
			MaxSnippetLength: 800,
		},
		Sources: SourcesConfig{
			UserAgent: "ResearchAssistantBot/1.0",
			Wikipedia: ProviderConfig{
				Enabled:        true,
				BaseURL:        "https://en.wikipedia.org",
				MaxItems:       3,
				SearchLimit:    10,
				PolitenessWait: time.Second,
				FetchTimeout:   10 * time.Second,
			},
			Arxiv: ProviderConfig{
				Enabled:        true,
				BaseURL:        "https://export.arxiv.org",
				MaxItems:       3,
				SearchLimit:    10,
				PolitenessWait: 3 * time.Second,
				FetchTimeout:   15 * time.Second,
			},
		},
		LLM: LLMConfig{
			BaseURL:       "https://api.groq.com/openai/v1",
			Model:         "llama-3.1-8b-instant",
			Temperature:   0,
			MaxTokens:     1024,
			RetryAttempts: 2,
			CallTimeout:   60 * time.Second,
		},
		Pipeline: PipelineConfig{
			Timeout: 150 * time.Second,
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

// applyEnvOverrides reads RA_* environment variables and overrides the
// corresponding config fields. GROQ_API_KEY is honoured as a fallback for
// the LLM key.
func applyEnvOverrides(cfg *Config) {
	setInt("RA_SERVER_PORT", &cfg.Server.Port)
	setString("RA_ADMIN_TOKEN", &cfg.Server.AdminToken)
	setInt("RA_RESEARCH_PER_MINUTE", &cfg.Server.ResearchPerMinute)
	setString("RA_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("RA_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("RA_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("RA_POSTGRES_USER", &cfg.Postgres.User)
	setString("RA_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("RA_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	if v := os.Getenv("RA_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("RA_REDIS_ADDR", &cfg.Redis.Addr)
	setString("RA_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("RA_FILES_DIR", &cfg.Corpus.FilesDir)
	setInt("RA_CHUNK_SIZE", &cfg.Corpus.ChunkSize)
	setInt("RA_CHUNK_OVERLAP", &cfg.Corpus.ChunkOverlap)
	setInt("RA_TOP_K", &cfg.Retrieval.TopK)
	setInt("RA_MAX_SNIPPET_LENGTH", &cfg.Retrieval.MaxSnippetLength)
	setInt("RA_WIKIPEDIA_MAX_ARTICLES", &cfg.Sources.Wikipedia.MaxItems)
	setInt("RA_ARXIV_MAX_PAPERS", &cfg.Sources.Arxiv.MaxItems)
	setString("RA_LLM_BASE_URL", &cfg.LLM.BaseURL)
	setString("RA_LLM_MODEL", &cfg.LLM.Model)
	if v := os.Getenv("RA_LLM_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(t)
		}
	}
	if cfg.LLM.APIKey == "" {
		setString("GROQ_API_KEY", &cfg.LLM.APIKey)
	}
	setString("RA_LLM_API_KEY", &cfg.LLM.APIKey)
	if v := os.Getenv("RA_PIPELINE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.Timeout = d
		}
	}
	setString("RA_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("RA_LOGGING_FORMAT", &cfg.Logging.Format)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
