// Package config loads docsrag settings from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hubenschmidt/go-docsrag/core"
	"github.com/hubenschmidt/go-docsrag/docs"
	"github.com/hubenschmidt/go-docsrag/engine"
	"github.com/hubenschmidt/go-docsrag/logger"
)

// Store types.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePgVector = "pgvector"
	StoreSupabase = "supabase"
	StoreQdrant   = "qdrant"
)

// Source types.
const (
	SourceHTTP  = "http"
	SourceMinIO = "minio"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      logger.Config  `yaml:"log"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	LLM      LLMConfig      `yaml:"llm"`
	Store    StoreConfig    `yaml:"store"`
	Source   SourceConfig   `yaml:"source"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

type PipelineConfig struct {
	EmbeddingModel  string             `yaml:"embedding_model"`
	CompletionModel string             `yaml:"completion_model"`
	Threshold       float64            `yaml:"threshold"`
	Limit           int                `yaml:"limit"`
	FetchPolicy     engine.FetchPolicy `yaml:"fetch_policy"`
	Separator       string             `yaml:"separator"`
	Timeout         time.Duration      `yaml:"timeout"`
}

type LLMConfig struct {
	OpenAIKey     string        `yaml:"openai_api_key"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	AnthropicKey  string        `yaml:"anthropic_api_key"`
	OllamaURL     string        `yaml:"ollama_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
}

type StoreConfig struct {
	Type        string       `yaml:"type"`
	Dimension   int          `yaml:"dimension"`
	SQLitePath  string       `yaml:"sqlite_path"`
	DatabaseURL string       `yaml:"database_url"`
	SupabaseURL string       `yaml:"supabase_url"`
	SupabaseKey string       `yaml:"supabase_anon_key"`
	MaxRetries  int          `yaml:"max_retries"`
	Qdrant      QdrantConfig `yaml:"qdrant"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

type SourceConfig struct {
	Type        string        `yaml:"type"`
	URLTemplate string        `yaml:"url_template"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	MinIO       MinIOConfig   `yaml:"minio"`
}

type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Extension       string `yaml:"extension"`
}

type MetricsConfig struct {
	Namespace               string `yaml:"namespace"`
	EnableDefaultCollectors bool   `yaml:"enable_default_collectors"`
}

type TracingConfig struct {
	EnableExport bool   `yaml:"enable_export"`
	Endpoint     string `yaml:"endpoint"`
	Environment  string `yaml:"environment"`
}

func Default() *Config {
	pipeline := engine.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"*"},
			ReadTimeout:    15 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Log: logger.Config{Level: logger.Info, ServiceName: "docsrag"},
		Pipeline: PipelineConfig{
			EmbeddingModel:  pipeline.Models.Embedding,
			CompletionModel: pipeline.Models.Completion,
			Threshold:       pipeline.Threshold,
			Limit:           pipeline.Limit,
			FetchPolicy:     pipeline.FetchPolicy,
			Separator:       pipeline.Separator,
			Timeout:         pipeline.Timeout,
		},
		LLM: LLMConfig{
			Timeout:    60 * time.Second,
			MaxRetries: 2,
		},
		Store: StoreConfig{
			Type:       StoreSQLite,
			Dimension:  1536,
			SQLitePath: "docsrag.db",
			MaxRetries: 2,
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "documents",
			},
		},
		Source: SourceConfig{
			Type:        SourceHTTP,
			URLTemplate: docs.DefaultURLTemplate,
			Timeout:     30 * time.Second,
			MaxRetries:  2,
			MinIO: MinIOConfig{
				Prefix:    "pages/",
				Extension: ".mdx",
			},
		},
		Metrics: MetricsConfig{Namespace: "docsrag", EnableDefaultCollectors: true},
		Tracing: TracingConfig{Environment: "development"},
	}
}

// Load reads path over the defaults, then applies .env and environment
// overrides. A missing file yields the defaults. An empty path skips the
// file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// .env never overrides variables already set in the process.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.LLM.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.LLM.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&c.LLM.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&c.LLM.OllamaURL, "OLLAMA_URL")

	setString(&c.Store.Type, "STORE_TYPE")
	setString(&c.Store.DatabaseURL, "DATABASE_URL")
	setString(&c.Store.SupabaseURL, "SUPABASE_URL")
	setString(&c.Store.SupabaseKey, "SUPABASE_ANON_KEY")
	setString(&c.Store.Qdrant.Host, "QDRANT_HOST")
	setString(&c.Store.Qdrant.APIKey, "QDRANT_API_KEY")
	setString(&c.Store.Qdrant.Collection, "QDRANT_COLLECTION")

	setString(&c.Source.Type, "SOURCE_TYPE")
	setString(&c.Source.MinIO.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Source.MinIO.AccessKeyID, "MINIO_ACCESS_KEY")
	setString(&c.Source.MinIO.SecretAccessKey, "MINIO_SECRET_KEY")
	setString(&c.Source.MinIO.Bucket, "MINIO_BUCKET")

	setString(&c.Server.Addr, "ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")

	if err := setInt(&c.Store.Qdrant.Port, "QDRANT_PORT"); err != nil {
		return err
	}
	if err := setBool(&c.Source.MinIO.UseSSL, "MINIO_USE_SSL"); err != nil {
		return err
	}
	return setBool(&c.Tracing.EnableExport, "OTEL_EXPORT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", core.ErrInvalidConfig, key, v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a boolean", core.ErrInvalidConfig, key, v)
	}
	*dst = b
	return nil
}

// EngineConfig converts the pipeline section for engine.NewEngine.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Models: core.DefaultModelConfig().
			WithEmbedding(c.Pipeline.EmbeddingModel).
			WithCompletion(c.Pipeline.CompletionModel),
		Threshold:   c.Pipeline.Threshold,
		Limit:       c.Pipeline.Limit,
		FetchPolicy: c.Pipeline.FetchPolicy,
		Separator:   c.Pipeline.Separator,
		Timeout:     c.Pipeline.Timeout,
	}
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{core.ErrInvalidConfig}, args...)...))
	}

	if err := c.EngineConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.EmbeddingModel == "" || c.Pipeline.CompletionModel == "" {
		fail("embedding and completion models are required")
	}

	switch c.Store.Type {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			fail("store.sqlite_path is required for sqlite")
		}
	case StorePgVector:
		if c.Store.DatabaseURL == "" {
			fail("DATABASE_URL is required for pgvector")
		}
	case StoreSupabase:
		if c.Store.SupabaseURL == "" || c.Store.SupabaseKey == "" {
			fail("SUPABASE_URL and SUPABASE_ANON_KEY are required for supabase")
		}
	case StoreQdrant:
		if c.Store.Qdrant.Host == "" || c.Store.Qdrant.Collection == "" {
			fail("qdrant host and collection are required")
		}
	default:
		fail("unknown store type %q", c.Store.Type)
	}
	if c.Store.Dimension <= 0 {
		fail("store.dimension must be positive")
	}

	switch c.Source.Type {
	case SourceHTTP:
		if strings.Count(c.Source.URLTemplate, "%s") != 1 {
			fail("source.url_template must contain exactly one %%s")
		}
	case SourceMinIO:
		if c.Source.MinIO.Endpoint == "" || c.Source.MinIO.Bucket == "" {
			fail("MINIO_ENDPOINT and MINIO_BUCKET are required for minio")
		}
	default:
		fail("unknown source type %q", c.Source.Type)
	}

	return errors.Join(errs...)
}

// ValidateForIndexing is Validate plus the rules for docsrag-index. The
// memory store lives only as long as the process, so indexing into it
// would discard every document on exit.
func (c *Config) ValidateForIndexing() error {
	err := c.Validate()
	if c.Store.Type == StoreMemory {
		err = errors.Join(err, fmt.Errorf("%w: store type %q does not persist; index into %s, %s, %s or %s",
			core.ErrInvalidConfig, StoreMemory, StoreSQLite, StorePgVector, StoreSupabase, StoreQdrant))
	}
	return err
}
