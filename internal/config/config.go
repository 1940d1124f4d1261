package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

const (
	StoreWeaviate = "weaviate"
	StoreLocal    = "local"

	EmbedderGemini  = "gemini"
	EmbedderHashing = "hashing"
)

type Config struct {
	// Corpus & Index
	CorpusPath     string `envconfig:"CORPUS_PATH" default:"data/transcripts.json"`
	CollectionName string `envconfig:"COLLECTION_NAME" default:"video-descriptions"`
	VectorStore    string `envconfig:"VECTOR_STORE" default:"weaviate"`
	LocalStoreDir  string `envconfig:"LOCAL_STORE_DIR" default:"data/youtube_videos_db"`
	IndexBatchSize int    `envconfig:"INDEX_BATCH_SIZE" default:"12"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	// Models
	Embedder                 string `envconfig:"EMBEDDER" default:"gemini"`
	EmbeddingModel           string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	HashingDimension         int    `envconfig:"HASHING_DIMENSION" default:"384"`
	GeminiAPIKey             string `envconfig:"GEMINI_API_KEY"`
	GenerationModel          string `envconfig:"GENERATION_MODEL" default:"gemini-1.5-flash"`
	GenerationTimeoutSeconds int    `envconfig:"GENERATION_TIMEOUT_SECONDS" default:"60"`
	SearchLimit              int    `envconfig:"SEARCH_LIMIT" default:"3"`

	// Optional YAML persona applied at startup.
	AssistantProfilePath string `envconfig:"ASSISTANT_PROFILE_PATH"`

	// Postgres is optional; profiles and failed jobs are disabled without it.
	DBHost        string `envconfig:"DB_HOST"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"coach"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"coach"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	NSQLookupd          string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost            string `envconfig:"NSQD_HOST"`
	NSQDHTTP            string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	EnableRebuildWorker bool   `envconfig:"ENABLE_REBUILD_WORKER" default:"false"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.CorpusPath == "" {
		return fmt.Errorf("%w: CORPUS_PATH", ErrMissingRequired)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("%w: COLLECTION_NAME", ErrMissingRequired)
	}

	switch c.VectorStore {
	case StoreWeaviate:
		if c.WeaviateHost == "" {
			return fmt.Errorf("%w: WEAVIATE_HOST", ErrMissingRequired)
		}
	case StoreLocal:
		if c.LocalStoreDir == "" {
			return fmt.Errorf("%w: LOCAL_STORE_DIR", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: VECTOR_STORE=%q", ErrInvalidValue, c.VectorStore)
	}

	switch c.Embedder {
	case EmbedderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY (required by EMBEDDER=gemini)", ErrMissingRequired)
		}
	case EmbedderHashing:
		if c.HashingDimension <= 0 {
			return fmt.Errorf("%w: HASHING_DIMENSION must be positive", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%w: EMBEDDER=%q", ErrInvalidValue, c.Embedder)
	}

	if c.IndexBatchSize <= 0 {
		return fmt.Errorf("%w: INDEX_BATCH_SIZE must be positive", ErrInvalidValue)
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("%w: SEARCH_LIMIT must be positive", ErrInvalidValue)
	}
	return nil
}

// PostgresEnabled reports whether a database was configured.
func (c *Config) PostgresEnabled() bool {
	return c.DBHost != ""
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}
