package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"

	"local_rag/internal/chunker"
	"local_rag/internal/embedding"
	"local_rag/internal/store"
)

const (
	EmptyStoreEmpty = "empty"
	EmptyStoreError = "error"
)

type Config struct {
	DataDir string   `env:"DATA_DIR" envDefault:"./data"`
	Include []string `env:"INCLUDE" envSeparator:"," envDefault:"**/*.txt,**/*.md,**/*.pdf,**/*.docx"`
	Exclude []string `env:"EXCLUDE" envSeparator:","`

	StorePath     string `env:"STORE_PATH" envDefault:"./storage/vector_db"`
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"chromem"`
	StoreCompress bool   `env:"STORE_COMPRESS" envDefault:"false"`
	Collection    string `env:"COLLECTION" envDefault:"documents"`
	Namespace     string `env:"NAMESPACE"`

	EmbedProvider    string  `env:"EMBED_PROVIDER" envDefault:"ollama"`
	OllamaURL        string  `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbedModel string  `env:"OLLAMA_EMBED_MODEL" envDefault:"nomic-embed-text"`
	OllamaPull       bool    `env:"OLLAMA_PULL" envDefault:"true"`
	OpenAIAPIKey     string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string  `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIEmbedModel string  `env:"OPENAI_EMBED_MODEL" envDefault:"text-embedding-3-small"`
	EmbedDimensions  int     `env:"EMBED_DIMENSIONS" envDefault:"384"`
	EmbedRateLimit   float64 `env:"EMBED_RATE_LIMIT" envDefault:"0"`
	EmbedBurst       int     `env:"EMBED_BURST" envDefault:"1"`

	ChunkSize    int    `env:"CHUNK_SIZE" envDefault:"500"`
	ChunkOverlap int    `env:"CHUNK_OVERLAP" envDefault:"50"`
	ChunkMethod  string `env:"CHUNK_METHOD" envDefault:"auto"`

	MaxConcurrency   int     `env:"MAX_CONCURRENCY" envDefault:"4"`
	TopK             int     `env:"TOP_K" envDefault:"3"`
	MinSimilarity    float32 `env:"MIN_SIMILARITY" envDefault:"-1"`
	EmptyStorePolicy string  `env:"EMPTY_STORE_POLICY" envDefault:"empty"`
	MaxContextChars  int     `env:"MAX_CONTEXT_CHARS" envDefault:"4000"`
}

func Init(cfg interface{}) error {
	return env.Parse(cfg)
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := Init(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Chunking returns the chunk window settings.
func (c *Config) Chunking() chunker.Config {
	return chunker.Config{ChunkSize: c.ChunkSize, Overlap: c.ChunkOverlap}
}

// Embedding returns the embedder options.
func (c *Config) Embedding() embedding.Options {
	return embedding.Options{
		Provider:      c.EmbedProvider,
		OllamaURL:     strings.TrimRight(c.OllamaURL, "/"),
		OllamaModel:   c.OllamaEmbedModel,
		OpenAIBaseURL: c.OpenAIBaseURL,
		OpenAIAPIKey:  c.OpenAIAPIKey,
		OpenAIModel:   c.OpenAIEmbedModel,
		Dimensions:    c.EmbedDimensions,
		RateLimit:     c.EmbedRateLimit,
		Burst:         c.EmbedBurst,
	}
}

// Store returns the vector store options.
func (c *Config) Store() store.Options {
	return store.Options{
		Backend:    c.StoreBackend,
		Path:       c.StorePath,
		Collection: c.Collection,
		Namespace:  c.Namespace,
		Compress:   c.StoreCompress,
	}
}

// MetadataFile is the index metadata kept next to the store files, one per
// collection and namespace.
func (c *Config) MetadataFile() string {
	return filepath.Join(c.StorePath, "metadata_"+store.CollectionName(c.Collection, c.Namespace)+".json")
}

// Validate reports every invalid setting. Chunking errors wrap
// chunker.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Chunking().Validate(); err != nil {
		errs = append(errs, err)
	}
	if !chunker.ValidMethod(c.ChunkMethod) {
		errs = append(errs, fmt.Errorf("%w: unknown CHUNK_METHOD %q", chunker.ErrInvalidConfiguration, c.ChunkMethod))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR must be set"))
	}
	if c.StorePath == "" {
		errs = append(errs, errors.New("STORE_PATH must be set"))
	}
	if !store.ValidNamespace(c.Namespace) {
		errs = append(errs, fmt.Errorf("NAMESPACE may hold letters, digits and underscores only, got %q", c.Namespace))
	}
	if !store.ValidBackend(c.StoreBackend) {
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if !embedding.ValidProvider(c.EmbedProvider) {
		errs = append(errs, fmt.Errorf("unknown EMBED_PROVIDER %q", c.EmbedProvider))
	}
	if strings.EqualFold(c.EmbedProvider, embedding.ProviderOpenAI) && c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
	}
	if c.EmbedDimensions < 0 {
		errs = append(errs, fmt.Errorf("EMBED_DIMENSIONS must not be negative, got %d", c.EmbedDimensions))
	}
	if c.EmbedRateLimit < 0 {
		errs = append(errs, fmt.Errorf("EMBED_RATE_LIMIT must not be negative, got %v", c.EmbedRateLimit))
	}
	if c.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("TOP_K must be positive, got %d", c.TopK))
	}
	switch c.EmptyStorePolicy {
	case EmptyStoreEmpty, EmptyStoreError:
	default:
		errs = append(errs, fmt.Errorf("EMPTY_STORE_POLICY must be %q or %q, got %q", EmptyStoreEmpty, EmptyStoreError, c.EmptyStorePolicy))
	}
	if c.MinSimilarity < -1 || c.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("MIN_SIMILARITY must be within [-1, 1], got %v", c.MinSimilarity))
	}
	if c.MaxContextChars <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONTEXT_CHARS must be positive, got %d", c.MaxContextChars))
	}
	return errors.Join(errs...)
}
