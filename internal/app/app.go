package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"local_rag/internal/chunker"
	"local_rag/internal/config"
	"local_rag/internal/document"
	"local_rag/internal/embedding"
	"local_rag/internal/store"
)

type App struct {
	cfg      *config.Config
	store    store.Store
	embedder embedding.Embedder
	factory  *chunker.Factory
	loader   *document.Loader
	metadata *Metadata
	progress func(total int) ProgressReporter
}

// New wires an App from already constructed dependencies. The chunking
// configuration is validated here so that an invalid one fails before any
// document is touched.
func New(cfg *config.Config, embedder embedding.Embedder, st store.Store) (*App, error) {
	factory, err := chunker.NewFactory(cfg.Chunking())
	if err != nil {
		return nil, err
	}
	loader, err := document.NewLoader(cfg.DataDir, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:      cfg,
		store:    st,
		embedder: embedding.Checked(embedder),
		factory:  factory,
		loader:   loader,
		metadata: newMetadata(),
		progress: func(int) ProgressReporter { return nil },
	}, nil
}

// Open builds the configured embedder and store and returns an App using
// them.
func Open(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	embedder, err := embedding.New(cfg.Embedding())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	st, err := store.Open(cfg.Store())
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	a, err := New(cfg, embedder, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

// SetProgress enables a progress reporter for ingestion.
func (a *App) SetProgress(enabled bool) {
	a.progress = func(total int) ProgressReporter {
		p := NewIngestProgress(enabled)
		if p != nil {
			p.Start(total)
		}
		return p
	}
}

// CheckEmbedder makes sure the embedding backend can serve requests. For
// Ollama this checks the server and pulls the model when allowed. Only the
// operations that embed need it.
func (a *App) CheckEmbedder(ctx context.Context) error {
	if !strings.EqualFold(a.cfg.EmbedProvider, embedding.ProviderOllama) {
		return nil
	}
	client := &http.Client{Timeout: 10 * time.Minute}
	if err := embedding.EnsureOllamaModel(ctx, client, strings.TrimRight(a.cfg.OllamaURL, "/"), a.cfg.OllamaEmbedModel, a.cfg.OllamaPull); err != nil {
		return fmt.Errorf("ollama model check failed: %w", err)
	}
	return nil
}

// Init loads the index metadata and resets the index when the data
// directory changed since the last run.
func (a *App) Init(ctx context.Context) error {
	md, err := loadMetadata(a.cfg.MetadataFile())
	if err != nil {
		log.Printf("⚠️  Ignoring unreadable metadata: %v", err)
		md = newMetadata()
	}
	a.metadata = md

	absDataDir, err := filepath.Abs(a.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute data dir: %w", err)
	}
	if a.metadata.DataPath != "" && a.metadata.DataPath != absDataDir {
		log.Printf("Data directory changed from %s to %s, invalidating metadata and index...", a.metadata.DataPath, absDataDir)
		if err := a.store.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset vector store: %w", err)
		}
		a.metadata = newMetadata()
	}
	a.metadata.DataPath = absDataDir

	n, err := a.store.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 && len(a.metadata.Files) > 0 {
		log.Printf("Vector store is empty, forgetting %d indexed files", len(a.metadata.Files))
		a.metadata.Files = make(map[string]FileInfo)
	}
	log.Printf("Index holds %d records from %d files", n, len(a.metadata.Files))

	return a.metadata.save(a.cfg.MetadataFile())
}

// Reset drops every record and the index metadata.
func (a *App) Reset(ctx context.Context) error {
	if err := a.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset vector store: %w", err)
	}
	dataPath := a.metadata.DataPath
	a.metadata = newMetadata()
	a.metadata.DataPath = dataPath
	if err := a.metadata.save(a.cfg.MetadataFile()); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	log.Printf("🗑️  Index reset")
	return nil
}

// Stats summarises the index.
type Stats struct {
	Namespace string     `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Records   int        `json:"records" yaml:"records"`
	DataPath  string     `json:"data_path" yaml:"data_path"`
	Files     []FileInfo `json:"files" yaml:"files"`
}

func (a *App) Stats(ctx context.Context) (Stats, error) {
	n, err := a.store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Namespace: a.cfg.Namespace,
		Records:   n,
		DataPath:  a.metadata.DataPath,
		Files:     a.metadata.sortedFiles(),
	}, nil
}

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

func (a *App) Close() error {
	return a.store.Close()
}
