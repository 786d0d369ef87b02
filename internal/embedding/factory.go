package embedding

import (
	"fmt"
	"strings"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// Options selects and configures an embedding provider.
type Options struct {
	Provider string

	OllamaURL   string
	OllamaModel string

	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	Dimensions int

	RateLimit float64
	Burst     int
}

// New builds the configured embedder, rate-limited and checked.
func New(opts Options) (Embedder, error) {
	var e Embedder
	switch strings.ToLower(opts.Provider) {
	case ProviderOllama:
		e = NewOllamaEmbedder(opts.OllamaURL, opts.OllamaModel)
	case ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		e = NewOpenAIEmbedder(opts.OpenAIBaseURL, opts.OpenAIAPIKey, opts.OpenAIModel, opts.Dimensions)
	case ProviderHash:
		e = NewHashEmbedder(opts.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", opts.Provider)
	}

	return Checked(NewRateLimited(e, opts.RateLimit, opts.Burst)), nil
}

// ValidProvider reports whether New accepts provider.
func ValidProvider(provider string) bool {
	switch strings.ToLower(provider) {
	case ProviderOllama, ProviderOpenAI, ProviderHash:
		return true
	}
	return false
}
