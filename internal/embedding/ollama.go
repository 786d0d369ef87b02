package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/philippgille/chromem-go"
)

// OllamaEmbedder embeds through a local Ollama server.
type OllamaEmbedder struct {
	model string
	fn    chromem.EmbeddingFunc
}

// NewOllamaEmbedder returns an embedder for model served at baseURL
// (e.g. http://localhost:11434).
func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &OllamaEmbedder{
		model: model,
		fn:    chromem.NewEmbeddingFuncOllama(model, baseURL+"/api"),
	}
}

func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := o.fn(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama %s: %w", o.model, err)
	}
	return vec, nil
}

// EnsureOllamaModel checks that Ollama is reachable at baseURL and that
// model is available, pulling it when pull is set.
func EnsureOllamaModel(ctx context.Context, client *http.Client, baseURL, model string, pull bool) error {
	if client == nil {
		client = http.DefaultClient
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	available, err := ollamaModels(ctx, client, baseURL)
	if err != nil {
		return fmt.Errorf("ollama is not running or not reachable at %s: %w", baseURL, err)
	}
	if hasModel(available, model) {
		log.Printf("Model %s is available", model)
		return nil
	}
	if !pull {
		return fmt.Errorf("model %s not found in ollama", model)
	}

	log.Printf("Model %s not found, pulling...", model)
	b, err := json.Marshal(struct {
		Name   string `json:"name"`
		Stream bool   `json:"stream"`
	}{Name: model, Stream: false})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/pull", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to pull model %s: %w", model, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to pull model %s: status %d: %s", model, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	log.Printf("Model %s pulled successfully", model)
	return nil
}

func ollamaModels(ctx context.Context, client *http.Client, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// hasModel matches model with or without the implicit ":latest" tag.
func hasModel(available []string, model string) bool {
	for _, name := range available {
		if name == model || name == model+":latest" || strings.TrimSuffix(name, ":latest") == model {
			return true
		}
	}
	return false
}
