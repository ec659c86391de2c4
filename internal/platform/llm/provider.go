// Package llm holds the text-generation providers and the ordered failover
// client the drill pipeline and the enrichment lane call through.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider is one configured chat-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Embedder is implemented by providers that also serve embeddings. The
// method set matches go-embedding's Embedder so providers plug into its
// helpers directly.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

const (
	KindOpenAI = "openai"
	KindOllama = "ollama"
)

type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Kind        string        `yaml:"kind"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Model       string        `yaml:"model"`
	EmbedModel  string        `yaml:"embed_model"`
	ProxyURL    string        `yaml:"proxy_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Temperature *float64      `yaml:"temperature"`
}

// HTTPError is a non-2xx provider response. Body keeps the raw response so
// failures can be logged and classified.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, truncate(e.Body, 512))
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// RawResponse returns whatever body the provider sent back with err, if any.
func RawResponse(err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Body
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
