package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

type ollamaProvider struct {
	log         *logger.Logger
	name        string
	client      *api.Client
	model       string
	embedModel  string
	temperature *float64
}

func NewOllamaProvider(log *logger.Logger, cfg ProviderConfig) (Provider, error) {
	if log == nil {
		log = logger.Nop()
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "http://localhost:11434"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("provider %q: invalid base URL: %w", cfg.Name, err)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("provider %q: model required", cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	name := cfg.Name
	if name == "" {
		name = KindOllama + ":" + cfg.Model
	}
	return &ollamaProvider{
		log:         log.With("provider", name),
		name:        name,
		client:      api.NewClient(u, &http.Client{Timeout: timeout}),
		model:       cfg.Model,
		embedModel:  strings.TrimSpace(cfg.EmbedModel),
		temperature: cfg.Temperature,
	}, nil
}

func (p *ollamaProvider) Name() string { return p.name }

func (p *ollamaProvider) Model() string { return p.embedModel }

func (p *ollamaProvider) Complete(ctx context.Context, system, user string) (string, error) {
	req := &api.GenerateRequest{
		Model:  p.model,
		System: system,
		Prompt: user,
		Stream: new(bool), // false
		Format: []byte(`"json"`),
	}
	if p.temperature != nil {
		req.Options = map[string]interface{}{"temperature": *p.temperature}
	}

	var full strings.Builder
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		full.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return full.String(), p.wrap(err, full.String())
	}
	return full.String(), nil
}

func (p *ollamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.embedModel == "" {
		return nil, fmt.Errorf("%s: no embed model configured", p.name)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	resp, err := p.client.Embed(ctx, &api.EmbedRequest{Model: p.embedModel, Input: texts})
	if err != nil {
		return nil, p.wrap(err, "")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%s: embeddings returned %d of %d", p.name, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// wrap maps ollama status errors onto HTTPError so callers classify every
// provider the same way.
func (p *ollamaProvider) wrap(err error, partial string) error {
	var se api.StatusError
	if errors.As(err, &se) {
		body := se.ErrorMessage
		if partial != "" {
			body += "; partial=" + partial
		}
		return &HTTPError{Provider: p.name, StatusCode: se.StatusCode, Body: body}
	}
	return fmt.Errorf("%s: %w", p.name, err)
}
