package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

var tracer = otel.Tracer("vocabdrill/llm")

type Completion struct {
	Text       string
	ProviderID string
}

// Client tries providers in order and returns the first success.
type Client struct {
	log         *logger.Logger
	providers   []Provider
	callTimeout time.Duration
}

func NewClient(log *logger.Logger, providers []Provider, callTimeout time.Duration) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("llm client requires at least one provider")
	}
	return &Client{
		log:         log.With("service", "LLMFailoverClient"),
		providers:   providers,
		callTimeout: callTimeout,
	}, nil
}

func (c *Client) Providers() []Provider { return c.providers }

// Generate returns *AllProvidersFailedError when every provider fails.
// Caller cancellation stops the walk immediately.
func (c *Client) Generate(ctx context.Context, system, user string) (Completion, error) {
	ctx, span := tracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(attribute.Int("llm.providers", len(c.providers)))

	var attempts []*ProviderError
	for i, p := range c.providers {
		text, err := c.try(ctx, p, system, user)
		if err == nil {
			span.SetAttributes(attribute.String("llm.provider", p.Name()), attribute.Int("llm.attempts", i+1))
			return Completion{Text: text, ProviderID: p.Name()}, nil
		}

		pe := &ProviderError{Provider: p.Name(), Err: err, Raw: RawResponse(err)}
		if pe.Raw == "" {
			pe.Raw = text
		}
		attempts = append(attempts, pe)

		if ctx.Err() != nil {
			break
		}
		next := ""
		if i+1 < len(c.providers) {
			next = c.providers[i+1].Name()
		}
		c.log.Warn("LLM provider failed",
			"provider", p.Name(),
			"attempt", i+1,
			"error", err.Error(),
			"raw_response", truncate(pe.Raw, 2048),
			"next_provider", next,
		)
	}

	agg := &AllProvidersFailedError{Attempts: attempts}
	span.RecordError(agg)
	span.SetStatus(codes.Error, ErrAllProvidersFailed.Error())
	c.log.Error("All LLM providers failed", "attempts", len(attempts), "error", agg.Error())
	return Completion{}, agg
}

func (c *Client) try(ctx context.Context, p Provider, system, user string) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.provider.complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.provider", p.Name()))

	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	text, err := p.Complete(callCtx, system, user)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("call timeout after %s: %w", c.callTimeout, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return text, err
}

// Embedder returns the first provider that can serve embeddings, or nil.
func (c *Client) Embedder() Embedder {
	for _, p := range c.providers {
		if e, ok := p.(Embedder); ok && e.Model() != "" {
			return e
		}
	}
	return nil
}
