package app

import (
	"context"
	"fmt"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	"github.com/yungbote/vocabdrill-backend/internal/modules/enrichment"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

type ETLOptions struct {
	// Tier names a preset; empty falls back to ETL_TIER.
	Tier       string
	Continuous bool
	MaxBatches int
}

// RunETL drives the vocab enrichment lane until the backlog drains, ctx
// ends, or the circuit breaker aborts a non-continuous run.
func RunETL(ctx context.Context, log *logger.Logger, opts ETLOptions) (enrichment.Stats, error) {
	tier, err := enrichment.TierFromEnv()
	if err != nil {
		return enrichment.Stats{}, err
	}
	if opts.Tier != "" {
		if tier, err = enrichment.TierByName(opts.Tier); err != nil {
			return enrichment.Stats{}, err
		}
	}

	dbService, err := openDB(log)
	if err != nil {
		return enrichment.Stats{}, err
	}
	defer dbService.Close()

	llmClient, err := newLLMClient(log)
	if err != nil {
		return enrichment.Stats{}, err
	}
	embedder := llmClient.Embedder()
	if embedder == nil {
		log.Warn("No provider supports embeddings; vocab will be enriched without vectors")
	}

	r := repos.New(dbService.DB(), log)
	enricher := enrichment.NewVocabEnricher(log, r.Vocab, llmClient, embedder)
	runner := enrichment.NewRunner(log, enricher, enrichment.Options{
		Tier:       tier,
		Breaker:    enrichment.BreakerConfigFromEnv(),
		Continuous: opts.Continuous,
		MaxBatches: opts.MaxBatches,
	})

	stats, err := runner.Run(ctx)
	if err != nil && ctx.Err() == nil {
		return stats, fmt.Errorf("etl %s: %w", enricher.Name(), err)
	}
	return stats, nil
}
