package selector

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	embedding "github.com/matthewjhunter/go-embedding"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
)

type scored struct {
	vocab    *learning.Vocab
	distance float64
}

// ContextWords picks n companion words for target. It tries semantic
// neighbours from the user's active set, then from the whole catalog, then
// random words of the same tier.
func (s *Selector) ContextWords(ctx context.Context, userID, targetID uuid.UUID, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.vocab.GetByIDs(dbc, []uuid.UUID{targetID})
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	target := rows[0]

	picked := make([]*learning.Vocab, 0, n)
	exclude := map[uuid.UUID]bool{target.ID: true}
	take := func(vs []*learning.Vocab) {
		for _, v := range vs {
			if len(picked) >= n {
				return
			}
			if exclude[v.ID] {
				continue
			}
			exclude[v.ID] = true
			picked = append(picked, v)
		}
	}

	if vec := embedding.DecodeFloat32s(target.Embedding); len(target.Embedding) > 0 && len(vec) > 0 {
		active, err := s.progress.ActiveVocabIDs(dbc, userID)
		if err != nil {
			return nil, fmt.Errorf("load active set: %w", err)
		}
		if len(active) > 0 {
			local, err := s.vocab.ListWithEmbedding(dbc, active, 0)
			if err != nil {
				return nil, fmt.Errorf("load active embeddings: %w", err)
			}
			take(s.nearest(vec, local, exclude))
		}
		if len(picked) < n {
			global, err := s.vocab.ListWithEmbedding(dbc, nil, s.cfg.EmbeddingScan)
			if err != nil {
				return nil, fmt.Errorf("load embeddings: %w", err)
			}
			take(s.nearest(vec, global, exclude))
		}
	}

	if len(picked) < n {
		ids := make([]uuid.UUID, 0, len(exclude))
		for id := range exclude {
			ids = append(ids, id)
		}
		random, err := s.vocab.RandomByTier(dbc, target.Tier, ids, n-len(picked))
		if err != nil {
			return nil, fmt.Errorf("load random companions: %w", err)
		}
		take(random)
	}

	out := make([]string, 0, len(picked))
	for _, v := range picked {
		out = append(out, v.Word)
	}
	return out, nil
}

// nearest keeps rows inside the distance band, closest first.
func (s *Selector) nearest(target []float32, rows []*learning.Vocab, exclude map[uuid.UUID]bool) []*learning.Vocab {
	var hits []scored
	for _, v := range rows {
		if exclude[v.ID] || len(v.Embedding) == 0 {
			continue
		}
		d := 1 - embedding.CosineSimilarity(target, embedding.DecodeFloat32s(v.Embedding))
		if d < s.cfg.MinDistance || d > s.cfg.MaxDistance {
			continue
		}
		hits = append(hits, scored{vocab: v, distance: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })
	out := make([]*learning.Vocab, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.vocab)
	}
	return out
}
