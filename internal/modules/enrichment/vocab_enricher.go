package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	embedding "github.com/matthewjhunter/go-embedding"
	"gorm.io/datatypes"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/jsonrepair"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/prompts"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/llm"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

type VocabStore interface {
	ListUnenriched(dbc dbctx.Context, limit int) ([]*learning.Vocab, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type Generator interface {
	Generate(ctx context.Context, system, user string) (llm.Completion, error)
}

var ErrNoUsableItems = errors.New("enrichment batch produced no usable items")

type enrichedWord struct {
	Word           string   `json:"word"`
	Definition     string   `json:"definition"`
	Definitions    []string `json:"definitions"`
	Collocations   []string `json:"collocations"`
	ScenarioTags   []string `json:"scenario_tags"`
	FrequencyScore *float64 `json:"frequency_score"`
	Tier           string   `json:"tier"`
}

// VocabEnricher fills definitions, collocations, scenario tags, frequency
// and tier for catalog words that have never been enriched, plus an
// embedding when an embedder is configured.
type VocabEnricher struct {
	log      *logger.Logger
	store    VocabStore
	gen      Generator
	embedder llm.Embedder
	now      func() time.Time

	mu   sync.Mutex
	skip map[uuid.UUID]bool
}

func NewVocabEnricher(baseLog *logger.Logger, store VocabStore, gen Generator, embedder llm.Embedder) *VocabEnricher {
	return &VocabEnricher{
		log:      baseLog.With("job", "vocab_enrichment"),
		store:    store,
		gen:      gen,
		embedder: embedder,
		now:      func() time.Time { return time.Now().UTC() },
		skip:     map[uuid.UUID]bool{},
	}
}

func (e *VocabEnricher) Name() string { return "vocab_enrichment" }

// Fetch skips words this process already failed to enrich so one bad word
// cannot stall a run.
func (e *VocabEnricher) Fetch(ctx context.Context, limit int) ([]*learning.Vocab, error) {
	e.mu.Lock()
	skipped := len(e.skip)
	e.mu.Unlock()

	rows, err := e.store.ListUnenriched(dbctx.Context{Ctx: ctx}, limit+skipped)
	if err != nil {
		return nil, err
	}
	out := make([]*learning.Vocab, 0, limit)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, v := range rows {
		if e.skip[v.ID] {
			continue
		}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (e *VocabEnricher) Process(ctx context.Context, chunk []*learning.Vocab) (int, error) {
	if len(chunk) == 0 {
		return 0, nil
	}
	words := make([]map[string]string, 0, len(chunk))
	for _, v := range chunk {
		words = append(words, map[string]string{"word": v.Word})
	}
	wordsJSON, _ := json.Marshal(words)
	prompt, err := prompts.Build(prompts.PromptVocabEnrichment, prompts.Input{
		Count:     len(chunk),
		WordsJSON: string(wordsJSON),
	})
	if err != nil {
		return 0, err
	}

	comp, err := e.gen.Generate(ctx, prompt.System, prompt.User)
	if err != nil {
		return 0, err
	}
	raws, rep, err := jsonrepair.Items(comp.Text)
	if err != nil {
		e.markSkipped(chunk)
		return 0, fmt.Errorf("%w: %v", ErrNoUsableItems, err)
	}
	if rep.ItemsDropped > 0 {
		e.log.Debug("Recovered truncated enrichment batch", "dropped", rep.ItemsDropped, "provider", comp.ProviderID)
	}

	byWord := make(map[string]enrichedWord, len(raws))
	for _, raw := range raws {
		var ew enrichedWord
		if err := json.Unmarshal(raw, &ew); err != nil {
			continue
		}
		w := strings.ToLower(strings.TrimSpace(ew.Word))
		if w == "" || strings.TrimSpace(ew.Definition) == "" {
			continue
		}
		if _, dup := byWord[w]; !dup {
			byWord[w] = ew
		}
	}

	type accepted struct {
		vocab *learning.Vocab
		data  enrichedWord
	}
	var ok []accepted
	var missed []*learning.Vocab
	for _, v := range chunk {
		ew, found := byWord[strings.ToLower(v.Word)]
		if !found {
			missed = append(missed, v)
			continue
		}
		ok = append(ok, accepted{vocab: v, data: ew})
	}
	e.markSkipped(missed)

	vectors := e.embed(ctx, func() []string {
		texts := make([]string, len(ok))
		for i, a := range ok {
			texts[i] = a.vocab.Word + ": " + a.data.Definition
		}
		return texts
	}())

	done := 0
	now := e.now()
	for i, a := range ok {
		updates := e.updates(a.vocab, a.data, now)
		if vectors != nil {
			updates["embedding"] = embedding.EncodeFloat32s(vectors[i])
		}
		if err := e.store.UpdateFields(dbctx.Context{Ctx: ctx}, a.vocab.ID, updates); err != nil {
			e.log.Warn("Vocab update failed", "word", a.vocab.Word, "error", err)
			continue
		}
		done++
	}
	if done == 0 {
		return 0, ErrNoUsableItems
	}
	return done, nil
}

// embed returns one vector per text, or nil when embeddings are unavailable
// or failed. Enrichment proceeds without them.
func (e *VocabEnricher) embed(ctx context.Context, texts []string) [][]float32 {
	if e.embedder == nil || len(texts) == 0 {
		return nil
	}
	vecs, err := e.embedder.Embed(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		e.log.Warn("Embedding failed; storing enrichment without vectors", "model", e.embedder.Model(), "error", err)
		return nil
	}
	return vecs
}

func (e *VocabEnricher) updates(v *learning.Vocab, ew enrichedWord, now time.Time) map[string]interface{} {
	out := map[string]interface{}{
		"definition":    strings.TrimSpace(ew.Definition),
		"definitions":   jsonList(ew.Definitions),
		"collocations":  jsonList(ew.Collocations),
		"scenario_tags": jsonList(ew.ScenarioTags),
		"enriched_at":   now,
	}
	if ew.FrequencyScore != nil && !math.IsNaN(*ew.FrequencyScore) {
		out["frequency_score"] = math.Max(0, math.Min(1, *ew.FrequencyScore))
	}
	if tier, ok := learning.ParsePriorityTier(ew.Tier); ok {
		out["tier"] = tier
	} else {
		out["tier"] = v.Tier
	}
	return out
}

func (e *VocabEnricher) markSkipped(rows []*learning.Vocab) {
	if len(rows) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, v := range rows {
		e.skip[v.ID] = true
	}
}

func jsonList(in []string) datatypes.JSON {
	clean := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			clean = append(clean, s)
		}
	}
	b, _ := json.Marshal(clean)
	return datatypes.JSON(b)
}
