package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	embedding "github.com/matthewjhunter/go-embedding"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	"github.com/yungbote/vocabdrill-backend/internal/data/repos/testutil"
	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/llm"
)

type scriptedGen struct {
	text  string
	err   error
	calls int
}

func (g *scriptedGen) Generate(_ context.Context, _, user string) (llm.Completion, error) {
	g.calls++
	if g.err != nil {
		return llm.Completion{}, g.err
	}
	return llm.Completion{Text: g.text, ProviderID: "fake"}, nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Model() string { return "fixed" }

func (fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i + 1), 0, 1}
	}
	return out, nil
}

func TestVocabEnricherWritesAcceptedWords(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	vocab := repos.New(db, log).Vocab
	lucid := testutil.SeedVocab(t, ctx, db, "lucid", learning.TierSupport, 0.1)
	terse := testutil.SeedVocab(t, ctx, db, "terse", learning.TierSupport, 0.1)
	ghost := testutil.SeedVocab(t, ctx, db, "ghost", learning.TierSupport, 0.1)

	// truncated output: "terse" is complete, "ghost" never arrives
	gen := &scriptedGen{text: "```json\n" + `{"items":[
		{"word":"Lucid","definition":"clear and easy to understand","definitions":["clear"],"collocations":["lucid explanation"],"scenario_tags":["writing"],"frequency_score":1.7,"tier":"core"},
		{"word":"terse","definition":"using few words","collocations":["terse reply"],"frequency_score":0.4,"tier":"bogus"},
		{"word":"ghost","definition":"a spi`}
	e := NewVocabEnricher(log, vocab, gen, fixedEmbedder{})

	rows, err := e.Fetch(ctx, 10)
	if err != nil || len(rows) != 3 {
		t.Fatalf("Fetch: %d %v", len(rows), err)
	}
	n, err := e.Process(ctx, rows)
	if err != nil || n != 2 {
		t.Fatalf("Process: n=%d err=%v", n, err)
	}

	got, _ := vocab.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{lucid.ID, terse.ID, ghost.ID})
	byWord := map[string]*learning.Vocab{}
	for _, v := range got {
		byWord[v.Word] = v
	}
	l := byWord["lucid"]
	if l.EnrichedAt == nil || l.Tier != learning.TierCore || l.FrequencyScore != 1 || l.Definition != "clear and easy to understand" {
		t.Fatalf("lucid not enriched as expected: %+v", l)
	}
	var colls []string
	_ = json.Unmarshal(l.Collocations, &colls)
	if len(colls) != 1 || colls[0] != "lucid explanation" {
		t.Fatalf("collocations = %v", colls)
	}
	if vec := embedding.DecodeFloat32s(l.Embedding); len(vec) != 3 {
		t.Fatalf("expected stored embedding, got %v", vec)
	}
	if tr := byWord["terse"]; tr.EnrichedAt == nil || tr.Tier != learning.TierSupport {
		t.Fatalf("terse should keep its tier on an unknown value: %+v", tr)
	}
	if byWord["ghost"].EnrichedAt != nil {
		t.Fatalf("ghost should stay unenriched")
	}

	// the missing word is not offered again in this process
	rows, err = e.Fetch(ctx, 10)
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected empty backlog after skip, got %d %v", len(rows), err)
	}
}

func TestVocabEnricherPropagatesProviderFailure(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	vocab := repos.New(db, log).Vocab
	testutil.SeedVocab(t, ctx, db, "lucid", learning.TierSupport, 0.1)

	fail := &llm.AllProvidersFailedError{Attempts: []*llm.ProviderError{{Provider: "p", Err: &llm.HTTPError{Provider: "p", StatusCode: 429}}}}
	e := NewVocabEnricher(log, vocab, &scriptedGen{err: fail}, nil)
	rows, _ := e.Fetch(ctx, 5)
	n, err := e.Process(ctx, rows)
	if n != 0 || !errors.Is(err, llm.ErrAllProvidersFailed) || Classify(err) != LevelRateLimited {
		t.Fatalf("expected rate-limited provider failure, got n=%d err=%v", n, err)
	}
	// transient failures do not skip the word
	if rows, _ := e.Fetch(ctx, 5); len(rows) != 1 {
		t.Fatalf("word should be retried after a provider failure")
	}
}

func TestVocabEnricherGarbageOutput(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	vocab := repos.New(db, log).Vocab
	testutil.SeedVocab(t, ctx, db, "lucid", learning.TierSupport, 0.1)

	e := NewVocabEnricher(log, vocab, &scriptedGen{text: "sorry, I can't help with that"}, nil)
	rows, _ := e.Fetch(ctx, 5)
	_, err := e.Process(ctx, rows)
	if !errors.Is(err, ErrNoUsableItems) || !strings.Contains(err.Error(), "usable") {
		t.Fatalf("expected ErrNoUsableItems, got %v", err)
	}
}
