package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/inventory"
	"github.com/yungbote/vocabdrill-backend/internal/platform/llm"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
	"github.com/yungbote/vocabdrill-backend/internal/realtime/bus"
)

type fakeSource struct {
	mu        sync.Mutex
	cands     []learning.DrillCandidate
	calls     int
	lastLimit int
}

func (f *fakeSource) SelectDue(ctx context.Context, userID uuid.UUID, mode learning.Mode, limit int) ([]learning.DrillCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastLimit = limit
	if limit < len(f.cands) {
		return f.cands[:limit], nil
	}
	return f.cands, nil
}

func (f *fakeSource) Candidates(ctx context.Context, userID uuid.UUID, mode learning.Mode, ids []uuid.UUID) ([]learning.DrillCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []learning.DrillCandidate
	for _, c := range f.cands {
		if want[c.VocabID] {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeGen struct {
	mu    sync.Mutex
	calls int
	fn    func(system, user string) (string, error)
}

func (f *fakeGen) Generate(ctx context.Context, system, user string) (llm.Completion, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	text, err := f.fn(system, user)
	if err != nil {
		return llm.Completion{}, err
	}
	return llm.Completion{Text: text, ProviderID: "fake"}, nil
}

type sink struct {
	mu     sync.Mutex
	events []bus.Event
}

func (s *sink) Emit(ev bus.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func newCands(words ...string) []learning.DrillCandidate {
	out := make([]learning.DrillCandidate, 0, len(words))
	for _, w := range words {
		out = append(out, learning.DrillCandidate{VocabID: uuid.New(), Word: w, Definition: "def of " + w, Type: learning.CandidateNew})
	}
	return out
}

func structuralJSON(words ...string) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, fmt.Sprintf(`{"word":%q,"sentence":"I saw a %s today.","pattern":"SVO","cloze":"I saw a ___ today."}`, w, w))
	}
	return `{"items":[` + strings.Join(parts, ",") + `]}`
}

func newTestPipeline(t *testing.T, src *fakeSource, gen *fakeGen, capac inventory.Capacity) (*Pipeline, *inventory.Cache, *sink) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	icfg := inventory.DefaultConfig()
	icfg.Capacity[learning.ModeSyntax] = capac
	inv := inventory.New(logger.Nop(), rdb, icfg)
	events := &sink{}
	return NewPipeline(logger.Nop(), src, gen, inv, events, DefaultConfig()), inv, events
}

func TestRunPreCheckSkipsWhenFull(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{cands: newCands("alpha")}
	gen := &fakeGen{fn: func(string, string) (string, error) { return structuralJSON("alpha"), nil }}
	p, inv, _ := newTestPipeline(t, src, gen, inventory.Capacity{Words: 1, Depth: 3})
	user := uuid.New()

	if err := inv.Push(ctx, user, learning.ModeSyntax, inventory.Item{Word: "beta"}); err != nil {
		t.Fatalf("seed push: %v", err)
	}
	res, err := p.Run(ctx, Request{UserID: user, Mode: learning.ModeSyntax})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusInventoryFull {
		t.Fatalf("status=%s", res.Status)
	}
	if src.calls != 0 || gen.calls != 0 {
		t.Fatalf("pre-check leaked work: source=%d gen=%d", src.calls, gen.calls)
	}
}

func TestRunSubstitutesPivotForInvalidItem(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{cands: newCands("alpha", "beta", "gamma")}
	gen := &fakeGen{fn: func(string, string) (string, error) {
		return `{"items":[
			{"word":"alpha","sentence":"The alpha test ran.","pattern":"SVO","cloze":"The ___ test ran."},
			{"word":"beta","sentence":"No target here.","pattern":"SVO","cloze":"___"},
			{"word":"gamma","sentence":"Gamma rays hit.","pattern":"SV","cloze":"___ rays hit."},
		]}`, nil
	}}
	p, inv, events := newTestPipeline(t, src, gen, inventory.Capacity{Words: 10, Depth: 3})
	user := uuid.New()

	res, err := p.Run(ctx, Request{UserID: user, Mode: learning.ModeSyntax})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCompleted || res.Pushed() != 3 || res.Pivots() != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	it, _, err := inv.Pop(ctx, user, learning.ModeSyntax, "beta")
	if err != nil || !it.Pivot {
		t.Fatalf("expected pivot for beta, got %+v %v", it, err)
	}
	if len(events.events) != 3 {
		t.Fatalf("expected 3 stream events, got %d", len(events.events))
	}
}

func TestRunRecoversTruncatedBatch(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{cands: newCands("alpha", "beta", "gamma")}
	gen := &fakeGen{fn: func(string, string) (string, error) {
		full := structuralJSON("alpha", "beta", "gamma")
		return full[:len(full)-40], nil
	}}
	p, inv, _ := newTestPipeline(t, src, gen, inventory.Capacity{Words: 10, Depth: 3})
	user := uuid.New()

	res, err := p.Run(ctx, Request{UserID: user, Mode: learning.ModeSyntax})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	fr := res.Families[0]
	if fr.Accepted != 2 || fr.Missing != 1 || fr.Dropped != 1 || fr.Pivots != 0 {
		t.Fatalf("unexpected family result %+v", fr)
	}
	if n, _ := inv.Count(ctx, user, learning.ModeSyntax, "gamma"); n != 0 {
		t.Fatalf("gamma should not be stocked")
	}
}

func TestRunUnrecoverableBatchPivotsEverything(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{cands: newCands("alpha", "beta")}
	gen := &fakeGen{fn: func(string, string) (string, error) { return "I cannot help with that.", nil }}
	p, _, _ := newTestPipeline(t, src, gen, inventory.Capacity{Words: 10, Depth: 3})

	res, err := p.Run(ctx, Request{UserID: uuid.New(), Mode: learning.ModeSyntax})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Pushed() != 2 || res.Pivots() != 2 || !res.Families[0].Malformed {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunFamilyFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	cands := newCands("alpha")
	stable := learning.DrillCandidate{
		VocabID: uuid.New(), Word: "omega", Type: learning.CandidateReview,
		Memory: &learning.MemorySnapshot{State: learning.StateReview, Stability: 90},
	}
	src := &fakeSource{cands: append(cands, stable)}
	gen := &fakeGen{fn: func(system, user string) (string, error) {
		if strings.Contains(system, "rapid-recall") {
			return "", &llm.AllProvidersFailedError{Attempts: []*llm.ProviderError{{Provider: "x", Err: errors.New("down")}}}
		}
		return structuralJSON("alpha"), nil
	}}
	p, inv, events := newTestPipeline(t, src, gen, inventory.Capacity{Words: 10, Depth: 3})
	user := uuid.New()

	res, err := p.Run(ctx, Request{UserID: user, Mode: learning.ModeSyntax})
	if !errors.Is(err, llm.ErrAllProvidersFailed) {
		t.Fatalf("expected aggregated provider failure, got %v", err)
	}
	if res == nil || res.Status != StatusPartial || res.Pushed() != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if n, _ := inv.Count(ctx, user, learning.ModeSyntax, "alpha"); n != 1 {
		t.Fatalf("structural family should have persisted")
	}
	failed := 0
	for _, ev := range events.events {
		if ev.Status == bus.EventStatusFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected one failed event, got %d", failed)
	}
}

func TestRunEffectiveLimitAndStockedSkip(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{cands: newCands("alpha", "beta", "gamma")}
	gen := &fakeGen{fn: func(string, string) (string, error) { return structuralJSON("beta"), nil }}
	p, inv, _ := newTestPipeline(t, src, gen, inventory.Capacity{Words: 3, Depth: 1})
	user := uuid.New()

	if err := inv.Push(ctx, user, learning.ModeSyntax, inventory.Item{Word: "alpha"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res, err := p.Run(ctx, Request{UserID: user, Mode: learning.ModeSyntax})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.lastLimit != 2 || res.EffectiveLimit != 2 {
		t.Fatalf("effective limit: source=%d result=%d", src.lastLimit, res.EffectiveLimit)
	}
	if res.Skipped != 1 || res.Candidates != 1 || res.Pushed() != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunExplicitWordsAndEmptySelection(t *testing.T) {
	ctx := context.Background()
	cands := newCands("alpha", "beta")
	src := &fakeSource{cands: cands}
	gen := &fakeGen{fn: func(string, string) (string, error) { return structuralJSON("beta"), nil }}
	p, _, _ := newTestPipeline(t, src, gen, inventory.Capacity{Words: 10, Depth: 3})

	res, err := p.Run(ctx, Request{UserID: uuid.New(), Mode: learning.ModeSyntax, ExplicitWordIDs: []uuid.UUID{cands[1].VocabID}})
	if err != nil || res.Pushed() != 1 || res.Candidates != 1 {
		t.Fatalf("explicit run: %+v %v", res, err)
	}

	empty := &fakeSource{}
	p2, _, _ := newTestPipeline(t, empty, gen, inventory.Capacity{Words: 10, Depth: 3})
	calls := gen.calls
	res, err = p2.Run(ctx, Request{UserID: uuid.New(), Mode: learning.ModeSyntax})
	if err != nil || res.Status != StatusSelectionEmpty || gen.calls != calls {
		t.Fatalf("empty selection: %+v %v", res, err)
	}
}

func TestRunPivotsMislabelledLeftoverItem(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{cands: newCands("alpha", "beta")}
	gen := &fakeGen{fn: func(string, string) (string, error) { return structuralJSON("beta", "alphas"), nil }}
	p, inv, _ := newTestPipeline(t, src, gen, inventory.Capacity{Words: 10, Depth: 3})
	user := uuid.New()

	res, err := p.Run(ctx, Request{UserID: user, Mode: learning.ModeSyntax})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	fr := res.Families[0]
	if fr.Pushed != 2 || fr.Accepted != 1 || fr.Pivots != 1 || fr.Missing != 0 {
		t.Fatalf("unexpected family result %+v", fr)
	}
	it, _, err := inv.Pop(ctx, user, learning.ModeSyntax, "alpha")
	if err != nil || !it.Pivot {
		t.Fatalf("expected pivot for alpha, got %+v %v", it, err)
	}
}

func TestMatchItemsHandsLeftoversInOrder(t *testing.T) {
	cands := newCands("alpha", "beta", "gamma")
	items := []json.RawMessage{
		json.RawMessage(`{"word":"gamma"}`),
		json.RawMessage(`{"word":"x"}`),
		json.RawMessage(`{"word":"y"}`),
	}
	got := matchItems(cands, items)
	want := []string{`{"word":"x"}`, `{"word":"y"}`, `{"word":"gamma"}`}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Fatalf("candidate %d: got %s, want %s", i, got[i], want[i])
		}
	}

	short := matchItems(cands, items[:1])
	if short[0] != nil || short[1] != nil || string(short[2]) != `{"word":"gamma"}` {
		t.Fatalf("short batch: %q", short)
	}
}

func TestRunRetrySkipsStockedWords(t *testing.T) {
	ctx := context.Background()
	stable := learning.DrillCandidate{
		VocabID: uuid.New(), Word: "omega", Type: learning.CandidateReview,
		Memory: &learning.MemorySnapshot{State: learning.StateReview, Stability: 90},
	}
	src := &fakeSource{cands: append(newCands("alpha"), stable)}
	var mu sync.Mutex
	structuralCalls := 0
	gen := &fakeGen{fn: func(system, user string) (string, error) {
		if strings.Contains(system, "rapid-recall") {
			return "", &llm.AllProvidersFailedError{Attempts: []*llm.ProviderError{{Provider: "x", Err: errors.New("down")}}}
		}
		mu.Lock()
		structuralCalls++
		mu.Unlock()
		return structuralJSON("alpha"), nil
	}}
	p, inv, _ := newTestPipeline(t, src, gen, inventory.Capacity{Words: 10, Depth: 3})
	user := uuid.New()

	if _, err := p.Run(ctx, Request{UserID: user, Mode: learning.ModeSyntax}); err == nil {
		t.Fatalf("expected first run to fail")
	}
	res, err := p.Run(ctx, Request{UserID: user, Mode: learning.ModeSyntax, Retry: true})
	if !errors.Is(err, llm.ErrAllProvidersFailed) {
		t.Fatalf("expected rapid-recall to fail again, got %v", err)
	}
	if structuralCalls != 1 {
		t.Fatalf("structural family regenerated on retry: %d calls", structuralCalls)
	}
	if res.Skipped != 1 {
		t.Fatalf("expected alpha skipped, got %+v", res)
	}
	if n, _ := inv.Count(ctx, user, learning.ModeSyntax, "alpha"); n != 1 {
		t.Fatalf("alpha stock = %d, want 1", n)
	}
}
