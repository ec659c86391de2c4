package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/inventory"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/jsonrepair"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/prompts"
	"github.com/yungbote/vocabdrill-backend/internal/platform/envutil"
	"github.com/yungbote/vocabdrill-backend/internal/platform/llm"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
	"github.com/yungbote/vocabdrill-backend/internal/realtime/bus"
)

var tracer = otel.Tracer("vocabdrill/generation")

type CandidateSource interface {
	SelectDue(ctx context.Context, userID uuid.UUID, mode learning.Mode, limit int) ([]learning.DrillCandidate, error)
	Candidates(ctx context.Context, userID uuid.UUID, mode learning.Mode, vocabIDs []uuid.UUID) ([]learning.DrillCandidate, error)
}

type Generator interface {
	Generate(ctx context.Context, system, user string) (llm.Completion, error)
}

type Inventory interface {
	IsFull(ctx context.Context, userID uuid.UUID, mode learning.Mode) (bool, error)
	Remaining(ctx context.Context, userID uuid.UUID, mode learning.Mode) (int, error)
	Count(ctx context.Context, userID uuid.UUID, mode learning.Mode, word string) (int, error)
	Push(ctx context.Context, userID uuid.UUID, mode learning.Mode, item inventory.Item) error
	CapacityFor(mode learning.Mode) inventory.Capacity
}

type EventSink interface {
	Emit(ev bus.Event)
}

type Config struct {
	DefaultLimit int
	Router       Router
}

func DefaultConfig() Config {
	return Config{DefaultLimit: 10, Router: DefaultRouter()}
}

func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.DefaultLimit = envutil.Int("GENERATION_DEFAULT_LIMIT", cfg.DefaultLimit)
	cfg.Router.RapidRecallStability = envutil.Float("GENERATION_RAPID_RECALL_STABILITY", cfg.Router.RapidRecallStability)
	return cfg
}

type Request struct {
	UserID          uuid.UUID     `json:"user_id"`
	Mode            learning.Mode `json:"mode"`
	ExplicitWordIDs []uuid.UUID   `json:"explicit_word_ids,omitempty"`
	ForceLimit      int           `json:"force_limit,omitempty"`
	JobID           uuid.UUID     `json:"-"`
	// Retry marks a re-run of a failed job: words with any stock are skipped
	// so families that succeeded last time are not generated twice.
	Retry bool `json:"-"`
}

type Status string

const (
	StatusInventoryFull  Status = "inventory_full_pre_check"
	StatusSelectionEmpty Status = "selection_empty"
	StatusCompleted      Status = "completed"
	StatusPartial        Status = "partial"
	StatusFailed         Status = "failed"
)

type FamilyResult struct {
	Family    string `json:"family"`
	Provider  string `json:"provider,omitempty"`
	Requested int    `json:"requested"`
	Accepted  int    `json:"accepted"`
	Pivots    int    `json:"pivots"`
	Missing   int    `json:"missing"`
	Dropped   int    `json:"items_dropped"`
	Pushed    int    `json:"pushed"`
	Rejected  int    `json:"rejected"`
	Malformed bool   `json:"malformed,omitempty"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

type Result struct {
	Status         Status         `json:"status"`
	EffectiveLimit int            `json:"effective_limit"`
	Candidates     int            `json:"candidates"`
	Skipped        int            `json:"skipped"`
	Families       []FamilyResult `json:"families,omitempty"`
}

func (r *Result) Pushed() int {
	n := 0
	for _, f := range r.Families {
		n += f.Pushed
	}
	return n
}

func (r *Result) Pivots() int {
	n := 0
	for _, f := range r.Families {
		n += f.Pivots
	}
	return n
}

type Pipeline struct {
	log    *logger.Logger
	source CandidateSource
	gen    Generator
	inv    Inventory
	events EventSink
	cfg    Config
	now    func() time.Time
}

func NewPipeline(log *logger.Logger, source CandidateSource, gen Generator, inv Inventory, events EventSink, cfg Config) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultConfig().DefaultLimit
	}
	return &Pipeline{
		log:    log.With("service", "DrillGenerationPipeline"),
		source: source,
		gen:    gen,
		inv:    inv,
		events: events,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one FETCH → ROUTE → GENERATE → VALIDATE → PERSIST pass. A
// failed family does not stop the others; their errors are joined into the
// returned error alongside the partial Result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "drills.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("drill.mode", req.Mode.String()),
		attribute.Int("drill.explicit_words", len(req.ExplicitWordIDs)),
		attribute.Bool("drill.retry", req.Retry),
	)
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("invalid mode %d", int(req.Mode))
	}
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	log := p.log.With("user_id", req.UserID.String(), "mode", req.Mode.String(), "job_id", req.JobID.String())

	full, err := p.inv.IsFull(ctx, req.UserID, req.Mode)
	if err != nil {
		return nil, fmt.Errorf("inventory pre-check: %w", err)
	}
	if full {
		log.Info("Inventory full; skipping generation")
		span.SetAttributes(attribute.String("drill.status", string(StatusInventoryFull)))
		return &Result{Status: StatusInventoryFull}, nil
	}

	limit := p.cfg.DefaultLimit
	if req.ForceLimit > 0 {
		limit = req.ForceLimit
	}
	remaining, err := p.inv.Remaining(ctx, req.UserID, req.Mode)
	if err != nil {
		return nil, fmt.Errorf("inventory remaining: %w", err)
	}
	res := &Result{EffectiveLimit: min(limit, remaining)}

	var cands []learning.DrillCandidate
	if len(req.ExplicitWordIDs) > 0 {
		cands, err = p.source.Candidates(ctx, req.UserID, req.Mode, req.ExplicitWordIDs)
	} else {
		cands, err = p.source.SelectDue(ctx, req.UserID, req.Mode, res.EffectiveLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	cands = p.dropStocked(ctx, req, cands, res)
	res.Candidates = len(cands)
	if len(cands) == 0 {
		res.Status = StatusSelectionEmpty
		log.Info("No candidates to generate", "skipped", res.Skipped)
		return res, nil
	}

	groups := p.cfg.Router.Group(req.Mode, cands)
	results := make([]FamilyResult, len(groups))
	var g errgroup.Group
	for i, grp := range groups {
		g.Go(func() error {
			results[i] = p.runFamily(ctx, req, grp)
			return results[i].Err
		})
	}
	_ = g.Wait()
	res.Families = results

	var errs []error
	for _, fr := range results {
		if fr.Err != nil {
			errs = append(errs, fmt.Errorf("family %s: %w", fr.Family, fr.Err))
		}
	}
	switch {
	case len(errs) == 0:
		res.Status = StatusCompleted
	case len(errs) < len(results):
		res.Status = StatusPartial
	default:
		res.Status = StatusFailed
	}
	span.SetAttributes(
		attribute.String("drill.status", string(res.Status)),
		attribute.Int("drill.pushed", res.Pushed()),
		attribute.Int("drill.pivots", res.Pivots()),
	)
	joined := errors.Join(errs...)
	if joined != nil {
		span.RecordError(joined)
		span.SetStatus(codes.Error, string(res.Status))
	}
	log.Info("Drill generation finished",
		"status", string(res.Status),
		"candidates", res.Candidates,
		"pushed", res.Pushed(),
		"pivots", res.Pivots(),
		"skipped", res.Skipped,
	)
	return res, joined
}

// dropStocked skips words whose queue is already at depth, or on a retry any
// word with stock at all. The check is not atomic with the later push;
// concurrent runs may over-provision slightly.
func (p *Pipeline) dropStocked(ctx context.Context, req Request, cands []learning.DrillCandidate, res *Result) []learning.DrillCandidate {
	depth := p.inv.CapacityFor(req.Mode).Depth
	out := cands[:0:0]
	for _, c := range cands {
		n, err := p.inv.Count(ctx, req.UserID, req.Mode, c.Word)
		if err != nil {
			p.log.Warn("Inventory count failed; generating anyway", "word", c.Word, "error", err)
		} else if (depth > 0 && n >= depth) || (req.Retry && n > 0) {
			res.Skipped++
			continue
		}
		out = append(out, c)
	}
	return out
}

type promptWord struct {
	Word         string   `json:"word"`
	Definition   string   `json:"definition,omitempty"`
	ContextWords []string `json:"context_words,omitempty"`
}

func (p *Pipeline) runFamily(ctx context.Context, req Request, grp CandidateGroup) FamilyResult {
	ctx, span := tracer.Start(ctx, "drills.generate.family")
	defer span.End()
	fr := FamilyResult{Family: grp.Family.String(), Requested: len(grp.Candidates)}
	span.SetAttributes(attribute.String("drill.family", fr.Family), attribute.Int("drill.requested", fr.Requested))

	words := make([]promptWord, 0, len(grp.Candidates))
	for _, c := range grp.Candidates {
		words = append(words, promptWord{Word: c.Word, Definition: c.Definition, ContextWords: c.ContextWords})
	}
	wordsJSON, _ := json.MarshalIndent(words, "", "  ")
	prompt, err := prompts.Build(grp.Family.Prompt(), prompts.Input{
		Mode:      req.Mode.String(),
		Track:     string(req.Mode.Track()),
		Count:     len(words),
		WordsJSON: string(wordsJSON),
	})
	if err != nil {
		fr.Err, fr.Error = err, err.Error()
		return fr
	}

	comp, err := p.gen.Generate(ctx, prompt.System, prompt.User)
	if err != nil {
		fr.Err, fr.Error = err, err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		p.emit(bus.EventStatusFailed, nil, req, fr, map[string]any{"error": err.Error(), "prompt": prompt.Fingerprint()})
		return fr
	}
	fr.Provider = comp.ProviderID

	items, rep, err := jsonrepair.Items(comp.Text)
	if err != nil {
		// nothing salvageable; every candidate falls back to a pivot
		fr.Malformed = true
		items = nil
		p.log.Warn("Unrecoverable drill batch",
			"family", fr.Family,
			"provider", comp.ProviderID,
			"error", err,
			"raw_response", truncateText(comp.Text, 1024),
		)
	}
	fr.Dropped = rep.ItemsDropped

	matched := matchItems(grp.Candidates, items)
	for i, c := range grp.Candidates {
		raw := matched[i]
		if raw == nil && !fr.Malformed {
			fr.Missing++
			continue
		}
		pivot := false
		if raw == nil {
			pivot = true
		} else if verr := Validate(grp.Family, c.Word, raw); verr != nil {
			p.log.Debug("Drill failed validation; substituting pivot", "word", c.Word, "family", fr.Family, "error", verr)
			pivot = true
		}
		if pivot {
			raw = Pivot(grp.Family, c)
			fr.Pivots++
		} else {
			fr.Accepted++
		}

		it := inventory.Item{
			VocabID:     c.VocabID,
			Word:        c.Word,
			Family:      fr.Family,
			Pivot:       pivot,
			Payload:     raw,
			GeneratedAt: p.now(),
			Provider:    comp.ProviderID,
		}
		if err := p.inv.Push(ctx, req.UserID, req.Mode, it); err != nil {
			if errors.Is(err, inventory.ErrCapacityFull) {
				fr.Rejected++
				continue
			}
			p.log.Warn("Inventory push failed", "word", c.Word, "error", err)
			fr.Rejected++
			continue
		}
		fr.Pushed++

		status := bus.EventStatusGenerated
		if pivot {
			status = bus.EventStatusPivot
		}
		p.emit(status, raw, req, fr, map[string]any{
			"word":          c.Word,
			"candidateType": string(c.Type),
			"prompt":        prompt.Fingerprint(),
			"itemsDropped":  rep.ItemsDropped,
		})
	}
	span.SetAttributes(attribute.Int("drill.pushed", fr.Pushed), attribute.Int("drill.pivots", fr.Pivots))
	return fr
}

func (p *Pipeline) emit(status string, payload json.RawMessage, req Request, fr FamilyResult, extra map[string]any) {
	if p.events == nil {
		return
	}
	debug := map[string]any{
		"userId":   req.UserID.String(),
		"mode":     req.Mode.String(),
		"family":   fr.Family,
		"provider": fr.Provider,
	}
	if req.JobID != uuid.Nil {
		debug["jobId"] = req.JobID.String()
	}
	for k, v := range extra {
		debug[k] = v
	}
	p.events.Emit(bus.NewEvent(status, payload, debug))
}

// matchItems pairs generated items with candidates by their "word" field,
// then hands the leftover items to the unmatched candidates in order. A
// leftover item with the wrong word fails validation later and becomes a
// pivot; a candidate stays nil only when the batch came back short.
func matchItems(cands []learning.DrillCandidate, items []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(cands))
	used := make([]bool, len(items))
	byWord := make(map[string]int, len(items))
	for i, it := range items {
		if w := itemWord(it); w != "" {
			if _, dup := byWord[w]; !dup {
				byWord[w] = i
			}
		}
	}
	for i, c := range cands {
		if j, ok := byWord[strings.ToLower(strings.TrimSpace(c.Word))]; ok && !used[j] {
			out[i] = items[j]
			used[j] = true
		}
	}
	next := 0
	for i := range cands {
		if out[i] != nil {
			continue
		}
		for next < len(items) && used[next] {
			next++
		}
		if next >= len(items) {
			break
		}
		out[i] = items[next]
		used[next] = true
	}
	return out
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
