package selector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/envutil"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

type Config struct {
	Budget       int
	RescueShare  float64
	ReviewShare  float64
	LeechLapses  int
	MinNewTier   learning.PriorityTier
	ContextWords int
	// cosine distance band for context companions
	MinDistance   float64
	MaxDistance   float64
	EmbeddingScan int
}

func DefaultConfig() Config {
	return Config{
		Budget:        20,
		RescueShare:   0.3,
		ReviewShare:   0.5,
		LeechLapses:   5,
		MinNewTier:    learning.TierSupport,
		ContextWords:  3,
		MinDistance:   0.05,
		MaxDistance:   0.6,
		EmbeddingScan: 5000,
	}
}

func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Budget = envutil.Int("SELECTOR_DAILY_BUDGET", cfg.Budget)
	cfg.LeechLapses = envutil.Int("SELECTOR_LEECH_LAPSES", cfg.LeechLapses)
	cfg.ContextWords = envutil.Int("SELECTOR_CONTEXT_WORDS", cfg.ContextWords)
	cfg.MinDistance = envutil.Float("SELECTOR_CONTEXT_MIN_DISTANCE", cfg.MinDistance)
	cfg.MaxDistance = envutil.Float("SELECTOR_CONTEXT_MAX_DISTANCE", cfg.MaxDistance)
	return cfg
}

// Slots splits the budget into rescue, review and new allotments.
func (c Config) Slots() (rescue, review, fresh int) {
	rescue = int(math.Round(float64(c.Budget) * c.RescueShare))
	review = int(math.Round(float64(c.Budget) * c.ReviewShare))
	fresh = c.Budget - rescue - review
	if fresh < 0 {
		fresh = 0
	}
	return rescue, review, fresh
}

type DailySelection struct {
	Rescue []learning.DrillCandidate `json:"rescue"`
	Review []learning.DrillCandidate `json:"review"`
	New    []learning.DrillCandidate `json:"new"`
}

func (d *DailySelection) Total() int {
	if d == nil {
		return 0
	}
	return len(d.Rescue) + len(d.Review) + len(d.New)
}

type Selector struct {
	log      *logger.Logger
	progress repos.ProgressRepo
	vocab    repos.VocabRepo
	cfg      Config
	now      func() time.Time
}

func New(log *logger.Logger, progress repos.ProgressRepo, vocab repos.VocabRepo, cfg Config) *Selector {
	if cfg.Budget <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Selector{
		log:      log.With("service", "Selector"),
		progress: progress,
		vocab:    vocab,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SelectDaily ranks a user's words on one track into rescue, review and new
// buckets. Unused rescue and new slots go to review, then to new.
func (s *Selector) SelectDaily(ctx context.Context, userID uuid.UUID, track learning.Track) (*DailySelection, error) {
	dbc := dbctx.Context{Ctx: ctx}
	now := s.now().UTC()
	byFreq := track == learning.TrackAudio
	rescueSlots, reviewSlots, newSlots := s.cfg.Slots()

	leeches, err := s.progress.FindLeeches(dbc, repos.DueQuery{
		UserID:           userID,
		Track:            track,
		MinLapses:        s.cfg.LeechLapses,
		OrderByFrequency: byFreq,
		Limit:            rescueSlots,
	})
	if err != nil {
		return nil, fmt.Errorf("find leeches: %w", err)
	}

	fresh, err := s.vocab.FindUnseen(dbc, repos.UnseenQuery{
		UserID:           userID,
		Track:            track,
		MinTier:          s.cfg.MinNewTier,
		OrderByFrequency: byFreq,
		Limit:            newSlots,
	})
	if err != nil {
		return nil, fmt.Errorf("find new words: %w", err)
	}

	reviewAllot := reviewSlots + (rescueSlots - len(leeches)) + (newSlots - len(fresh))
	due, err := s.progress.FindDue(dbc, repos.DueQuery{
		UserID:           userID,
		Track:            track,
		Now:              now,
		MaxLapses:        s.cfg.LeechLapses,
		OrderByFrequency: byFreq,
		Limit:            reviewAllot,
	})
	if err != nil {
		return nil, fmt.Errorf("find due words: %w", err)
	}

	if short := reviewAllot - len(due); short > 0 && len(fresh) == newSlots {
		fresh, err = s.vocab.FindUnseen(dbc, repos.UnseenQuery{
			UserID:           userID,
			Track:            track,
			MinTier:          s.cfg.MinNewTier,
			OrderByFrequency: byFreq,
			Limit:            newSlots + short,
		})
		if err != nil {
			return nil, fmt.Errorf("backfill new words: %w", err)
		}
	}

	out := &DailySelection{}
	if out.Rescue, err = s.candidates(dbc, leeches, true); err != nil {
		return nil, err
	}
	if out.Review, err = s.candidates(dbc, due, false); err != nil {
		return nil, err
	}
	out.New = newCandidates(fresh)

	s.log.Debug("Daily selection built",
		"user_id", userID,
		"track", track,
		"rescue", len(out.Rescue),
		"review", len(out.Review),
		"new", len(out.New),
	)
	return out, nil
}

// SelectDue returns up to limit generation candidates for a mode: leeches,
// then due reviews, then new words. Context mode candidates carry their
// companion words.
func (s *Selector) SelectDue(ctx context.Context, userID uuid.UUID, mode learning.Mode, limit int) ([]learning.DrillCandidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	track := mode.Track()
	byFreq := mode == learning.ModeAudio

	leeches, err := s.progress.FindLeeches(dbc, repos.DueQuery{
		UserID:           userID,
		Track:            track,
		MinLapses:        s.cfg.LeechLapses,
		OrderByFrequency: byFreq,
		Limit:            limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find leeches: %w", err)
	}
	out, err := s.candidates(dbc, leeches, true)
	if err != nil {
		return nil, err
	}

	if remaining := limit - len(out); remaining > 0 {
		due, err := s.progress.FindDue(dbc, repos.DueQuery{
			UserID:           userID,
			Track:            track,
			Now:              s.now().UTC(),
			MaxLapses:        s.cfg.LeechLapses,
			OrderByFrequency: byFreq,
			Limit:            remaining,
		})
		if err != nil {
			return nil, fmt.Errorf("find due words: %w", err)
		}
		more, err := s.candidates(dbc, due, false)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}

	if remaining := limit - len(out); remaining > 0 {
		fresh, err := s.vocab.FindUnseen(dbc, repos.UnseenQuery{
			UserID:           userID,
			Track:            track,
			MinTier:          s.cfg.MinNewTier,
			OrderByFrequency: byFreq,
			Limit:            remaining,
		})
		if err != nil {
			return nil, fmt.Errorf("find new words: %w", err)
		}
		out = append(out, newCandidates(fresh)...)
	}

	if mode == learning.ModeContext {
		if err := s.attachContext(ctx, userID, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Candidates builds candidates for explicitly requested words, in the
// requested order. Unknown ids are dropped.
func (s *Selector) Candidates(ctx context.Context, userID uuid.UUID, mode learning.Mode, vocabIDs []uuid.UUID) ([]learning.DrillCandidate, error) {
	if len(vocabIDs) == 0 {
		return nil, nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.vocab.GetByIDs(dbc, vocabIDs)
	if err != nil {
		return nil, fmt.Errorf("load vocab: %w", err)
	}
	byID := make(map[uuid.UUID]*learning.Vocab, len(rows))
	for _, v := range rows {
		byID[v.ID] = v
	}
	progress, err := s.progress.GetForVocab(dbc, userID, mode.Track(), vocabIDs)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	out := make([]learning.DrillCandidate, 0, len(vocabIDs))
	seen := map[uuid.UUID]bool{}
	for _, id := range vocabIDs {
		v := byID[id]
		if v == nil || seen[id] {
			continue
		}
		seen[id] = true
		c := learning.CandidateFromVocab(v, progress[id])
		c.Rescue = progress[id].IsLeech(s.cfg.LeechLapses)
		out = append(out, c)
	}
	if mode == learning.ModeContext {
		if err := s.attachContext(ctx, userID, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Selector) candidates(dbc dbctx.Context, rows []*learning.LearningProgress, rescue bool) ([]learning.DrillCandidate, error) {
	if len(rows) == 0 {
		return []learning.DrillCandidate{}, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.VocabID)
	}
	vocab, err := s.vocab.GetByIDs(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("load vocab: %w", err)
	}
	byID := make(map[uuid.UUID]*learning.Vocab, len(vocab))
	for _, v := range vocab {
		byID[v.ID] = v
	}
	out := make([]learning.DrillCandidate, 0, len(rows))
	for _, p := range rows {
		v := byID[p.VocabID]
		if v == nil {
			continue
		}
		c := learning.CandidateFromVocab(v, p)
		c.Rescue = rescue
		out = append(out, c)
	}
	return out, nil
}

func newCandidates(rows []*learning.Vocab) []learning.DrillCandidate {
	out := make([]learning.DrillCandidate, 0, len(rows))
	for _, v := range rows {
		out = append(out, learning.CandidateFromVocab(v, nil))
	}
	return out
}

func (s *Selector) attachContext(ctx context.Context, userID uuid.UUID, cands []learning.DrillCandidate) error {
	for i := range cands {
		words, err := s.ContextWords(ctx, userID, cands[i].VocabID, s.cfg.ContextWords)
		if err != nil {
			return fmt.Errorf("context words for %q: %w", cands[i].Word, err)
		}
		cands[i].ContextWords = words
	}
	return nil
}
