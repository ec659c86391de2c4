package progress

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/modules/learning/srs"
	"github.com/yungbote/vocabdrill-backend/internal/platform/apierr"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

var ErrInvalidRating = errors.New("rating must be between 1 and 4")

type OutcomeInput struct {
	UserID         uuid.UUID
	VocabID        uuid.UUID
	Track          learning.Track
	Mode           learning.Mode
	Rating         learning.Rating
	ResponseTimeMs int
	Retried        bool
}

type OutcomeResult struct {
	Progress  *learning.LearningProgress `json:"progress"`
	Grading   srs.Grading                `json:"grading"`
	Dimension learning.Dimension         `json:"dimension"`
}

type Deps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Progress repos.ProgressRepo
	Vocab    repos.VocabRepo
	Audit    repos.ReviewAuditRepo
	Params   srs.Params
	Grader   srs.ImplicitGrader
	Now      func() time.Time
}

type Service struct {
	deps Deps
	log  *logger.Logger
}

func NewService(deps Deps) *Service {
	if deps.Grader == nil {
		deps.Grader = srs.IdentityGrader
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Params.W == ([17]float64{}) {
		deps.Params = srs.DefaultParams()
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Service{deps: deps, log: log.With("service", "ProgressService")}
}

// RecordOutcome applies one graded answer to the (user, vocab, track) row,
// creating it on first sight, and writes the audit record in the same
// transaction.
func (s *Service) RecordOutcome(ctx context.Context, in OutcomeInput) (*OutcomeResult, error) {
	if in.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", nil)
	}
	if in.VocabID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_vocab_id", fmt.Errorf("missing vocab_id"))
	}
	if !in.Rating.Valid() {
		return nil, apierr.New(http.StatusBadRequest, "invalid_rating", ErrInvalidRating)
	}
	if !in.Mode.Valid() {
		return nil, apierr.New(http.StatusBadRequest, "invalid_mode", fmt.Errorf("invalid mode %d", int(in.Mode)))
	}
	if in.Track == "" {
		in.Track = in.Mode.Track()
	}

	vocab, err := s.deps.Vocab.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{in.VocabID})
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_vocab_failed", err)
	}
	if len(vocab) == 0 {
		return nil, apierr.New(http.StatusNotFound, "vocab_not_found", nil)
	}

	now := s.deps.Now().UTC()
	var out *OutcomeResult
	err = s.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		prev, err := s.deps.Progress.Get(dbc, in.UserID, in.VocabID, in.Track)
		if err != nil {
			return fmt.Errorf("load progress: %w", err)
		}
		row := prev
		if row == nil {
			row = &learning.LearningProgress{
				UserID:    in.UserID,
				VocabID:   in.VocabID,
				Track:     in.Track,
				State:     learning.StateNew,
				NextDueAt: now,
			}
		}
		before := *row

		grading := srs.EffectiveRating(srs.GradeInput{
			Rating:         in.Rating,
			ResponseTimeMs: in.ResponseTimeMs,
			Retried:        in.Retried,
			Mode:           in.Mode,
		}, in.Track, s.deps.Grader)

		next := *row
		s.deps.Params.Next(srs.CardFromProgress(row), grading.Effective, now).Apply(&next)
		dim := srs.DimensionFor(in.Track, in.Mode)
		srs.ApplyDimension(&next, dim, grading.Effective)
		next.MasteryScore = srs.Mastery(&next)

		saved, err := s.deps.Progress.Upsert(dbc, &next)
		if err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}

		audit := &learning.ReviewAudit{
			UserID:           in.UserID,
			VocabID:          in.VocabID,
			Track:            in.Track,
			Mode:             in.Mode.String(),
			RawRating:        grading.Raw,
			EffectiveRating:  grading.Effective,
			CrossTrackCapped: grading.CrossTrackCapped,
			ImplicitAdjusted: grading.ImplicitAdjusted,
			ResponseTimeMs:   in.ResponseTimeMs,
			PrevState:        before.State,
			NewState:         saved.State,
			PrevStability:    before.Stability,
			NewStability:     saved.Stability,
			PrevDifficulty:   before.Difficulty,
			NewDifficulty:    saved.Difficulty,
			NewDueAt:         saved.NextDueAt,
			Dimension:        dim,
			MasteryScore:     saved.MasteryScore,
			CreatedAt:        now,
		}
		if prev != nil {
			due := before.NextDueAt
			audit.PrevDueAt = &due
		}
		if err := s.deps.Audit.Create(dbc, audit); err != nil {
			return fmt.Errorf("write review audit: %w", err)
		}

		out = &OutcomeResult{Progress: saved, Grading: grading, Dimension: dim}
		return nil
	})
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "record_outcome_failed", err)
	}

	s.log.Debug("Outcome recorded",
		"user_id", in.UserID,
		"vocab_id", in.VocabID,
		"track", in.Track,
		"mode", in.Mode.String(),
		"raw_rating", int(out.Grading.Raw),
		"effective_rating", int(out.Grading.Effective),
		"cross_track_capped", out.Grading.CrossTrackCapped,
		"state", out.Progress.State.String(),
		"next_due_at", out.Progress.NextDueAt,
	)
	return out, nil
}
