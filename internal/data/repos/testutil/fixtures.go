package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
)

func SeedVocab(tb testing.TB, ctx context.Context, tx *gorm.DB, word string, tier learning.PriorityTier, freq float64) *learning.Vocab {
	tb.Helper()
	v := &learning.Vocab{
		ID:             uuid.New(),
		Word:           word,
		Definition:     "definition of " + word,
		FrequencyScore: freq,
		Tier:           tier,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed vocab: %v", err)
	}
	return v
}

func SeedProgress(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, vocabID uuid.UUID, track learning.Track, state learning.CardState, due time.Time, lapses int) *learning.LearningProgress {
	tb.Helper()
	last := due.Add(-24 * time.Hour)
	p := &learning.LearningProgress{
		ID:             uuid.New(),
		UserID:         userID,
		VocabID:        vocabID,
		Track:          track,
		Stability:      3,
		Difficulty:     5,
		Reps:           2,
		Lapses:         lapses,
		State:          state,
		LastReviewedAt: &last,
		NextDueAt:      due.UTC(),
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed progress: %v", err)
	}
	return p
}
