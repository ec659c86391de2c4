package learning

import (
	"time"

	"github.com/google/uuid"
)

// LearningProgress is the memory state for one (user, vocab, track).
type LearningProgress struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_vocab_track,priority:1;index" json:"user_id"`
	VocabID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_vocab_track,priority:2" json:"vocab_id"`
	Track          Track      `gorm:"column:track;not null;uniqueIndex:idx_progress_user_vocab_track,priority:3" json:"track"`
	Stability      float64    `gorm:"column:stability;not null" json:"stability"`
	Difficulty     float64    `gorm:"column:difficulty;not null" json:"difficulty"`
	ElapsedDays    int        `gorm:"column:elapsed_days;not null" json:"elapsed_days"`
	ScheduledDays  int        `gorm:"column:scheduled_days;not null" json:"scheduled_days"`
	Reps           int        `gorm:"column:reps;not null" json:"reps"`
	Lapses         int        `gorm:"column:lapses;not null;index" json:"lapses"`
	State          CardState  `gorm:"column:state;not null" json:"state"`
	LastReviewedAt *time.Time `gorm:"column:last_reviewed_at" json:"last_reviewed_at,omitempty"`
	NextDueAt      time.Time  `gorm:"column:next_due_at;not null;index" json:"next_due_at"`
	DimV           float64    `gorm:"column:dim_v;not null" json:"dim_v"`
	DimC           float64    `gorm:"column:dim_c;not null" json:"dim_c"`
	DimA           float64    `gorm:"column:dim_a;not null" json:"dim_a"`
	DimX           float64    `gorm:"column:dim_x;not null" json:"dim_x"`
	DimM           float64    `gorm:"column:dim_m;not null" json:"dim_m"`
	MasteryScore   float64    `gorm:"column:mastery_score;not null" json:"mastery_score"`
	CreatedAt      time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (LearningProgress) TableName() string { return "learning_progress" }

// IsLeech reports whether the row has lapsed at least threshold times.
func (p *LearningProgress) IsLeech(threshold int) bool {
	return p != nil && threshold > 0 && p.Lapses >= threshold
}

// Dim returns a pointer to the named dimension score, or nil.
func (p *LearningProgress) Dim(d Dimension) *float64 {
	if p == nil {
		return nil
	}
	switch d {
	case DimVisual:
		return &p.DimV
	case DimCollocate:
		return &p.DimC
	case DimAudio:
		return &p.DimA
	case DimContext:
		return &p.DimX
	case DimMixed:
		return &p.DimM
	}
	return nil
}

// ReviewAudit records one scheduler transition.
type ReviewAudit struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	VocabID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"vocab_id"`
	Track            Track      `gorm:"column:track;not null" json:"track"`
	Mode             string     `gorm:"column:mode;not null" json:"mode"`
	RawRating        Rating     `gorm:"column:raw_rating;not null" json:"raw_rating"`
	EffectiveRating  Rating     `gorm:"column:effective_rating;not null" json:"effective_rating"`
	CrossTrackCapped bool       `gorm:"column:cross_track_capped;not null" json:"cross_track_capped"`
	ImplicitAdjusted bool       `gorm:"column:implicit_adjusted;not null" json:"implicit_adjusted"`
	ResponseTimeMs   int        `gorm:"column:response_time_ms;not null" json:"response_time_ms"`
	PrevState        CardState  `gorm:"column:prev_state;not null" json:"prev_state"`
	NewState         CardState  `gorm:"column:new_state;not null" json:"new_state"`
	PrevStability    float64    `gorm:"column:prev_stability;not null" json:"prev_stability"`
	NewStability     float64    `gorm:"column:new_stability;not null" json:"new_stability"`
	PrevDifficulty   float64    `gorm:"column:prev_difficulty;not null" json:"prev_difficulty"`
	NewDifficulty    float64    `gorm:"column:new_difficulty;not null" json:"new_difficulty"`
	PrevDueAt        *time.Time `gorm:"column:prev_due_at" json:"prev_due_at,omitempty"`
	NewDueAt         time.Time  `gorm:"column:new_due_at;not null" json:"new_due_at"`
	Dimension        Dimension  `gorm:"column:dimension;not null" json:"dimension"`
	MasteryScore     float64    `gorm:"column:mastery_score;not null" json:"mastery_score"`
	CreatedAt        time.Time  `gorm:"not null;index" json:"created_at"`
}

func (ReviewAudit) TableName() string { return "review_audit" }
