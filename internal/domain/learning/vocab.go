package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Vocab is the shared word catalog. Only enrichment jobs write to it.
type Vocab struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Word           string         `gorm:"column:word;not null;uniqueIndex" json:"word"`
	Definition     string         `gorm:"column:definition" json:"definition,omitempty"`
	Definitions    datatypes.JSON `gorm:"column:definitions" json:"definitions,omitempty"`
	Collocations   datatypes.JSON `gorm:"column:collocations" json:"collocations,omitempty"`
	ScenarioTags   datatypes.JSON `gorm:"column:scenario_tags" json:"scenario_tags,omitempty"`
	FrequencyScore float64        `gorm:"column:frequency_score;not null;index" json:"frequency_score"`
	Tier           PriorityTier   `gorm:"column:tier;not null;index" json:"tier"`
	Embedding      []byte         `gorm:"column:embedding" json:"-"`
	EnrichedAt     *time.Time     `gorm:"column:enriched_at;index" json:"enriched_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (Vocab) TableName() string { return "vocab" }

type CandidateType string

const (
	CandidateNew    CandidateType = "new"
	CandidateReview CandidateType = "review"
)

// MemorySnapshot is the slice of scheduler state routing needs.
type MemorySnapshot struct {
	Stability  float64   `json:"stability"`
	Difficulty float64   `json:"difficulty"`
	State      CardState `json:"state"`
	Reps       int       `json:"reps"`
	Lapses     int       `json:"lapses"`
	NextDueAt  time.Time `json:"next_due_at"`
}

// DrillCandidate joins a Vocab row with the user's progress for one run.
// It is never persisted.
type DrillCandidate struct {
	VocabID      uuid.UUID       `json:"vocab_id"`
	Word         string          `json:"word"`
	Definition   string          `json:"definition"`
	Type         CandidateType   `json:"type"`
	Tier         PriorityTier    `json:"tier"`
	Frequency    float64         `json:"frequency"`
	Memory       *MemorySnapshot `json:"memory,omitempty"`
	Rescue       bool            `json:"rescue,omitempty"`
	ContextWords []string        `json:"context_words,omitempty"`
}

func CandidateFromVocab(v *Vocab, p *LearningProgress) DrillCandidate {
	c := DrillCandidate{
		VocabID:    v.ID,
		Word:       v.Word,
		Definition: v.Definition,
		Type:       CandidateNew,
		Tier:       v.Tier,
		Frequency:  v.FrequencyScore,
	}
	if p != nil && p.State != StateNew {
		c.Type = CandidateReview
		c.Memory = &MemorySnapshot{
			Stability:  p.Stability,
			Difficulty: p.Difficulty,
			State:      p.State,
			Reps:       p.Reps,
			Lapses:     p.Lapses,
			NextDueAt:  p.NextDueAt,
		}
	}
	return c
}
