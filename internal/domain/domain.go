package domain

import (
	"github.com/yungbote/vocabdrill-backend/internal/domain/jobs"
	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
)

type (
	JobRun = jobs.JobRun

	LearningProgress = learning.LearningProgress
	ReviewAudit      = learning.ReviewAudit
	Vocab            = learning.Vocab
	DrillCandidate   = learning.DrillCandidate
	MemorySnapshot   = learning.MemorySnapshot
)

// Models lists every table owned by this service, in migration order.
func Models() []any {
	return []any{
		&Vocab{},
		&LearningProgress{},
		&ReviewAudit{},
		&JobRun{},
	}
}

const (
	StatusQueuedJob    = jobs.StatusQueued
	StatusRunningJob   = jobs.StatusRunning
	StatusSucceededJob = jobs.StatusSucceeded
	StatusFailedJob    = jobs.StatusFailed
	StatusCanceledJob  = jobs.StatusCanceled
)

type DrillJobPayload = jobs.DrillJobPayload
