package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos/jobs"
	"github.com/yungbote/vocabdrill-backend/internal/data/repos/learning"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

type JobRunRepo = jobs.JobRunRepo
type JobListFilter = jobs.ListFilter

type ProgressRepo = learning.ProgressRepo
type VocabRepo = learning.VocabRepo
type ReviewAuditRepo = learning.ReviewAuditRepo

type DueQuery = learning.DueQuery
type UnseenQuery = learning.UnseenQuery

type Repos struct {
	JobRun      JobRunRepo
	Progress    ProgressRepo
	Vocab       VocabRepo
	ReviewAudit ReviewAuditRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		JobRun:      jobs.NewJobRunRepo(db, log),
		Progress:    learning.NewProgressRepo(db, log),
		Vocab:       learning.NewVocabRepo(db, log),
		ReviewAudit: learning.NewReviewAuditRepo(db, log),
	}
}
