package services

import (
	"github.com/google/uuid"

	types "github.com/yungbote/vocabdrill-backend/internal/domain"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

// JobNotifier receives job lifecycle transitions.
type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobCanceled(userID uuid.UUID, job *types.JobRun)
	JobDone(userID uuid.UUID, job *types.JobRun)
}

type jobNotifier struct {
	log *logger.Logger
}

// NewJobNotifier reports lifecycle transitions to the structured log.
func NewJobNotifier(baseLog *logger.Logger) JobNotifier {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &jobNotifier{log: baseLog.With("component", "JobNotifier")}
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	n.log.Debug("Job created", "user_id", userID.String(), "job_id", job.ID.String(), "job_type", job.JobType)
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	n.log.Debug("Job progress",
		"user_id", userID.String(),
		"job_id", job.ID.String(),
		"job_type", job.JobType,
		"stage", stage,
		"progress", progress,
		"message", message,
	)
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	n.log.Warn("Job failed",
		"user_id", userID.String(),
		"job_id", job.ID.String(),
		"job_type", job.JobType,
		"stage", stage,
		"attempts", job.Attempts,
		"error", errorMessage,
	)
}

func (n *jobNotifier) JobCanceled(userID uuid.UUID, job *types.JobRun) {
	n.log.Info("Job canceled", "user_id", userID.String(), "job_id", job.ID.String(), "job_type", job.JobType)
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	n.log.Info("Job done", "user_id", userID.String(), "job_id", job.ID.String(), "job_type", job.JobType)
}
