package drill_generate

import (
	"context"

	"github.com/yungbote/vocabdrill-backend/internal/domain/jobs"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/generation"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

// Runner is the generation pass a job drives.
type Runner interface {
	Run(ctx context.Context, req generation.Request) (*generation.Result, error)
}

type Pipeline struct {
	log     *logger.Logger
	runner  Runner
	jobType string
}

// New handles targeted replenish runs queued when a word's stock runs low.
func New(baseLog *logger.Logger, runner Runner) *Pipeline {
	return newPipeline(baseLog, runner, jobs.JobTypeDrillReplenishWords)
}

// NewScheduled handles whole-mode fills queued by the scheduler or by an
// empty inventory.
func NewScheduled(baseLog *logger.Logger, runner Runner) *Pipeline {
	return newPipeline(baseLog, runner, jobs.JobTypeDrillGenerateScheduled)
}

func newPipeline(baseLog *logger.Logger, runner Runner, jobType string) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("job", jobType),
		runner:  runner,
		jobType: jobType,
	}
}

func (p *Pipeline) Type() string { return p.jobType }
