package drill_generate

import (
	"fmt"

	"github.com/yungbote/vocabdrill-backend/internal/domain/jobs"
	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	jobrt "github.com/yungbote/vocabdrill-backend/internal/jobs/runtime"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/generation"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	payload, err := jc.PayloadDrill()
	if err != nil {
		jc.Fail("validate", err)
		return nil
	}
	mode, err := learning.ParseMode(payload.Mode)
	if err != nil {
		jc.Fail("validate", err)
		return nil
	}
	if p.jobType == jobs.JobTypeDrillReplenishWords && len(payload.ExplicitWordIDs) == 0 {
		jc.Fail("validate", fmt.Errorf("replenish job without explicit_word_ids"))
		return nil
	}

	jc.Progress("generate", 5, fmt.Sprintf("Generating %s drills", mode))
	res, err := p.runner.Run(jc.Ctx, generation.Request{
		UserID:          payload.UserID,
		Mode:            mode,
		ExplicitWordIDs: payload.ExplicitWordIDs,
		ForceLimit:      payload.ForceLimit,
		JobID:           jc.Job.ID,
		Retry:           jc.Job.Attempts > 1,
	})
	if err != nil {
		// Pushed drills stay stocked; the retry skips any word with stock.
		if res != nil {
			p.log.Warn("Drill generation partially failed",
				"job_id", jc.Job.ID,
				"pushed", res.Pushed(),
				"pivots", res.Pivots(),
				"error", err,
			)
		}
		jc.Fail("generate", err)
		return nil
	}

	jc.Succeed("done", map[string]any{
		"user_id":         payload.UserID.String(),
		"mode":            mode.String(),
		"status":          res.Status,
		"effective_limit": res.EffectiveLimit,
		"candidates":      res.Candidates,
		"skipped":         res.Skipped,
		"pushed":          res.Pushed(),
		"pivots":          res.Pivots(),
		"families":        res.Families,
	})
	return nil
}
