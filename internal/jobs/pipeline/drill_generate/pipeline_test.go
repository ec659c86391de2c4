package drill_generate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	"github.com/yungbote/vocabdrill-backend/internal/data/repos/testutil"
	types "github.com/yungbote/vocabdrill-backend/internal/domain"
	"github.com/yungbote/vocabdrill-backend/internal/domain/jobs"
	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	jobrt "github.com/yungbote/vocabdrill-backend/internal/jobs/runtime"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/generation"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
)

type fakeRunner struct {
	got generation.Request
	res *generation.Result
	err error
}

func (f *fakeRunner) Run(_ context.Context, req generation.Request) (*generation.Result, error) {
	f.got = req
	return f.res, f.err
}

func claimed(t *testing.T, jobType string, payload jobs.DrillJobPayload) (*jobrt.Context, repos.JobRunRepo) {
	t.Helper()
	db := testutil.DB(t)
	repo := repos.New(db, testutil.Logger(t)).JobRun
	b, _ := json.Marshal(payload)
	rows, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{{
		OwnerUserID: payload.UserID,
		JobType:     jobType,
		Status:      types.StatusRunningJob,
		Payload:     b,
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return jobrt.NewContext(context.Background(), db, rows[0], repo, nil), repo
}

func reload(t *testing.T, repo repos.JobRunRepo, id uuid.UUID) *types.JobRun {
	t.Helper()
	rows, err := repo.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{id})
	if err != nil || len(rows) != 1 {
		t.Fatalf("reload: %v", err)
	}
	return rows[0]
}

func TestScheduledRunSucceedsWithSummary(t *testing.T) {
	user := uuid.New()
	runner := &fakeRunner{res: &generation.Result{
		Status:         generation.StatusCompleted,
		EffectiveLimit: 3,
		Candidates:     3,
		Families: []generation.FamilyResult{
			{Family: "structural", Requested: 2, Accepted: 2, Pushed: 2},
			{Family: "phrase", Requested: 1, Pivots: 1, Pushed: 1},
		},
	}}
	jc, repo := claimed(t, jobs.JobTypeDrillGenerateScheduled, jobs.DrillJobPayload{UserID: user, Mode: "phrase", ForceLimit: 3})

	p := NewScheduled(testutil.Logger(t), runner)
	if p.Type() != jobs.JobTypeDrillGenerateScheduled {
		t.Fatalf("Type() = %s", p.Type())
	}
	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runner.got.Mode != learning.ModePhrase || runner.got.ForceLimit != 3 || runner.got.JobID != jc.Job.ID {
		t.Fatalf("unexpected request %+v", runner.got)
	}

	row := reload(t, repo, jc.Job.ID)
	if row.Status != types.StatusSucceededJob {
		t.Fatalf("status = %s (%s)", row.Status, row.Error)
	}
	var out map[string]any
	_ = json.Unmarshal(row.Result, &out)
	if out["pushed"] != float64(3) || out["pivots"] != float64(1) || out["status"] != "completed" {
		t.Fatalf("unexpected result %v", out)
	}
}

func TestReplenishRequiresExplicitWords(t *testing.T) {
	jc, repo := claimed(t, jobs.JobTypeDrillReplenishWords, jobs.DrillJobPayload{UserID: uuid.New(), Mode: "syntax"})
	runner := &fakeRunner{}
	if err := New(testutil.Logger(t), runner).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	row := reload(t, repo, jc.Job.ID)
	if row.Status != types.StatusFailedJob || row.Stage != "validate" {
		t.Fatalf("expected validate failure, got %+v", row)
	}
}

func TestGenerationErrorFailsForRetry(t *testing.T) {
	word := uuid.New()
	jc, repo := claimed(t, jobs.JobTypeDrillReplenishWords, jobs.DrillJobPayload{UserID: uuid.New(), Mode: "blitz", ExplicitWordIDs: []uuid.UUID{word}})
	runner := &fakeRunner{
		res: &generation.Result{Status: generation.StatusPartial, Families: []generation.FamilyResult{{Pushed: 1}}},
		err: errors.New("rapid_recall: all providers failed"),
	}
	if err := New(testutil.Logger(t), runner).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(runner.got.ExplicitWordIDs) != 1 || runner.got.ExplicitWordIDs[0] != word {
		t.Fatalf("explicit ids not forwarded: %+v", runner.got)
	}
	row := reload(t, repo, jc.Job.ID)
	if row.Status != types.StatusFailedJob || row.Stage != "generate" || row.LastErrorAt == nil {
		t.Fatalf("expected retryable failure, got %+v", row)
	}
}

func TestBadModeFailsValidation(t *testing.T) {
	jc, repo := claimed(t, jobs.JobTypeDrillGenerateScheduled, jobs.DrillJobPayload{UserID: uuid.New(), Mode: "karaoke"})
	_ = NewScheduled(testutil.Logger(t), &fakeRunner{}).Run(jc)
	if row := reload(t, repo, jc.Job.ID); row.Status != types.StatusFailedJob || row.Stage != "validate" {
		t.Fatalf("expected validate failure, got %+v", row)
	}
}

func TestRetriedJobSkipsStockedWords(t *testing.T) {
	user := uuid.New()
	runner := &fakeRunner{res: &generation.Result{Status: generation.StatusCompleted}}
	jc, _ := claimed(t, jobs.JobTypeDrillGenerateScheduled, jobs.DrillJobPayload{UserID: user, Mode: "syntax"})
	jc.Job.Attempts = 1
	if err := NewScheduled(testutil.Logger(t), runner).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runner.got.Retry {
		t.Fatalf("first attempt flagged as retry")
	}

	jc, _ = claimed(t, jobs.JobTypeDrillGenerateScheduled, jobs.DrillJobPayload{UserID: user, Mode: "syntax"})
	jc.Job.Attempts = 2
	if err := NewScheduled(testutil.Logger(t), runner).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !runner.got.Retry {
		t.Fatalf("second attempt should skip stocked words")
	}
}
