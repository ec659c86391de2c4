package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	"github.com/yungbote/vocabdrill-backend/internal/data/repos/testutil"
	"github.com/yungbote/vocabdrill-backend/internal/domain/jobs"
	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/platform/apierr"
	"github.com/yungbote/vocabdrill-backend/internal/platform/ctxutil"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
)

func newTestJobService(t *testing.T) (JobService, repos.Repos) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	return NewJobService(db, log, r.JobRun, nil), r
}

func TestEnqueueDrillJobDedupes(t *testing.T) {
	svc, _ := newTestJobService(t)
	user := uuid.New()
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{TraceID: "t-1", RequestID: "r-1"})

	first, created, err := svc.EnqueueDrillJob(dbctx.Context{Ctx: ctx}, DrillJobRequest{UserID: user, Mode: learning.ModeAudio})
	if err != nil || !created {
		t.Fatalf("first enqueue: created=%v err=%v", created, err)
	}
	if first.JobType != jobs.JobTypeDrillGenerateScheduled || first.Status != jobs.StatusQueued {
		t.Fatalf("unexpected job %+v", first)
	}
	var payload jobs.DrillJobPayload
	if err := json.Unmarshal(first.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.UserID != user || payload.Mode != "audio" || payload.TraceID != "t-1" || payload.RequestID != "r-1" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	second, created, err := svc.EnqueueDrillJob(dbctx.Context{Ctx: ctx}, DrillJobRequest{UserID: user, Mode: learning.ModeAudio})
	if err != nil || created || second.ID != first.ID {
		t.Fatalf("expected dedupe onto %s, got created=%v job=%v err=%v", first.ID, created, second, err)
	}

	// another mode or job type is independent
	if _, created, _ := svc.EnqueueDrillJob(dbctx.Context{Ctx: ctx}, DrillJobRequest{UserID: user, Mode: learning.ModeSyntax}); !created {
		t.Fatalf("syntax job should not dedupe against audio")
	}
	rep, created, err := svc.EnqueueDrillJob(dbctx.Context{Ctx: ctx}, DrillJobRequest{UserID: user, Mode: learning.ModeAudio, ExplicitWordIDs: []uuid.UUID{uuid.New()}})
	if err != nil || !created || rep.JobType != jobs.JobTypeDrillReplenishWords {
		t.Fatalf("replenish job: %+v %v %v", rep, created, err)
	}
}

func TestEnqueueDrillJobMergesExplicitWords(t *testing.T) {
	svc, r := newTestJobService(t)
	user := uuid.New()
	ctx := context.Background()
	wordA, wordB, wordC := uuid.New(), uuid.New(), uuid.New()

	first, created, err := svc.EnqueueDrillJob(dbctx.Context{Ctx: ctx}, DrillJobRequest{UserID: user, Mode: learning.ModeSyntax, ExplicitWordIDs: []uuid.UUID{wordA}})
	if err != nil || !created {
		t.Fatalf("enqueue A: created=%v err=%v", created, err)
	}
	second, created, err := svc.EnqueueDrillJob(dbctx.Context{Ctx: ctx}, DrillJobRequest{UserID: user, Mode: learning.ModeSyntax, ExplicitWordIDs: []uuid.UUID{wordB}})
	if err != nil || created || second.ID != first.ID {
		t.Fatalf("enqueue B should fold into %s: created=%v job=%v err=%v", first.ID, created, second, err)
	}
	rows, err := r.JobRun.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{first.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("reload: %v", err)
	}
	var payload jobs.DrillJobPayload
	if err := json.Unmarshal(rows[0].Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	got := map[uuid.UUID]bool{}
	for _, id := range payload.ExplicitWordIDs {
		got[id] = true
	}
	if len(got) != 2 || !got[wordA] || !got[wordB] {
		t.Fatalf("expected A and B in payload, got %v", payload.ExplicitWordIDs)
	}

	// once the job is running, a new word gets its own job
	if err := r.JobRun.UpdateFields(dbctx.Context{Ctx: ctx}, first.ID, map[string]interface{}{"status": jobs.StatusRunning}); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if again, created, err := svc.EnqueueDrillJob(dbctx.Context{Ctx: ctx}, DrillJobRequest{UserID: user, Mode: learning.ModeSyntax, ExplicitWordIDs: []uuid.UUID{wordA}}); err != nil || created || again.ID != first.ID {
		t.Fatalf("covered word should dedupe onto running job: created=%v err=%v", created, err)
	}
	third, created, err := svc.EnqueueDrillJob(dbctx.Context{Ctx: ctx}, DrillJobRequest{UserID: user, Mode: learning.ModeSyntax, ExplicitWordIDs: []uuid.UUID{wordC}})
	if err != nil || !created || third.ID == first.ID {
		t.Fatalf("enqueue C behind running job: created=%v err=%v", created, err)
	}
}

func TestEnqueueDrillJobValidates(t *testing.T) {
	svc, _ := newTestJobService(t)
	_, _, err := svc.EnqueueDrillJob(dbctx.Context{Ctx: context.Background()}, DrillJobRequest{UserID: uuid.New(), Mode: learning.Mode(42)})
	if apierr.Status(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	_, _, err = svc.EnqueueDrillJob(dbctx.Context{Ctx: context.Background()}, DrillJobRequest{Mode: learning.ModeAudio})
	if apierr.Status(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestRequestUserScoping(t *testing.T) {
	svc, _ := newTestJobService(t)
	owner, other := uuid.New(), uuid.New()
	job, _, err := svc.EnqueueDrillJob(dbctx.Context{Ctx: context.Background()}, DrillJobRequest{UserID: owner, Mode: learning.ModeBlitz})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	otherCtx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: other})
	if _, err := svc.GetByIDForRequestUser(dbctx.Context{Ctx: otherCtx}, job.ID); apierr.Status(err) != http.StatusNotFound {
		t.Fatalf("other user should not see job: %v", err)
	}

	ownerCtx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: owner})
	list, err := svc.ListForRequestUser(dbctx.Context{Ctx: ownerCtx}, repos.JobListFilter{Limit: 10})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %d %v", len(list), err)
	}
	canceled, err := svc.CancelForRequestUser(dbctx.Context{Ctx: ownerCtx}, job.ID)
	if err != nil || canceled.Status != jobs.StatusCanceled {
		t.Fatalf("cancel: %+v %v", canceled, err)
	}
	// a canceled job no longer blocks a new one
	if _, created, err := svc.EnqueueDrillJob(dbctx.Context{Ctx: context.Background()}, DrillJobRequest{UserID: owner, Mode: learning.ModeBlitz}); err != nil || !created {
		t.Fatalf("re-enqueue after cancel: %v %v", created, err)
	}
	if _, err := svc.GetByIDForRequestUser(dbctx.Context{Ctx: context.Background()}, job.ID); !errors.As(err, new(*apierr.Error)) {
		t.Fatalf("expected typed error without request user, got %v", err)
	}
}
