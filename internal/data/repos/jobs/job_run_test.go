package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos/testutil"
	types "github.com/yungbote/vocabdrill-backend/internal/domain"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
)

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	ownerUserID := uuid.New()

	queued := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     "test_job",
		EntityType:  "drill_inventory",
		EntityID:    ptrUUID(uuid.New()),
		Status:      types.StatusQueuedJob,
		Stage:       "queued",
		Payload:     datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-3 * time.Hour),
		UpdatedAt:   now.Add(-3 * time.Hour),
	}
	failed := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     "test_job",
		EntityType:  "drill_inventory",
		EntityID:    ptrUUID(uuid.New()),
		Status:      types.StatusFailedJob,
		Stage:       "failed",
		LastErrorAt: ptrTime(now.Add(-2 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now.Add(-2 * time.Hour),
	}
	staleRunning := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     "test_job",
		EntityType:  "drill_inventory",
		EntityID:    ptrUUID(uuid.New()),
		Status:      types.StatusRunningJob,
		Stage:       "running",
		HeartbeatAt: ptrTime(now.Add(-10 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-1 * time.Hour),
		UpdatedAt:   now.Add(-1 * time.Hour),
	}
	exhausted := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     "test_job",
		Status:      types.StatusFailedJob,
		Stage:       "failed",
		Attempts:    3,
		LastErrorAt: ptrTime(now.Add(-5 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-6 * time.Hour),
		UpdatedAt:   now.Add(-6 * time.Hour),
	}

	created, err := repo.Create(dbc, []*types.JobRun{queued, failed, staleRunning, exhausted})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 4 {
		t.Fatalf("Create: expected 4, got %d", len(created))
	}

	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{queued.ID, failed.ID, staleRunning.ID}); err != nil || len(rows) != 3 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	// ClaimNextRunnable walks the runnable set in created_at ASC order and
	// skips failed jobs that have used up their attempts.
	for i, want := range []uuid.UUID{queued.ID, failed.ID, staleRunning.ID} {
		claim, err := repo.ClaimNextRunnable(dbc, 3, 1*time.Hour, 1*time.Hour)
		if err != nil {
			t.Fatalf("ClaimNextRunnable #%d: %v", i+1, err)
		}
		if claim == nil || claim.ID != want {
			t.Fatalf("ClaimNextRunnable #%d: expected %v got %v", i+1, want, claim)
		}
		if claim.Status != types.StatusRunningJob {
			t.Fatalf("ClaimNextRunnable #%d: status=%q", i+1, claim.Status)
		}
	}
	if claim, err := repo.ClaimNextRunnable(dbc, 3, 1*time.Hour, 1*time.Hour); err != nil || claim != nil {
		t.Fatalf("ClaimNextRunnable #4: expected nil, got %v err=%v", claim, err)
	}

	ok, err := repo.UpdateFieldsUnlessStatus(dbc, queued.ID, []string{types.StatusCanceledJob}, map[string]interface{}{"status": types.StatusSucceededJob})
	if err != nil || !ok {
		t.Fatalf("UpdateFieldsUnlessStatus: ok=%v err=%v", ok, err)
	}
	if err := repo.UpdateFields(dbc, failed.ID, map[string]interface{}{"status": types.StatusCanceledJob}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	ok, err = repo.UpdateFieldsUnlessStatus(dbc, failed.ID, []string{types.StatusCanceledJob}, map[string]interface{}{"status": types.StatusSucceededJob})
	if err != nil || ok {
		t.Fatalf("UpdateFieldsUnlessStatus on canceled: ok=%v err=%v", ok, err)
	}

	if err := repo.Heartbeat(dbc, staleRunning.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	entityID := uuid.New()
	runnable := &types.JobRun{
		OwnerUserID: ownerUserID,
		JobType:     "rebuild",
		EntityType:  "drill_inventory",
		EntityID:    &entityID,
		Payload:     datatypes.JSON([]byte("{}")),
	}
	if _, err := repo.Create(dbc, []*types.JobRun{runnable}); err != nil {
		t.Fatalf("seed runnable: %v", err)
	}
	if runnable.Status != types.StatusQueuedJob {
		t.Fatalf("Create: expected default queued status, got %q", runnable.Status)
	}
	has, err := repo.HasRunnableForEntity(dbc, ownerUserID, "drill_inventory", entityID, "rebuild")
	if err != nil || !has {
		t.Fatalf("HasRunnableForEntity: has=%v err=%v", has, err)
	}
	has, err = repo.HasRunnableForEntity(dbc, ownerUserID, "drill_inventory", entityID, "other")
	if err != nil || has {
		t.Fatalf("HasRunnableForEntity (other): has=%v err=%v", has, err)
	}
	latest, err := repo.GetLatestByEntity(dbc, ownerUserID, "drill_inventory", entityID, "rebuild")
	if err != nil || latest == nil || latest.ID != runnable.ID {
		t.Fatalf("GetLatestByEntity: got %v err=%v", latest, err)
	}

	recent, err := repo.List(dbc, ListFilter{OwnerUserID: ownerUserID, Limit: 2})
	if err != nil || len(recent) != 2 {
		t.Fatalf("List: len=%d err=%v", len(recent), err)
	}
	byType, err := repo.List(dbc, ListFilter{OwnerUserID: ownerUserID, JobType: "rebuild"})
	if err != nil || len(byType) != 1 || byType[0].ID != runnable.ID {
		t.Fatalf("List by type: %v err=%v", byType, err)
	}
	byStatus, err := repo.List(dbc, ListFilter{OwnerUserID: ownerUserID, Status: types.StatusCanceledJob})
	if err != nil || len(byStatus) != 1 || byStatus[0].ID != failed.ID {
		t.Fatalf("List by status: %v err=%v", byStatus, err)
	}
	if other, err := repo.List(dbc, ListFilter{OwnerUserID: uuid.New()}); err != nil || len(other) != 0 {
		t.Fatalf("List for another owner: %v err=%v", other, err)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrUUID(u uuid.UUID) *uuid.UUID { return &u }
