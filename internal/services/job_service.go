package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	types "github.com/yungbote/vocabdrill-backend/internal/domain"
	"github.com/yungbote/vocabdrill-backend/internal/domain/jobs"
	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/platform/apierr"
	"github.com/yungbote/vocabdrill-backend/internal/platform/ctxutil"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

type DrillJobRequest struct {
	UserID          uuid.UUID
	Mode            learning.Mode
	ExplicitWordIDs []uuid.UUID
	ForceLimit      int
}

type JobService interface {
	Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	// EnqueueDrillJob returns the existing job and false when a queued or
	// running job already covers the same (type, user, mode). Explicit words
	// are merged into a still-queued job; a running job that lacks them
	// gets a new job behind it.
	EnqueueDrillJob(dbc dbctx.Context, req DrillJobRequest) (*types.JobRun, bool, error)
	GetByIDForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
	ListForRequestUser(dbc dbctx.Context, f repos.JobListFilter) ([]*types.JobRun, error)
	CancelForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	notify JobNotifier
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, notify JobNotifier) JobService {
	if notify == nil {
		notify = NewJobNotifier(baseLog)
	}
	return &jobService{
		db:     db,
		log:    baseLog.With("service", "JobService"),
		repo:   repo,
		notify: notify,
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_user_id")
	}
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			if _, ok := payload["trace_id"]; !ok {
				payload["trace_id"] = td.TraceID
			}
		}
		if td.RequestID != "" {
			if _, ok := payload["request_id"]; !ok {
				payload["request_id"] = td.RequestID
			}
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now().UTC()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      types.StatusQueuedJob,
		Stage:       "queued",
		Message:     "Queued",
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.notify.JobCreated(ownerUserID, job)
	return job, nil
}

func (s *jobService) EnqueueDrillJob(dbc dbctx.Context, req DrillJobRequest) (*types.JobRun, bool, error) {
	if req.UserID == uuid.Nil {
		return nil, false, apierr.New(http.StatusUnauthorized, "unauthorized", nil)
	}
	if !req.Mode.Valid() {
		return nil, false, apierr.New(http.StatusBadRequest, "invalid_mode", fmt.Errorf("invalid mode"))
	}
	if req.ForceLimit < 0 {
		return nil, false, apierr.New(http.StatusBadRequest, "invalid_force_limit", fmt.Errorf("force_limit must be >= 0"))
	}
	wordIDs := jobs.SortedWordIDs(req.ExplicitWordIDs)
	jobType := jobs.DrillJobType(wordIDs)
	entityID := jobs.DrillEntityID(req.UserID, req.Mode.String())

	var (
		out     *types.JobRun
		created bool
	)
	err := dbc.DB(s.db).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		busy, err := s.repo.HasRunnableForEntity(inner, req.UserID, jobs.EntityTypeDrillInventory, entityID, jobType)
		if err != nil {
			return err
		}
		if busy {
			out, err = s.repo.GetLatestByEntity(inner, req.UserID, jobs.EntityTypeDrillInventory, entityID, jobType)
			if err != nil || out == nil || len(wordIDs) == 0 {
				return err
			}
			covered, err := s.absorbWordIDs(inner, out, wordIDs)
			if err != nil || covered {
				return err
			}
			// the pending run already started without these words
		}
		payload := map[string]any{
			"user_id": req.UserID.String(),
			"mode":    req.Mode.String(),
		}
		if len(wordIDs) > 0 {
			payload["explicit_word_ids"] = wordIDs
		}
		if req.ForceLimit > 0 {
			payload["force_limit"] = req.ForceLimit
		}
		out, err = s.Enqueue(inner, req.UserID, jobType, jobs.EntityTypeDrillInventory, &entityID, payload)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		s.log.Debug("Drill job already pending", "user_id", req.UserID.String(), "mode", req.Mode.String(), "job_type", jobType)
	}
	return out, created, nil
}

// absorbWordIDs reports whether job will replenish every id in wordIDs,
// merging missing ids into its payload while it is still queued.
func (s *jobService) absorbWordIDs(dbc dbctx.Context, job *types.JobRun, wordIDs []uuid.UUID) (bool, error) {
	var payload map[string]any
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return false, fmt.Errorf("decode job payload: %w", err)
	}
	var existing jobs.DrillJobPayload
	_ = json.Unmarshal(job.Payload, &existing)
	have := make(map[uuid.UUID]bool, len(existing.ExplicitWordIDs))
	for _, id := range existing.ExplicitWordIDs {
		have[id] = true
	}
	missing := false
	for _, id := range wordIDs {
		if !have[id] {
			missing = true
			break
		}
	}
	if !missing {
		return true, nil
	}
	if job.Status != types.StatusQueuedJob {
		return false, nil
	}

	merged := jobs.SortedWordIDs(append(existing.ExplicitWordIDs, wordIDs...))
	payload["explicit_word_ids"] = merged
	b, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	ok, err := s.repo.UpdateFieldsUnlessStatus(dbc, job.ID,
		[]string{types.StatusRunningJob, types.StatusSucceededJob, types.StatusFailedJob, types.StatusCanceledJob},
		map[string]interface{}{"payload": datatypes.JSON(b), "updated_at": now},
	)
	if err != nil || !ok {
		return false, err
	}
	job.Payload = datatypes.JSON(b)
	job.UpdatedAt = now
	s.log.Debug("Merged words into pending replenish job", "job_id", job.ID.String(), "words", len(merged))
	return true, nil
}

func (s *jobService) GetByIDForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", nil)
	}
	if jobID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_job_id", fmt.Errorf("missing job id"))
	}
	rows, err := s.repo.GetByIDs(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, []uuid.UUID{jobID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0] == nil || rows[0].OwnerUserID != rd.UserID {
		return nil, apierr.New(http.StatusNotFound, "job_not_found", fmt.Errorf("job not found"))
	}
	return rows[0], nil
}

// ListForRequestUser ignores any owner in f; the caller only sees their own jobs.
func (s *jobService) ListForRequestUser(dbc dbctx.Context, f repos.JobListFilter) ([]*types.JobRun, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", nil)
	}
	f.OwnerUserID = rd.UserID
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.repo.List(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, f)
}

func (s *jobService) CancelForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", nil)
	}

	var (
		updated      *types.JobRun
		shouldNotify bool
	)
	err := dbc.DB(s.db).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		job, err := s.GetByIDForRequestUser(inner, jobID)
		if err != nil {
			return err
		}
		if job.Terminal() || job.Status == types.StatusFailedJob {
			updated = job
			return nil
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateFields(inner, jobID, map[string]interface{}{
			"status":       types.StatusCanceledJob,
			"message":      "Canceled",
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		}); err != nil {
			return err
		}
		job.Status = types.StatusCanceledJob
		job.Message = "Canceled"
		job.LockedAt = nil
		job.HeartbeatAt = &now
		job.UpdatedAt = now
		updated = job
		shouldNotify = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if shouldNotify {
		s.notify.JobCanceled(rd.UserID, updated)
	}
	return updated, nil
}
