package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/inventory"
	"github.com/yungbote/vocabdrill-backend/internal/platform/apierr"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

// ErrNoDrill is the only failure a learner sees when nothing is stocked.
var ErrNoDrill = errors.New("no drill available right now")

type NextDrillResult struct {
	Item           *inventory.Item `json:"item"`
	Remaining      int             `json:"remaining"`
	ReplenishJobID *uuid.UUID      `json:"replenish_job_id,omitempty"`
}

type InventoryStatus struct {
	Mode      string             `json:"mode"`
	Words     []string           `json:"words"`
	Remaining int                `json:"remaining"`
	Capacity  inventory.Capacity `json:"capacity"`
}

type DrillService interface {
	NextDrill(ctx context.Context, userID uuid.UUID, mode learning.Mode, word string) (*NextDrillResult, error)
	InventoryStatus(ctx context.Context, userID uuid.UUID, mode learning.Mode) (*InventoryStatus, error)
	ClearInventory(ctx context.Context, userID uuid.UUID, mode learning.Mode) (int, error)
}

type drillService struct {
	log   *logger.Logger
	inv   *inventory.Cache
	vocab repos.VocabRepo
	jobs  JobService
}

func NewDrillService(baseLog *logger.Logger, inv *inventory.Cache, vocab repos.VocabRepo, jobs JobService) DrillService {
	return &drillService{
		log:   baseLog.With("service", "DrillService"),
		inv:   inv,
		vocab: vocab,
		jobs:  jobs,
	}
}

func noDrill() error { return apierr.New(http.StatusNotFound, "no_drill", ErrNoDrill) }

// NextDrill pops the oldest stocked drill for word (any stocked word when
// empty) and queues a replenish once that word runs below the low-water mark.
func (s *drillService) NextDrill(ctx context.Context, userID uuid.UUID, mode learning.Mode, word string) (*NextDrillResult, error) {
	if userID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", nil)
	}
	if !mode.Valid() {
		return nil, apierr.New(http.StatusBadRequest, "invalid_mode", fmt.Errorf("invalid mode"))
	}

	if word == "" {
		w, err := s.inv.RandomWord(ctx, userID, mode)
		if err != nil {
			s.log.Warn("Inventory lookup failed", "user_id", userID.String(), "mode", mode.String(), "error", err)
			return nil, noDrill()
		}
		if w == "" {
			s.replenishEmpty(ctx, userID, mode, "")
			return nil, noDrill()
		}
		word = w
	}

	item, left, err := s.inv.Pop(ctx, userID, mode, word)
	if errors.Is(err, inventory.ErrEmpty) {
		s.replenishEmpty(ctx, userID, mode, word)
		return nil, noDrill()
	}
	if err != nil {
		s.log.Warn("Inventory pop failed", "user_id", userID.String(), "mode", mode.String(), "word", word, "error", err)
		return nil, noDrill()
	}

	out := &NextDrillResult{Item: item, Remaining: left}
	if left < s.inv.Config().LowWater && item.VocabID != uuid.Nil {
		out.ReplenishJobID = s.replenish(ctx, userID, mode, []uuid.UUID{item.VocabID})
	}
	return out, nil
}

// replenishEmpty queues a targeted job when the word is known, else a
// scheduled fill for the whole mode.
func (s *drillService) replenishEmpty(ctx context.Context, userID uuid.UUID, mode learning.Mode, word string) {
	var ids []uuid.UUID
	if word != "" && s.vocab != nil {
		rows, err := s.vocab.GetByWords(dbctx.Context{Ctx: ctx}, []string{word})
		if err == nil && len(rows) > 0 {
			ids = []uuid.UUID{rows[0].ID}
		}
	}
	s.replenish(ctx, userID, mode, ids)
}

func (s *drillService) replenish(ctx context.Context, userID uuid.UUID, mode learning.Mode, ids []uuid.UUID) *uuid.UUID {
	if s.jobs == nil {
		return nil
	}
	job, created, err := s.jobs.EnqueueDrillJob(dbctx.Context{Ctx: ctx}, DrillJobRequest{UserID: userID, Mode: mode, ExplicitWordIDs: ids})
	if err != nil {
		s.log.Warn("Replenish enqueue failed", "user_id", userID.String(), "mode", mode.String(), "error", err)
		return nil
	}
	if job == nil {
		return nil
	}
	if created {
		s.log.Debug("Low inventory; replenish queued", "user_id", userID.String(), "mode", mode.String(), "job_id", job.ID.String())
	}
	id := job.ID
	return &id
}

func (s *drillService) InventoryStatus(ctx context.Context, userID uuid.UUID, mode learning.Mode) (*InventoryStatus, error) {
	if userID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", nil)
	}
	if !mode.Valid() {
		return nil, apierr.New(http.StatusBadRequest, "invalid_mode", fmt.Errorf("invalid mode"))
	}
	words, err := s.inv.Words(ctx, userID, mode)
	if err != nil {
		return nil, err
	}
	rem, err := s.inv.Remaining(ctx, userID, mode)
	if err != nil {
		return nil, err
	}
	return &InventoryStatus{Mode: mode.String(), Words: words, Remaining: rem, Capacity: s.inv.CapacityFor(mode)}, nil
}

func (s *drillService) ClearInventory(ctx context.Context, userID uuid.UUID, mode learning.Mode) (int, error) {
	if userID == uuid.Nil {
		return 0, apierr.New(http.StatusUnauthorized, "unauthorized", nil)
	}
	if !mode.Valid() {
		return 0, apierr.New(http.StatusBadRequest, "invalid_mode", fmt.Errorf("invalid mode"))
	}
	return s.inv.Clear(ctx, userID, mode)
}
