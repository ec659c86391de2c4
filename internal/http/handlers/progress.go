package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/http/response"
	"github.com/yungbote/vocabdrill-backend/internal/modules/learning/progress"
	"github.com/yungbote/vocabdrill-backend/internal/modules/learning/selector"
)

type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, in progress.OutcomeInput) (*progress.OutcomeResult, error)
}

type DailySelector interface {
	SelectDaily(ctx context.Context, userID uuid.UUID, track learning.Track) (*selector.DailySelection, error)
}

type ProgressHandler struct {
	outcomes OutcomeRecorder
	selector DailySelector
}

func NewProgressHandler(outcomes OutcomeRecorder, sel DailySelector) *ProgressHandler {
	return &ProgressHandler{outcomes: outcomes, selector: sel}
}

type recordOutcomeRequest struct {
	VocabID        uuid.UUID       `json:"vocab_id" binding:"required"`
	Mode           learning.Mode   `json:"mode"`
	Track          string          `json:"track"`
	Rating         learning.Rating `json:"rating" binding:"required"`
	ResponseTimeMs int             `json:"response_time_ms"`
	Retried        bool            `json:"retried"`
}

// POST /api/progress/outcome
func (h *ProgressHandler) RecordOutcome(c *gin.Context) {
	var req recordOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var track learning.Track
	if req.Track != "" {
		t, err := learning.ParseTrack(req.Track)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_track", err)
			return
		}
		track = t
	}
	out, err := h.outcomes.RecordOutcome(c.Request.Context(), progress.OutcomeInput{
		UserID:         requestUser(c),
		VocabID:        req.VocabID,
		Track:          track,
		Mode:           req.Mode,
		Rating:         req.Rating,
		ResponseTimeMs: req.ResponseTimeMs,
		Retried:        req.Retried,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/selection/daily?track=
func (h *ProgressHandler) SelectDaily(c *gin.Context) {
	track := learning.TrackVisual
	if raw := c.Query("track"); raw != "" {
		t, err := learning.ParseTrack(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_track", err)
			return
		}
		track = t
	}
	sel, err := h.selector.SelectDaily(c.Request.Context(), requestUser(c), track)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"track": track, "selection": sel, "total": sel.Total()})
}
