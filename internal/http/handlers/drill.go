package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/http/response"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/services"
)

type DrillHandler struct {
	drills services.DrillService
	jobs   services.JobService
}

func NewDrillHandler(drills services.DrillService, jobs services.JobService) *DrillHandler {
	return &DrillHandler{drills: drills, jobs: jobs}
}

// GET /api/drills/:mode/next?word=
func (h *DrillHandler) NextDrill(c *gin.Context) {
	mode, ok := modeParam(c)
	if !ok {
		return
	}
	out, err := h.drills.NextDrill(c.Request.Context(), requestUser(c), mode, c.Query("word"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/drills/:mode/inventory
func (h *DrillHandler) InventoryStatus(c *gin.Context) {
	mode, ok := modeParam(c)
	if !ok {
		return
	}
	out, err := h.drills.InventoryStatus(c.Request.Context(), requestUser(c), mode)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// DELETE /api/drills/:mode/inventory
func (h *DrillHandler) ClearInventory(c *gin.Context) {
	mode, ok := modeParam(c)
	if !ok {
		return
	}
	n, err := h.drills.ClearInventory(c.Request.Context(), requestUser(c), mode)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"mode": mode, "cleared_words": n})
}

type enqueueDrillJobRequest struct {
	Mode            learning.Mode `json:"mode"`
	ExplicitWordIDs []uuid.UUID   `json:"explicit_word_ids"`
	ForceLimit      int           `json:"force_limit"`
}

// POST /api/drills/jobs
func (h *DrillHandler) EnqueueJob(c *gin.Context) {
	var req enqueueDrillJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, created, err := h.jobs.EnqueueDrillJob(dbctx.Context{Ctx: c.Request.Context()}, services.DrillJobRequest{
		UserID:          requestUser(c),
		Mode:            req.Mode,
		ExplicitWordIDs: req.ExplicitWordIDs,
		ForceLimit:      req.ForceLimit,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"job": job, "created": created})
}
