package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/vocabdrill-backend/internal/http/response"
	"github.com/yungbote/vocabdrill-backend/internal/realtime/bus"
)

type HistoryReader interface {
	History(ctx context.Context, limit int) ([]bus.Event, error)
}

type InspectHandler struct {
	history HistoryReader
}

func NewInspectHandler(history HistoryReader) *InspectHandler {
	return &InspectHandler{history: history}
}

// GET /api/inspect/history?limit=
func (h *InspectHandler) History(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	if limit < 1 {
		limit = 1
	}
	events, err := h.history.History(c.Request.Context(), limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"events": events, "count": len(events)})
}
