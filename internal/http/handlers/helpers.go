package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/http/response"
	"github.com/yungbote/vocabdrill-backend/internal/platform/ctxutil"
)

func requestUser(c *gin.Context) uuid.UUID {
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		return rd.UserID
	}
	return uuid.Nil
}

func modeParam(c *gin.Context) (learning.Mode, bool) {
	mode, err := learning.ParseMode(c.Param("mode"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_mode", err)
		return 0, false
	}
	return mode, true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}
