package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/vocabdrill-backend/internal/platform/ctxutil"
)

const headerUserID = "X-User-Id"

// AttachRequestUser trusts the gateway-asserted X-User-Id header. A missing
// or malformed header leaves the request anonymous.
func AttachRequestUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := strings.TrimSpace(c.GetHeader(headerUserID)); raw != "" {
			if id, err := uuid.Parse(raw); err == nil && id != uuid.Nil {
				ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: id})
				c.Request = c.Request.WithContext(ctx)
			}
		}
		c.Next()
	}
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil || rd.UserID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid " + headerUserID, "code": "unauthorized"},
			})
			return
		}
		c.Next()
	}
}
