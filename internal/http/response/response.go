package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/vocabdrill-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr renders a service error. Typed errors keep their status and
// code; anything else, and any 5xx, is reported without internal detail.
func RespondErr(c *gin.Context, err error) {
	status := apierr.Status(err)
	code := "internal_error"
	if ae, ok := apierr.As(err); ok && ae.Code != "" {
		code = ae.Code
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		RespondError(c, status, code, errInternal)
		return
	}
	RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

type internalError struct{}

func (internalError) Error() string { return "internal error" }

var errInternal error = internalError{}
