package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/relief-tracker/internal/common"
)

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case common.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnreadableInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Status:  http.StatusText(statusCode),
		Message: message,
	})
}

// respondErr maps err onto a status code. Internal failures are not echoed
// back to the caller.
func respondErr(c *gin.Context, err error) {
	_ = c.Error(err)
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = http.StatusText(code)
	}
	var appErr *common.AppError
	resp := ErrorResponse{Status: http.StatusText(code), Message: msg}
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code
	}
	c.AbortWithStatusJSON(code, resp)
}

func respondBadRequest(c *gin.Context, message string) {
	respondWithError(c, http.StatusBadRequest, message)
}
