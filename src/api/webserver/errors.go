package webserver

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	codeInvalidJSON     = "INVALID_JSON"
	codeInvalidQuery    = "INVALID_QUERY"
	codeNotFound        = "NOT_FOUND"
	codeInternal        = "INTERNAL_ERROR"
	codeStoreDisabled   = "HISTORY_DISABLED"
	codeNewsUnavailable = "NEWS_UNAVAILABLE"
)

// ErrorResponse is the body of every non-envelope error.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Timestamp  string `json:"timestamp"`
}

func newErrorResponse(status int, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:      code,
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, newErrorResponse(status, code, message))
}
