package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	storyerrors "github.com/dotcommander/imaginator/pkg/imaginator/errors"
)

const (
	ErrorBadRequest         = "BAD_REQUEST"
	ErrorValidation         = "VALIDATION_FAILED"
	ErrorOwnerMissing       = "OWNER_MISSING"
	ErrorStoryNotFound      = "STORY_NOT_FOUND"
	ErrorStoryBusy          = "STORY_BUSY"
	ErrorInvalidTransition  = "INVALID_TRANSITION"
	ErrorPreconditionFailed = "PRECONDITION_FAILED"
	ErrorRequestCancelled   = "REQUEST_CANCELLED"
	ErrorInternal           = "INTERNAL_ERROR"
)

// Response is the envelope of every JSON answer
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps the engine's error taxonomy onto HTTP
func classify(err error) (int, string) {
	switch {
	case storyerrors.IsValidation(err):
		return http.StatusBadRequest, ErrorValidation
	case storyerrors.IsNotFound(err):
		return http.StatusNotFound, ErrorStoryNotFound
	case storyerrors.IsBusy(err):
		return http.StatusConflict, ErrorStoryBusy
	case storyerrors.IsInvalidTransition(err):
		return http.StatusConflict, ErrorInvalidTransition
	case storyerrors.IsPrecondition(err):
		return http.StatusPreconditionFailed, ErrorPreconditionFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, ErrorRequestCancelled
	}
	return http.StatusInternalServerError, ErrorInternal
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Response{
		Success:   true,
		Data:      data,
		RequestID: c.GetString(requestIDKey),
		Timestamp: time.Now(),
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{
		Error:     &ErrorBody{Code: code, Message: message},
		RequestID: c.GetString(requestIDKey),
		Timestamp: time.Now(),
	})
}

// failErr answers with the status the error maps to. Internal failures do not
// leak their message; it is logged instead.
func (h *Handler) failErr(c *gin.Context, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"request_id", c.GetString(requestIDKey),
			"path", c.FullPath(),
			"error", err)
		message = "internal error"
	}
	fail(c, status, code, message)
}
