// Package handlers provides the Gin handlers for the chat, document and
// question endpoints.
//
// Every failure is written as an ErrorResponse. Clients branch on code;
// message is Vietnamese display text where the web client shows it verbatim.
//
//	HTTP/1.1 404 Not Found
//	{"request_id": "123e4567-e89b-12d3-a456-426614174000", "code": "not_found", "message": "Không tìm thấy tài liệu"}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-study-assistant/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code, see errors.go
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"resource not found"`
}

// fail aborts with an ErrorResponse. Statuses >= 500 are logged.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for the router's NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr renders err through classify. Unclassified errors are logged with
// their cause, which the client never sees.
func failErr(c *gin.Context, err error) {
	e := classify(err)
	if e.code == ErrCodeInternal {
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled error")
	}
	fail(c, e.status, e.code, e.message)
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
