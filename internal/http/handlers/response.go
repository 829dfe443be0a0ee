// Package handlers implements the HTTP endpoints of the voting API.
//
// Every handler answers with either a JSON body or the error envelope below.
// Service sentinels are mapped to status codes in one place (failService),
// so individual handlers only pick a fallback code for unexpected failures.
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "topic_closed",
//	  "message": "topic is not accepting votes"
//	}
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/votehub-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"topic_closed"`
	// Human-readable message
	Message string `json:"message" example:"topic is not accepting votes"`
}

// fail aborts the request with an ErrorResponse. 5xx responses are logged
// with the request-scoped logger; 403 and 409 are logged at warn level since
// they usually mean a voter hit a closed or restricted topic.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	lg := middleware.LoggerFrom(c)
	switch {
	case status >= http.StatusInternalServerError:
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	case status == http.StatusForbidden, status == http.StatusConflict:
		lg.Warn().
			Int("status", status).
			Str("code", code).
			Msg("request refused")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is fail for callers outside this package (router fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// notModified sets etag on the response and, when the request carries a
// matching If-None-Match, answers 304 and returns true. A list of tags and
// the "*" wildcard are both accepted.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	inm := strings.TrimSpace(c.GetHeader("If-None-Match"))
	if inm == "" {
		return false
	}
	for _, tag := range strings.Split(inm, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || tag == etag {
			c.Status(http.StatusNotModified)
			return true
		}
	}
	return false
}
