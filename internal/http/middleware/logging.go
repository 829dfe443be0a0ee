// Request correlation, access logging and panic recovery.
//
// The router installs them in this order: RequestID, AccessLog, Recovery.
// AccessLog attaches a request-scoped zerolog logger (gin key "logger" and
// the request context) that handlers reach through LoggerFrom and services
// through log.Ctx, so every line of a vote request carries its request_id,
// voter and topic.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey      = "requestID"
	requestIDHeader   = "X-Request-ID"
	maxQueryLogLength = 2048
)

// RequestID reuses the caller's X-Request-ID or generates a UUID, echoes it
// on the response and stores it under "requestID".
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// AccessLogOptions configures AccessLog.
type AccessLogOptions struct {
	// MaskHeaders are logged as [REDACTED], on top of Authorization, Cookie
	// and Set-Cookie.
	MaskHeaders []string
	// LogHeaders adds the scrubbed request headers to each access line.
	LogHeaders bool
	// SkipPaths are served with a request logger but produce no access line.
	SkipPaths []string
}

// AccessLog writes one "http_request" line per request. Query strings and
// headers are scrubbed of ids, emails and phone numbers; the voter id and
// the topic or suggestion id of the route are logged as-is. The level is
// error for 5xx or gin errors, warn for 4xx and info otherwise.
func AccessLog(opts AccessLogOptions) gin.HandlerFunc {
	mask := newHeaderMask(opts.MaskHeaders)
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		idKey := resourceKey(route)
		if route == "" {
			route = c.Request.URL.Path
		}

		lc := log.With().
			Str("request_id", requestIDOf(c)).
			Str("user_id", requestUser(c)).
			Str("method", c.Request.Method).
			Str("path", route)
		if idKey != "" {
			lc = lc.Str(idKey, c.Param("id"))
		}
		l := lc.Logger()
		c.Set("logger", &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		var headers map[string]string
		if opts.LogHeaders {
			headers = mask.apply(c.Request.Header)
		}

		c.Next()

		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			ev = l.Error().Str("errors", c.Errors.String())
		case status >= http.StatusInternalServerError:
			ev = l.Error()
		case status >= http.StatusBadRequest:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev = ev.
			Str("query", truncate(scrub(c.Request.URL.RawQuery), maxQueryLogLength)).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int64("bytes_in", c.Request.ContentLength).
			Int("status", status).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start))
		if headers != nil {
			ev = ev.Interface("headers", headers)
		}
		ev.Msg("http_request")
	}
}

// Recovery turns a panic into a logged stack trace and, if nothing was
// written yet, a JSON 500 in the usual error envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := requestIDOf(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// AccessLog did not run.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// resourceKey names the log field for the :id parameter of a route template.
func resourceKey(route string) string {
	switch {
	case strings.Contains(route, "/topics/:id"):
		return "topic_id"
	case strings.Contains(route, "/suggestions/:id"):
		return "suggestion_id"
	default:
		return ""
	}
}

// requestIDOf prefers the id stored by RequestID, then the response header
// and finally the raw request header.
func requestIDOf(c *gin.Context) string {
	if s := c.GetString(requestIDKey); s != "" {
		return s
	}
	if s := c.Writer.Header().Get(requestIDHeader); s != "" {
		return s
	}
	return c.GetHeader(requestIDHeader)
}

// truncate caps s at max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
