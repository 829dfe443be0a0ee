// Response hardening for the JSON API.
//
// Every response gets nosniff, frame denial and no-referrer. Ballot routes
// (a voter's own vote) are additionally marked no-store and vary on the voter
// header, while shared resources such as results and topic lists keep their
// ETag-based caching.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests. Only turn
	// it on when traffic is HTTPS all the way to this process.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// NoStoreRoutes are gin route templates (c.FullPath()) whose responses
	// must not be cached, e.g. "/api/v1/topics/:id/votes/me".
	NoStoreRoutes []string
	// EnablePolicy adds Permissions-Policy and
	// X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
}

type headerPair struct{ key, value string }

// SecurityHeaders returns the hardening middleware for opt.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	base := []headerPair{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	if opt.EnablePolicy {
		base = append(base,
			headerPair{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
			headerPair{"X-Permitted-Cross-Domain-Policies", "none"},
		)
	}
	noStore := []headerPair{
		{"Cache-Control", "no-store"},
		{"Pragma", "no-cache"},
		{"Expires", "0"},
	}

	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	private := make(map[string]struct{}, len(opt.NoStoreRoutes))
	for _, r := range opt.NoStoreRoutes {
		private[r] = struct{}{}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, p := range base {
			h.Set(p.key, p.value)
		}
		if _, ok := private[c.FullPath()]; ok {
			for _, p := range noStore {
				h.Set(p.key, p.value)
			}
			h.Add("Vary", "X-User-ID")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(requestIDHeader) != "" {
			exposeHeader(h, requestIDHeader)
		}
		c.Next()
	}
}

// exposeHeader appends name to Access-Control-Expose-Headers once.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	switch {
	case cur == "":
		h.Set(key, name)
	case !strings.Contains(strings.ToLower(cur), strings.ToLower(name)):
		h.Set(key, cur+", "+name)
	}
}

// isHTTPS reports whether r arrived over TLS, directly or per
// X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
