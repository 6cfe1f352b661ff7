// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger. It scrubs obvious
// PII from request metadata before emitting logs and attaches the
// request-scoped logger that LoggerFrom returns.
//
// What gets scrubbed:
//   - request and response bodies are never logged
//   - emails, phone numbers and UUIDs in the query string and header values
//   - sensitive headers (Authorization, Cookie, Set-Cookie, X-Goog-Api-Key,
//     plus RedactOptions.MaskHeaders) are replaced entirely
//   - values of the query parameters in RedactOptions.MaskQueryParams
//     (free-text searches over student names and ids)
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders:     []string{"X-User-ID"},
//	    MaskQueryParams: []string{"q"},
//	}))
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const redacted = "[REDACTED]"

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so hex runs inside UUIDs never match.
	// Matches "+84 912 345 678", "0912-345-678", "(212) 555-1212".
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{3,4}\b`)
)

// redactPII replaces ids, emails and phone numbers. UUIDs go first so the
// loose phone pattern cannot eat their digit groups.
func redactPII(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactOptions configures additional scrub behavior for RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are extra header names (case-insensitive) whose values are
	// replaced with "[REDACTED]".
	MaskHeaders []string
	// MaskQueryParams are query parameter names whose values are replaced
	// with "[REDACTED]" before pattern redaction runs.
	MaskQueryParams []string
}

// RedactingLogger returns a Gin middleware that logs one line per request
// with sensitive values scrubbed. Level is info, warn for 4xx and error for
// 5xx. Before calling the handlers it stores a logger carrying request_id,
// client_id, method and path under the context key LoggerFrom reads.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization":  {},
		"cookie":         {},
		"set-cookie":     {},
		"x-goog-api-key": {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}
	maskParams := make(map[string]struct{}, len(opts.MaskQueryParams))
	for _, p := range opts.MaskQueryParams {
		if p = strings.TrimSpace(p); p != "" {
			maskParams[p] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		safeQuery := truncate(redactPII(maskQuery(c.Request.URL.RawQuery, maskParams)), maxQueryLogLength)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = redacted
				continue
			}
			safeHeaders[k] = redactPII(strings.Join(vv, ", "))
		}

		lg := log.With().
			Str("request_id", reqID).
			Str("client_id", ClientID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &lg)

		c.Next()

		status := c.Writer.Status()
		ev := lg.Info()
		switch {
		case status >= 500:
			ev = lg.Error()
		case status >= 400:
			ev = lg.Warn()
		}
		ev.
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}

// maskQuery blanks the values of the named parameters and returns the
// decoded query. Unparseable queries are returned unchanged and still go
// through pattern redaction.
func maskQuery(raw string, names map[string]struct{}) string {
	if raw == "" || len(names) == 0 {
		return raw
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	masked := false
	for name := range names {
		if vv, ok := vals[name]; ok {
			for i := range vv {
				vv[i] = redacted
			}
			masked = true
		}
	}
	if !masked {
		return raw
	}
	enc := vals.Encode()
	if dec, err := url.QueryUnescape(enc); err == nil {
		return dec
	}
	return enc
}
