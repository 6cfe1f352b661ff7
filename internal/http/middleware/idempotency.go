// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// IdempotencyValidator checks the Idempotency-Key header and, through a
// caller-supplied lookup, flags requests that repeat an already completed
// operation. Handlers read the key with GetIdempotencyKey and serve the
// stored result themselves; the rate limiter lets flagged replays through.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's deduplication key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemKeyMaxLen = 200
	// anonymousClient owns keys sent without any client identity.
	anonymousClient = "demo-user"
)

var defaultIdemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key IdempotencyValidator accepted, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found a completed operation for this
// client, scope and key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator. Expiry is the
// lookup's business.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts the key alphabet; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Scope names the operation a key belongs to. Nil uses
	// "<METHOD> <route>". An empty result skips the lookup.
	Scope func(c *gin.Context) string
}

// IdempotencyLookup reports whether a still-valid completed operation exists
// for (clientID, scope, key) at now.
type IdempotencyLookup func(ctx context.Context, clientID, scope, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator is a no-op without the header. A malformed key is
// rejected with 400 bad_idempotency_key. A lookup hit marks the request as a
// replay and exempts it from rate limiting. Lookup failures are logged and
// the request proceeds as new.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemKeyMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemKeyPattern
	}
	scopeOf := opts.Scope
	if scopeOf == nil {
		scopeOf = routeScope
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		scope := scopeOf(c)
		if lookup == nil || scope == "" {
			c.Next()
			return
		}
		exists, err := lookup(c.Request.Context(), ClientID(c), scope, key, time.Now().UTC())
		switch {
		case err != nil:
			LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency lookup failed")
		case exists:
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}

func routeScope(c *gin.Context) string {
	if c.FullPath() == "" {
		return ""
	}
	return c.Request.Method + " " + c.FullPath()
}

// ClientID names the caller that owns idempotency keys and submitted
// questions: the "userID" set by upstream auth, then the X-User-ID header,
// then "demo-user".
func ClientID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return anonymousClient
}
