// Package middleware contains shared Gin middleware used by the dashboard
// HTTP layer.
//
// This file implements idempotency support for unsafe HTTP methods, so an
// agent retrying POST /conversations/:id/messages after a timeout does not
// deliver the same reply to the chat user twice. It validates an
// Idempotency-Key request header, optionally performs a lookup to detect
// previously completed requests, and annotates the request context so
// downstream handlers can:
//   - read the normalized key (GetIdempotencyKey)
//   - detect replayed requests (IsReplay)
//   - bypass rate limiting when a replay is served (internal flag)
//
// Persistence stays behind the narrow IdempotencyLookup function type.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header dashboard clients use to convey
// an idempotency key for unsafe operations. The value is expected to be
// stable for a given semantic operation so retries deduplicate safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys used internally to stash idempotency state.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: true when a stored replay exists
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the validated idempotency key stored in the Gin
// context by IdempotencyValidator. The second return value indicates
// presence. Handlers should prefer this over reading the header directly.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request would replay a previously completed
// operation for the same (agent, conversation, key) triple. When true,
// handlers may short-circuit and return the previously persisted result.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation behavior. TTL enforcement
// is intentionally out of scope here and belongs in the lookup function.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a conservative
	// RFC7230-like token pattern is used: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether a successful, still-valid result exists
// for (agentID, conversationID, key) at the given time. Return exists=true
// when the prior response can be replayed; return an error only for lookup
// failures (which must not block normal processing).
type IdempotencyLookup func(ctx context.Context, agentID, conversationID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header (if present),
// stashes it in the request context, and optionally checks for a prior
// completed request via the supplied lookup. Behavior:
//   - absent header: no-op
//   - invalid header: 400 with a compact error body
//   - lookup hit: replay + rate-bypass flags set
//
// The middleware never returns a cached payload itself; handlers remain in
// control of how replays are served.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		// RFC-7230-ish token + common safe chars.
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			aid := AgentIDFromCtx(c)
			convID := c.Param("id") // POST /conversations/:id/messages uses :id
			now := time.Now().UTC()

			if exists, _ := lookup(c.Request.Context(), aid, convID, key, now); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true) // let RL middleware skip limiting
			}
		}

		c.Next()
	}
}

// AgentIDFromCtx extracts the agent identifier placed in the Gin context by
// AgentIdentity. A development-friendly "demo-agent" fallback is returned
// when no identity is available.
func AgentIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get(agentIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "demo-agent"
}

// AgentIdentity reads the X-Agent-ID demo header into the Gin context so
// downstream middleware (logging, rate limiting, idempotency) and handlers
// share one identity source. Real authentication would replace this with a
// session or token check; the header keeps the dashboard API exercisable
// in development.
func AgentIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if aid := c.GetHeader("X-Agent-ID"); aid != "" {
			c.Set(agentIDKey, aid)
		}
		c.Next()
	}
}
