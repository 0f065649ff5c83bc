// Package middleware contains shared Gin middleware used by the dashboard
// HTTP layer.
//
// This file provides SecurityHeaders, a hardening middleware that attaches
// a conservative set of HTTP security headers suitable for JSON APIs behind
// a reverse proxy. HSTS is opt-in and only applied when the request is
// actually HTTPS; no CSP is emitted since the API serves no HTML.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures the headers emitted by SecurityHeaders.
//
// EnableHSTS controls whether Strict-Transport-Security is sent for HTTPS
// requests (never for plain HTTP); only enable when traffic is HTTPS
// end-to-end including between proxy and app. HSTSMaxAge defaults to 180
// days when unset. NoStore adds Cache-Control: no-store (plus legacy
// Pragma/Expires) for sensitive responses. EnablePolicy adds modern browser
// feature policies, harmless for non-browser clients.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// SecurityHeaders returns a Gin middleware that adds conservative security
// headers to each response:
//
//   - always: X-Content-Type-Options: nosniff, X-Frame-Options: DENY,
//     Referrer-Policy: no-referrer
//   - EnablePolicy: Permissions-Policy and
//     X-Permitted-Cross-Domain-Policies: none
//   - NoStore: Cache-Control: no-store, Pragma: no-cache, Expires: 0
//   - EnableHSTS && HTTPS: Strict-Transport-Security with includeSubDomains
//
// When X-Request-ID is present it is appended to
// Access-Control-Expose-Headers so browser clients can read it.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security",
				"max-age="+strconv.Itoa(maxAge)+"; includeSubDomains; preload")
		}

		if rid := h.Get(requestIDHeader); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			cur := h.Get(hdr)
			if cur == "" {
				h.Set(hdr, requestIDHeader)
			} else if !strings.Contains(cur, requestIDHeader) {
				h.Set(hdr, cur+", "+requestIDHeader)
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request used HTTPS either directly or via a
// reverse proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
