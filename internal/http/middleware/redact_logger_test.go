package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLogs points the global zerolog logger at a buffer for the duration
// of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func serveRedacted(t *testing.T, opts RedactOptions, target string, header map[string]string) string {
	t.Helper()
	buf := captureLogs(t)

	r := newTestRouter(RequestID(), RedactingLogger(opts))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return buf.String()
}

func TestRedactingLogger_PassportInQuery(t *testing.T) {
	out := serveRedacted(t, RedactOptions{}, "/x?passport=4510%20123456", nil)
	if strings.Contains(out, "4510 123456") {
		t.Fatalf("passport leaked to logs: %s", out)
	}
	if !strings.Contains(out, "[REDACTED:passport]") {
		t.Fatalf("expected passport placeholder, got: %s", out)
	}
}

func TestRedactingLogger_EmailAndUUIDInHeaders(t *testing.T) {
	out := serveRedacted(t, RedactOptions{}, "/x", map[string]string{
		"X-Contact": "reach me at ivan@example.com",
		"X-Trace":   "ref 123e4567-e89b-12d3-a456-426614174000",
	})
	if strings.Contains(out, "ivan@example.com") || strings.Contains(out, "123e4567-e89b-12d3-a456-426614174000") {
		t.Fatalf("identifier leaked to logs: %s", out)
	}
	if !strings.Contains(out, "[REDACTED:email]") || !strings.Contains(out, "[REDACTED:id]") {
		t.Fatalf("expected placeholders, got: %s", out)
	}
}

func TestRedactingLogger_PhoneNumber(t *testing.T) {
	out := serveRedacted(t, RedactOptions{}, "/x", map[string]string{
		"X-Contact": "call +7 495 123-4567",
	})
	if strings.Contains(out, "123-4567") {
		t.Fatalf("phone leaked to logs: %s", out)
	}
	if !strings.Contains(out, "[REDACTED:phone]") {
		t.Fatalf("expected phone placeholder, got: %s", out)
	}
}

func TestRedactingLogger_MasksSensitiveHeaders(t *testing.T) {
	out := serveRedacted(t, RedactOptions{MaskHeaders: []string{"X-Agent-ID"}}, "/x", map[string]string{
		"Authorization": "Bearer secret-token",
		"X-Agent-ID":    "agent-007",
	})
	if strings.Contains(out, "secret-token") || strings.Contains(out, "agent-007") {
		t.Fatalf("masked header value leaked: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("expected full header mask, got: %s", out)
	}
}

func TestRedactingLogger_PassportBeatsPhonePattern(t *testing.T) {
	// The passport shape is also phone-like; the passport placeholder must
	// win so the scrubbed log names the right category.
	out := serveRedacted(t, RedactOptions{}, "/x", map[string]string{
		"X-Note": "passport 4510 123456 on file",
	})
	if !strings.Contains(out, "[REDACTED:passport]") {
		t.Fatalf("expected passport placeholder to take precedence, got: %s", out)
	}
}

func TestRedactingLogger_StatusDrivesLevel(t *testing.T) {
	buf := captureLogs(t)

	r := newTestRouter(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("5xx must log at error level: %s", buf.String())
	}
}
