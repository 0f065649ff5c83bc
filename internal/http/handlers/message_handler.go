// Message HTTP handlers.
//
// This file exposes REST endpoints for the per-conversation message log:
//   - POST /conversations/{id}/messages  (agent sends a reply to the user)
//   - GET  /conversations/{id}/messages  (list paginated messages)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (line endings and length constraints)
//   - delegate to the message service
//   - implement conditional responses and idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous
// successful result exists for (agent, conversation, key), the handler
// returns the recorded message, sets `Idempotency-Replayed: true`, and
// does NOT deliver to the chat user again. Each recorded message reaches
// the transport exactly once, on first processing.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/http/middleware"
	"github.com/zeffr-it/go-support-relay/internal/repo"
	"github.com/zeffr-it/go-support-relay/internal/services"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for an agent reply.
type SendMessageRequest struct {
	// Content is the reply text. It must be non-empty.
	Content string `json:"content" binding:"required,min=1" example:"Thanks for reaching out, checking your order now."`
}

// SendMessageResponse is the JSON envelope for a recorded agent message.
type SendMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes text for consistent downstream behavior:
// CRLF/CR become LF, runs of 3+ LFs collapse to two, surrounding
// whitespace is trimmed.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxContentRunes inspects the concrete MessageService for the
// configured content cap, falling back to a conservative default.
func discoverMaxContentRunes(msgSvc MessageAPI) int {
	const fallback = 4096
	if ms, ok := msgSvc.(*services.MessageService); ok {
		if ms.MaxContentRunes > 0 {
			return ms.MaxContentRunes
		}
	}
	return fallback
}

//
// Handlers
//

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send an agent reply to the chat user
// @Description Records an agent message in the conversation log and forwards it to the user over Telegram.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result, no duplicate delivery).
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-Agent-ID       header  string  true  "Agent ID sending the reply"  example(agent123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Conversation ID (UUID)"      format(uuid)
// @Param       body             body    handlers.SendMessageRequest  true  "Reply payload"
//
// @Success     200  {object}  handlers.SendMessageResponse  "Recorded message"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse        "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /conversations/{id}/messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	convID := c.Param("id")

	if _, err := uuid.Parse(convID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	maxRunes := discoverMaxContentRunes(h.msgSvc)
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	currentAgent := agentID(c)

	// Idempotency (replay path): the stored message is returned and the
	// transport is NOT invoked again.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey == "" {
		idemKey = strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
	}
	if idemKey != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, currentAgent, convID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetMessage(h.db, rec.MessageID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, SendMessageResponse{Message: prev})
				return
			}
		}
	}

	m, err := h.msgSvc.Record(ctx, convID, domain.SenderAgent, &currentAgent, content, false)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConversationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.db != nil {
		ttl := 24 * time.Hour
		_, _ = repo.CreateIdempotency(ctx, h.db, currentAgent, convID, idemKey, m.ID, http.StatusOK, ttl)
	}

	// Outbound delivery is best-effort on top of the durable record.
	if h.bridge != nil {
		h.bridge.Deliver(ctx, convID, services.OriginAgent, content)
	}

	ok(c, http.StatusOK, SendMessageResponse{Message: m})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a conversation
// @Description Returns a paginated, chronological list of messages for the given conversation.
// @Tags        Messages
// @Produce     json
//
// @Param       id         path   string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       page       query  int     false "Page number"             minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"          minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	convID := c.Param("id")

	if _, err := uuid.Parse(convID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	page, pageSize := clampPagination(c)

	items, total, err := h.msgSvc.ListPage(ctx, convID, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
