// Conversation HTTP handlers.
//
// This file exposes REST endpoints for conversation resources:
//   - GET  /conversations              (list, paginated, status filter, ETag)
//   - GET  /conversations/{id}         (detail)
//   - POST /conversations/{id}/assign  (hand to an agent)
//   - POST /conversations/{id}/close   (close from the dashboard)
//   - POST /conversations/{id}/read    (mark user messages read)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses (including
// conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/repo"
	"github.com/zeffr-it/go-support-relay/internal/services"
	"github.com/zeffr-it/go-support-relay/internal/utils"
)

//
// Service contracts (context-aware)
//

// ConversationAPI defines the conversation operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type ConversationAPI interface {
	// Get fetches a single conversation.
	Get(ctx context.Context, id string) (*domain.Conversation, error)
	// ListPage returns a page of conversations plus the total count,
	// optionally filtered by status ("" means all).
	ListPage(ctx context.Context, status domain.Status, page, pageSize int) ([]domain.Conversation, int64, error)
	// Assign hands the conversation to a staff agent.
	Assign(ctx context.Context, conversationID, agentID string) error
	// Close ends the conversation from the dashboard.
	Close(ctx context.Context, conversationID string) error
}

// MessageAPI defines the message-log operations consumed by HTTP handlers.
type MessageAPI interface {
	// Record appends one message and bumps the conversation's activity.
	Record(ctx context.Context, conversationID string, sender domain.SenderType, senderID *string, content string, isAI bool) (*domain.Message, error)
	// ListPage returns one page of the conversation's log plus the total.
	ListPage(ctx context.Context, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
	// MarkRead flips read_by_agent on unread user messages.
	MarkRead(ctx context.Context, conversationID string) (int64, error)
}

// ContactAPI defines the contact-store operations consumed by HTTP handlers.
type ContactAPI interface {
	// ListPage returns a page of chat users with an optional search term.
	ListPage(ctx context.Context, q string, page, pageSize int) ([]domain.ChatUser, int64, error)
}

// Deliverer forwards recorded dashboard messages back to the chat user.
type Deliverer interface {
	Deliver(ctx context.Context, conversationID string, origin services.Origin, text string)
}

//
// Handler wiring
//

// Handlers groups the dashboard HTTP endpoints. It depends on abstract
// service interfaces to keep transport concerns separate from business
// logic; DB is used directly only for read-side extras (ETags, stats,
// idempotency records).
type Handlers struct {
	convSvc  ConversationAPI
	msgSvc   MessageAPI
	contacts ContactAPI
	bridge   Deliverer
	db       *gorm.DB
}

// New constructs a Handlers instance bound to the given services.
func New(convSvc ConversationAPI, msgSvc MessageAPI, contacts ContactAPI, bridge Deliverer, db *gorm.DB) *Handlers {
	return &Handlers{convSvc: convSvc, msgSvc: msgSvc, contacts: contacts, bridge: bridge, db: db}
}

// agentID extracts the dashboard agent identity from the Gin context (set
// by upstream middleware). It falls back to the "X-Agent-ID" header (tests
// use it), and finally to "demo-agent". It never touches c.Request if nil.
func agentID(c *gin.Context) string {
	if v, ok := c.Get("agentID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Agent-ID")); h != "" {
			return h
		}
	}
	return "demo-agent"
}

//
// DTOs
//

// AssignConversationRequest optionally names the agent to assign; when
// empty the caller's own identity is used.
type AssignConversationRequest struct {
	AgentID string `json:"agent_id" example:"6f1e1a7e-9c1d-4a5b-8f2e-3d4c5b6a7f80"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConversationsResponse wraps a page of conversations and pagination
// information.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// MarkReadResponse reports how many messages a read sweep changed.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// statusFilter validates the optional ?status= query parameter. The empty
// string means "all"; anything outside the closed set is rejected.
func statusFilter(c *gin.Context) (domain.Status, bool) {
	raw := strings.TrimSpace(c.Query("status"))
	if raw == "" {
		return "", true
	}
	st := domain.Status(raw)
	return st, st.Valid()
}

//
// Handlers
//

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations (paginated)
// @Description Returns a page of conversations ordered by last activity. Supports a status filter and weak ETag via If-None-Match.
// @Tags        Conversations
// @Produce     json
//
// @Param       X-Agent-ID     header  string  false "Agent ID (demo header)"       example(agent123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"   example(W/\"abc123\")
// @Param       status         query   string  false "Filter by status"             Enums(open, assigned, contract_process, completed, closed)
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()

	status, valid := statusFilter(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status filter")
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.ConversationsStats(ctx, h.db, status)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"convs:%s:%d:%d"`, status, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.convSvc.ListPage(ctx, status, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Get a conversation
// @Description Returns a single conversation by id.
// @Tags        Conversations
// @Produce     json
//
// @Param       id  path  string  true "Conversation ID (UUID)" format(uuid)
//
// @Success     200  {object} domain.Conversation
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	conv, err := h.convSvc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, conv)
}

// AssignConversation godoc
// @ID          assignConversation
// @Summary     Assign a conversation to an agent
// @Description Hands the conversation to the named agent (or the caller) and marks it assigned.
// @Tags        Conversations
// @Accept      json
// @Produce     json
//
// @Param       X-Agent-ID  header  string  false "Agent ID (demo header)" example(agent123)
// @Param       id          path    string  true  "Conversation ID (UUID)" format(uuid)
// @Param       body        body    handlers.AssignConversationRequest  false "Assign payload"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation or agent not found"
// @Failure     403  {object} handlers.ErrorResponse "Staff user is not an agent"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/assign [post]
func (h *Handlers) AssignConversation(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	var req AssignConversationRequest
	// Body is optional; absence of a payload assigns to the caller.
	_ = c.ShouldBindJSON(&req)
	target := strings.TrimSpace(req.AgentID)
	if target == "" {
		target = agentID(c)
	}

	err := h.convSvc.Assign(c.Request.Context(), id, target)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
	case errors.Is(err, services.ErrAgentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "agent not found")
	case errors.Is(err, services.ErrNotAnAgent):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "staff user is not an agent")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeAssignFailed, err.Error())
	}
}

// CloseConversation godoc
// @ID          closeConversation
// @Summary     Close a conversation
// @Description Marks the conversation closed and stamps closed_at.
// @Tags        Conversations
// @Produce     json
//
// @Param       id  path  string  true "Conversation ID (UUID)" format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/close [post]
func (h *Handlers) CloseConversation(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	err := h.convSvc.Close(c.Request.Context(), id)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// MarkConversationRead godoc
// @ID          markConversationRead
// @Summary     Mark a conversation's user messages read
// @Description Flips read_by_agent on every unread user message; reports how many changed.
// @Tags        Conversations
// @Produce     json
//
// @Param       id  path  string  true "Conversation ID (UUID)" format(uuid)
//
// @Success     200  {object} handlers.MarkReadResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/read [post]
func (h *Handlers) MarkConversationRead(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	n, err := h.msgSvc.MarkRead(c.Request.Context(), id)
	switch {
	case err == nil:
		ok(c, http.StatusOK, MarkReadResponse{Updated: n})
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
