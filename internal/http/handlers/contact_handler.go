// Contact HTTP handlers.
//
// This file exposes REST endpoints for the Telegram contact store:
//   - GET /contacts                     (list, paginated, name/username search)
//   - GET /contacts/{id}/conversations  (all conversations for one contact)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/repo"
)

// ListContactsResponse wraps a page of chat users and pagination metadata.
type ListContactsResponse struct {
	Contacts   []domain.ChatUser `json:"contacts"`
	Pagination Pagination        `json:"pagination"`
}

// ContactConversationsResponse lists one contact's conversations, most
// recently active first.
type ContactConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
}

// ListContacts godoc
// @ID          listContacts
// @Summary     List chat contacts (paginated)
// @Description Returns a page of Telegram contacts, newest first, with an optional search over names and username.
// @Tags        Contacts
// @Produce     json
//
// @Param       q          query  string  false "Search term (first/last name or username)"
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListContactsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts [get]
func (h *Handlers) ListContacts(c *gin.Context) {
	page, pageSize := clampPagination(c)
	q := strings.TrimSpace(c.Query("q"))

	items, total, err := h.contacts.ListPage(c.Request.Context(), q, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListContactsResponse{
		Contacts: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// ListContactConversations godoc
// @ID          listContactConversations
// @Summary     List a contact's conversations
// @Description Returns every conversation owned by the contact, most recently active first.
// @Tags        Contacts
// @Produce     json
//
// @Param       id  path  string  true "Chat user ID (UUID)" format(uuid)
//
// @Success     200  {object} handlers.ContactConversationsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts/{id}/conversations [get]
func (h *Handlers) ListContactConversations(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "contact id must be a UUID")
		return
	}

	items, err := repo.ListConversationsByChatUser(c.Request.Context(), h.db, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ContactConversationsResponse{Conversations: items})
}
