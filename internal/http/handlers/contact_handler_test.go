package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/repo"
)

func TestListContacts(t *testing.T) {
	rg := newRig(t)
	ctx := context.Background()

	if _, err := repo.CreateChatUser(ctx, rg.db, 300, "ivan_k", "Ivan", "Kuznetsov", "ru"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.CreateChatUser(ctx, rg.db, 301, "anna", "Anna", "Orlova", "en"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := rg.do(t, http.MethodGet, "/api/v1/contacts", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	var resp ListContactsResponse
	decodeJSON(t, w, &resp)
	if len(resp.Contacts) != 2 || resp.Pagination.Total != 2 {
		t.Fatalf("expected 2 contacts, got %d (total %d)", len(resp.Contacts), resp.Pagination.Total)
	}

	// Search narrows over names and username.
	w = rg.do(t, http.MethodGet, "/api/v1/contacts?q=orlova", nil, nil)
	decodeJSON(t, w, &resp)
	if len(resp.Contacts) != 1 || resp.Contacts[0].Username != "anna" {
		t.Fatalf("search miss: %+v", resp.Contacts)
	}

	w = rg.do(t, http.MethodGet, "/api/v1/contacts?q=nobody", nil, nil)
	decodeJSON(t, w, &resp)
	if len(resp.Contacts) != 0 || resp.Pagination.Total != 0 {
		t.Fatalf("expected empty result: %+v", resp)
	}
}

func TestListContactConversations(t *testing.T) {
	rg := newRig(t)
	u := seedContact(t, rg.db, 302, "Pavel")
	other := seedContact(t, rg.db, 303, "Dina")
	first := seedConversation(t, rg.db, u.ID, domain.StatusClosed)
	second := seedConversation(t, rg.db, u.ID, domain.StatusOpen)
	seedConversation(t, rg.db, other.ID, domain.StatusOpen)

	w := rg.do(t, http.MethodGet, "/api/v1/contacts/bad-id/conversations", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("non-UUID id must be rejected, got %d", w.Code)
	}

	// Bump the first conversation so it becomes the most recently active.
	if err := repo.TouchConversation(context.Background(), rg.db, first.ID, time.Now().UTC().Add(time.Minute)); err != nil {
		t.Fatalf("touch: %v", err)
	}

	w = rg.do(t, http.MethodGet, "/api/v1/contacts/"+u.ID+"/conversations", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	var resp ContactConversationsResponse
	decodeJSON(t, w, &resp)
	if len(resp.Conversations) != 2 {
		t.Fatalf("expected the contact's 2 conversations, got %d", len(resp.Conversations))
	}
	if resp.Conversations[0].ID != first.ID || resp.Conversations[1].ID != second.ID {
		t.Fatalf("conversations must be ordered by last activity: %+v", resp.Conversations)
	}
}
