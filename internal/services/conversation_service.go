// Package services – ConversationService
//
// This file implements the conversation router and lifecycle operations.
// The router answers one question: which conversation should receive the
// next inbound message from a chat user. General traffic reuses the user's
// most recently active routable conversation (open, assigned, or
// contract_process) and only opens a new one when none exists; the contract
// flow always starts a fresh conversation, because each /contract
// invocation is a new agreement attempt.
//
// Persistence failures roll back any partial write and surface as an error
// the caller treats as "try again"; they must never crash the
// message-handling path.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/repo"
)

// Kind selects the routing behavior for ResolveOrCreate.
type Kind string

const (
	// KindGeneral routes ordinary support traffic: reuse before create.
	KindGeneral Kind = "general"
	// KindContract always opens a fresh contract_process conversation.
	KindContract Kind = "contract"
)

// ConversationService owns conversation routing and lifecycle transitions.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{DB: db}
}

// ResolveOrCreate finds or opens the conversation that should receive the
// next inbound message from chatUserID.
//
// kind = KindContract: always creates a new conversation with status
// contract_process and a generated title; existing conversations are never
// reused. kind = KindGeneral: returns the user's most recently updated
// conversation in a routable status, creating an open one when none match.
//
// The owning ChatUser must already exist; a failed lookup returns
// ErrChatUserNotFound and performs no write.
func (s *ConversationService) ResolveOrCreate(ctx context.Context, chatUserID string, kind Kind) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ResolveOrCreate",
		trace.WithAttributes(
			attribute.String("chat_user.id", chatUserID),
			attribute.String("conversation.kind", string(kind)),
		),
	)
	defer span.End()

	if kind == KindContract {
		user, err := s.owner(ctx, chatUserID)
		if err != nil {
			return nil, err
		}
		title := fmt.Sprintf("Contract: %s", user.FirstName)
		return repo.CreateConversation(ctx, s.DB, chatUserID, title, domain.StatusContractProcess)
	}

	conv, err := repo.FindRoutableConversation(ctx, s.DB, chatUserID)
	switch {
	case err == nil:
		return conv, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, uerr := s.owner(ctx, chatUserID)
		if uerr != nil {
			return nil, uerr
		}
		title := fmt.Sprintf("Chat with %s", user.FirstName)
		return repo.CreateConversation(ctx, s.DB, chatUserID, title, domain.StatusOpen)
	default:
		return nil, err
	}
}

// owner resolves the ChatUser that must exist before any conversation row
// is written for it.
func (s *ConversationService) owner(ctx context.Context, chatUserID string) (*domain.ChatUser, error) {
	user, err := repo.GetChatUser(ctx, s.DB, chatUserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatUserNotFound
	}
	return user, err
}

// Get fetches a conversation by id, mapping a miss to
// ErrConversationNotFound.
func (s *ConversationService) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	conv, err := repo.GetConversation(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	return conv, err
}

// ListPage returns a page of conversations ordered by last activity,
// optionally filtered to one status, plus the total for pagination.
func (s *ConversationService) ListPage(ctx context.Context, status domain.Status, page, pageSize int) ([]domain.Conversation, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountConversations(ctx, s.DB, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}
	items, err := repo.ListConversationsPage(ctx, s.DB, status, offset, pageSize)
	return items, total, err
}

// Assign hands the conversation to a staff agent and marks it assigned.
// The staff user must exist and carry the agent capability.
func (s *ConversationService) Assign(ctx context.Context, conversationID, agentID string) error {
	agent, err := repo.GetStaffUser(ctx, s.DB, agentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAgentNotFound
	}
	if err != nil {
		return err
	}
	if !agent.IsAgent {
		return ErrNotAnAgent
	}
	err = repo.AssignConversation(ctx, s.DB, conversationID, agentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}

// Close ends the conversation from the dashboard: status closed, closed_at
// stamped.
func (s *ConversationService) Close(ctx context.Context, conversationID string) error {
	return s.terminate(ctx, conversationID, domain.StatusClosed)
}

// Complete marks a contract conversation successfully finished: status
// completed, closed_at stamped.
func (s *ConversationService) Complete(ctx context.Context, conversationID string) error {
	return s.terminate(ctx, conversationID, domain.StatusCompleted)
}

func (s *ConversationService) terminate(ctx context.Context, conversationID string, status domain.Status) error {
	now := time.Now().UTC()
	err := repo.UpdateConversationStatus(ctx, s.DB, conversationID, status, &now)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}

// UpdateTitle rewrites the conversation's display title (used by the
// contract flow once the full name is known).
func (s *ConversationService) UpdateTitle(ctx context.Context, conversationID, title string) error {
	err := repo.UpdateConversationTitle(ctx, s.DB, conversationID, title)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}
