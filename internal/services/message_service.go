// Package services – MessageService
//
// This file implements the append-only message log. Every utterance in a
// conversation flows through Record, which validates the sender
// classification, enforces the content limits, and advances the parent
// conversation's last-activity timestamp in the same transaction so the
// router's recency ordering can never drift from the log.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/repo"
)

// DefaultMaxContentRunes caps message content length when the service is
// constructed without an explicit limit.
const DefaultMaxContentRunes = 4096

// MessageService appends to and reads the per-conversation message log.
type MessageService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// MaxContentRunes caps Record's content length, in runes. Zero means
	// DefaultMaxContentRunes.
	MaxContentRunes int
}

// NewMessageService constructs a MessageService with the default content cap.
func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{DB: db, MaxContentRunes: DefaultMaxContentRunes}
}

// Record appends one message to the conversation and bumps the
// conversation's updated_at, atomically. Rules enforced here:
//
//   - sender must be one of the closed set, and senderID presence must
//     match it (user/agent carry a reference, ai/bot must not);
//   - content must be non-empty after trimming and within the rune cap;
//   - the conversation must exist (ErrConversationNotFound otherwise).
func (s *MessageService) Record(ctx context.Context, conversationID string, sender domain.SenderType, senderID *string, content string, isAI bool) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("message.sender_type", string(sender)),
		),
	)
	defer span.End()

	if !sender.Valid() {
		return nil, ErrInvalidSender
	}
	if sender.HasRef() != (senderID != nil) {
		return nil, ErrInvalidSender
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	max := s.MaxContentRunes
	if max <= 0 {
		max = DefaultMaxContentRunes
	}
	if utf8.RuneCountInString(content) > max {
		return nil, ErrTooLong
	}

	if _, err := repo.GetConversation(ctx, s.DB, conversationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var msg *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(tx, conversationID, sender, senderID, content, isAI)
		if err != nil {
			return err
		}
		if err := repo.TouchConversation(ctx, tx, conversationID, m.CreatedAt); err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListPage returns one page of the conversation's log in chronological
// order plus the total count. The conversation must exist.
func (s *MessageService) ListPage(ctx context.Context, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	if _, err := repo.GetConversation(ctx, s.DB, conversationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrConversationNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountMessages(s.DB.WithContext(ctx), conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(s.DB.WithContext(ctx), conversationID, offset, pageSize)
	return items, total, err
}

// MarkRead flips read_by_agent on the conversation's unread user messages
// and reports how many changed. Marking an already-read conversation is a
// no-op returning zero.
func (s *MessageService) MarkRead(ctx context.Context, conversationID string) (int64, error) {
	if _, err := repo.GetConversation(ctx, s.DB, conversationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrConversationNotFound
		}
		return 0, err
	}
	return repo.MarkMessagesRead(s.DB.WithContext(ctx), conversationID)
}
