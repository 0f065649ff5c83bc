// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model. The message log is append-only: there is no update or delete here
// beyond the read_by_agent flag.
package repo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zeffr-it/go-support-relay/internal/domain"
)

// CreateMessage appends a new message row. senderID must be nil for ai/bot
// senders; the caller is expected to pass a valid closed-set sender type.
func CreateMessage(db *gorm.DB, conversationID string, sender domain.SenderType, senderID *string, content string, isAI bool) (*domain.Message, error) {
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderType:     sender,
		SenderID:       senderID,
		Content:        content,
		IsAIResponse:   isAI,
		CreatedAt:      time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
func ListMessages(db *gorm.DB, conversationID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.Where("conversation_id = ?", conversationID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkMessagesRead flips read_by_agent on every unread user message in the
// conversation and returns how many rows changed. This is the one permitted
// mutation on an existing message.
func MarkMessagesRead(db *gorm.DB, conversationID string) (int64, error) {
	res := db.Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_type = ? AND read_by_agent = ?", conversationID, domain.SenderUser, false).
		Update("read_by_agent", true)
	return res.RowsAffected, res.Error
}
