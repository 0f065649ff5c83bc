// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// Functions:
//
//   - CreateConversation(ctx, db, chatUserID, title, status) -> *domain.Conversation, error
//     Inserts a new Conversation row with UUID primary key and UTC timestamps.
//
//   - FindRoutableConversation(ctx, db, chatUserID) -> *domain.Conversation, error
//     Returns the most recently active conversation still eligible for
//     general traffic (status open/assigned/contract_process), or ErrNotFound.
//
//   - GetConversation(ctx, db, id) -> *domain.Conversation, error
//     Fetches a single conversation by ID, or ErrNotFound if missing.
//
//   - UpdateConversationStatus / AssignConversation / UpdateConversationTitle
//     Narrow single-column updates; ErrNotFound when no row is affected.
//
//   - TouchConversation(ctx, db, id, at)
//     Advances the last-activity timestamp (called on every recorded message).
//
// This repository is designed to be wrapped by a higher-level service
// (see services.ConversationService) which enforces the routing rules.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zeffr-it/go-support-relay/internal/domain"
)

// CreateConversation inserts a new Conversation owned by chatUserID with the
// given title and initial status.
func CreateConversation(ctx context.Context, db *gorm.DB, chatUserID, title string, status domain.Status) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:         uuid.NewString(),
		ChatUserID: chatUserID,
		Status:     status,
		Title:      title,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// FindRoutableConversation returns the chat user's most recently active
// conversation whose status still admits general traffic. When several
// qualify, the one updated last wins. Returns ErrNotFound when none exist.
func FindRoutableConversation(ctx context.Context, db *gorm.DB, chatUserID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("chat_user_id = ? AND status IN ?", chatUserID, domain.RoutableStatuses).
		Order("updated_at desc").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation fetches a single conversation by its ID, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateConversationStatus sets the lifecycle status; closedAt, when non-nil,
// is written alongside it (terminal states). Returns ErrNotFound when the
// conversation does not exist.
func UpdateConversationStatus(ctx context.Context, db *gorm.DB, id string, status domain.Status, closedAt *time.Time) error {
	cols := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if closedAt != nil {
		cols["closed_at"] = *closedAt
	}
	res := db.WithContext(ctx).Model(&domain.Conversation{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AssignConversation hands the conversation to an agent and marks it assigned.
func AssignConversation(ctx context.Context, db *gorm.DB, id, agentID string) error {
	res := db.WithContext(ctx).Model(&domain.Conversation{}).Where("id = ?", id).Updates(map[string]any{
		"assigned_agent_id": agentID,
		"status":            domain.StatusAssigned,
		"updated_at":        time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateConversationTitle rewrites the human-readable title.
func UpdateConversationTitle(ctx context.Context, db *gorm.DB, id, title string) error {
	res := db.WithContext(ctx).Model(&domain.Conversation{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchConversation advances the conversation's last-activity timestamp.
func TouchConversation(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

// CountConversations returns the number of conversations, optionally
// restricted to one status ("" counts all).
func CountConversations(ctx context.Context, db *gorm.DB, status domain.Status) (int64, error) {
	var total int64
	tx := db.WithContext(ctx).Model(&domain.Conversation{})
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	err := tx.Count(&total).Error
	return total, err
}

// ListConversationsPage returns a page of conversations ordered by last
// activity descending, optionally restricted to one status.
func ListConversationsPage(ctx context.Context, db *gorm.DB, status domain.Status, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	tx := db.WithContext(ctx).Order("updated_at desc").Offset(offset).Limit(limit)
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	err := tx.Find(&out).Error
	return out, err
}

// ListConversationsByChatUser returns all of one chat user's conversations,
// most recently active first.
func ListConversationsByChatUser(ctx context.Context, db *gorm.DB, chatUserID string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("chat_user_id = ?", chatUserID).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}
