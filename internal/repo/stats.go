// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the admin dashboard counters and for conditional responses (ETag
// generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/zeffr-it/go-support-relay/internal/domain"
)

// ConversationsStats returns aggregate metadata for the conversation list:
// the total number of rows (optionally filtered by status) and the maximum
// UpdatedAt among them. When there are no rows, maxUpdatedAt is nil.
func ConversationsStats(ctx context.Context, db *gorm.DB, status domain.Status) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Conversation{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// RelayStats bundles the admin dashboard counters.
type RelayStats struct {
	TotalChatUsers    int64 `json:"total_chat_users"`
	TotalAgents       int64 `json:"total_agents"`
	OpenConversations int64 `json:"open_conversations"`
	TotalMessages     int64 `json:"total_messages"`
}

// GetRelayStats gathers the dashboard counters in four lightweight queries.
// "Open" counts conversations in status open or assigned, matching what the
// agent dashboard surfaces as actionable.
func GetRelayStats(ctx context.Context, db *gorm.DB) (*RelayStats, error) {
	var s RelayStats
	if err := db.WithContext(ctx).Model(&domain.ChatUser{}).Count(&s.TotalChatUsers).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&domain.StaffUser{}).Where("is_agent = ?", true).Count(&s.TotalAgents).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("status IN ?", []domain.Status{domain.StatusOpen, domain.StatusAssigned}).
		Count(&s.OpenConversations).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&domain.Message{}).Count(&s.TotalMessages).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// RecentChatUsers returns the newest chat users for the dashboard's
// registration feed.
func RecentChatUsers(ctx context.Context, db *gorm.DB, limit int) ([]domain.ChatUser, error) {
	if limit <= 0 {
		limit = 6
	}
	var out []domain.ChatUser
	err := db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&out).Error
	return out, err
}
