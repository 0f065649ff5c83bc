// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency records a previously processed agent-send request, keyed by
// (agent_id, conversation_id, key). It lets the dashboard retry a POST
// without producing a second message row or a second Telegram delivery.
type Idempotency struct {
	ID             string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	AgentID        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_agent_conv_key,priority:1"`
	ConversationID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_agent_conv_key,priority:2"`
	Key            string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_agent_conv_key,priority:3"`
	MessageID      string    `gorm:"type:TEXT NOT NULL"`
	Status         int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt      time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt      time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
