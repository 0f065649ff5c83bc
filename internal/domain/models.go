// Package domain defines the persistence models for the support relay:
// chat users, staff users, conversations, and messages. These types are
// mapped with GORM and form the core data layer of the application.
package domain

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Status is the lifecycle state of a Conversation.
type Status string

// Conversation lifecycle states. A conversation is "routable" (eligible to
// receive further general inbound traffic) while it is open, assigned, or
// mid contract collection.
const (
	StatusOpen            Status = "open"
	StatusAssigned        Status = "assigned"
	StatusContractProcess Status = "contract_process"
	StatusCompleted       Status = "completed"
	StatusClosed          Status = "closed"
)

// RoutableStatuses are the states the conversation router reuses for
// general traffic instead of opening a duplicate.
var RoutableStatuses = []Status{StatusOpen, StatusAssigned, StatusContractProcess}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusContractProcess, StatusCompleted, StatusClosed:
		return true
	}
	return false
}

// SenderType classifies who authored a message. It is a closed set; the
// check constraint below rejects anything outside it.
type SenderType string

const (
	SenderUser  SenderType = "user"  // the chat user (SenderID = ChatUser.ID)
	SenderAgent SenderType = "agent" // a staff agent (SenderID = StaffUser.ID)
	SenderAI    SenderType = "ai"    // the keyword responder (SenderID nil)
	SenderBot   SenderType = "bot"   // contract-flow prompts (SenderID nil)
)

// Valid reports whether t is a known sender classification.
func (t SenderType) Valid() bool {
	switch t {
	case SenderUser, SenderAgent, SenderAI, SenderBot:
		return true
	}
	return false
}

// HasRef reports whether messages of this sender type carry a numeric
// sender reference. Only user and agent messages do.
func (t SenderType) HasRef() bool {
	return t == SenderUser || t == SenderAgent
}

// StaffUser is a dashboard login. Agents (IsAgent) may own assigned
// conversations and author agent messages.
type StaffUser struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Username     string    `json:"username"   gorm:"type:varchar(80);not null;uniqueIndex"`
	Email        string    `json:"email"      gorm:"type:varchar(120);not null;uniqueIndex"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(128);not null"`
	IsAgent      bool      `json:"is_agent"   gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for StaffUser.
func (StaffUser) TableName() string { return "staff_users" }

// SetPassword hashes the plaintext password with bcrypt and stores the hash.
func (u *StaffUser) SetPassword(plain string) error {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(h)
	return nil
}

// CheckPassword reports whether plain matches the stored hash.
func (u *StaffUser) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// ChatUser is an external Telegram identity, created on first inbound
// contact and updated in place when display fields change.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - TelegramID: numeric Telegram account id; unique, indexed.
//   - Username / FirstName / LastName: Telegram profile display fields.
//   - LanguageCode: BCP 47 tag reported by the client (normalized on upsert).
type ChatUser struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	TelegramID   int64     `json:"telegram_id"   gorm:"not null;uniqueIndex"`
	Username     string    `json:"username"      gorm:"type:varchar(80)"`
	FirstName    string    `json:"first_name"    gorm:"type:varchar(80);not null"`
	LastName     string    `json:"last_name"     gorm:"type:varchar(80)"`
	LanguageCode string    `json:"language_code" gorm:"type:varchar(10);default:'en'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatUser.
func (ChatUser) TableName() string { return "chat_users" }

// DisplayName returns "First Last", or just the first name when the last
// name is empty.
func (u ChatUser) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Conversation is a thread of messages owned by exactly one ChatUser,
// optionally assigned to one agent. Messages are cascade-deleted with it.
//
// Invariant: at most one conversation per ChatUser is in a routable status
// at a time for general traffic; the router reuses it instead of forking.
type Conversation struct {
	ID              string     `json:"id"                gorm:"type:char(36);primaryKey"`
	ChatUserID      string     `json:"chat_user_id"      gorm:"type:char(36);not null;index:idx_user_convs"`
	Status          Status     `json:"status"            gorm:"type:varchar(20);not null;default:'open';index;check:status IN ('open','assigned','contract_process','completed','closed')"`
	AssignedAgentID *string    `json:"assigned_agent_id,omitempty" gorm:"type:char(36);index"`
	Title           string     `json:"title"             gorm:"type:varchar(200)"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`

	// ChatUser is the owning identity; conversations are cascade-deleted
	// when it is removed.
	ChatUser ChatUser `json:"-" gorm:"foreignKey:ChatUserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Routable reports whether the conversation may receive further general
// inbound traffic.
func (c Conversation) Routable() bool {
	switch c.Status {
	case StatusOpen, StatusAssigned, StatusContractProcess:
		return true
	}
	return false
}

// Message is a single utterance within a conversation. The log is
// append-only: ReadByAgent is the only field ever mutated after creation.
//
// Fields:
//   - SenderID: set for user/agent messages, nil for ai/bot.
//   - IsAIResponse: true for responder and contract-flow authored content.
//   - ReadByAgent: toggled by the dashboard read endpoint.
type Message struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string     `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	SenderType     SenderType `json:"sender_type"     gorm:"type:varchar(20);not null;check:sender_type IN ('user','agent','ai','bot')"`
	SenderID       *string    `json:"sender_id,omitempty" gorm:"type:char(36)"`
	Content        string     `json:"content"         gorm:"type:text;not null"`
	CreatedAt      time.Time  `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	IsAIResponse   bool       `json:"is_ai_response"  gorm:"not null;default:false"`
	ReadByAgent    bool       `json:"read_by_agent"   gorm:"not null;default:false"`

	// Conversation is the parent thread; messages are cascade-deleted
	// with it.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
