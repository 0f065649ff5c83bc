// Package services – Bridge
//
// This file implements outbound delivery from the dashboard back to the
// chat user. The store write is the source of truth: a message the agent
// sent exists once it is recorded, and transport delivery is best-effort on
// top of that. Delivery failures are logged, never propagated, so a flaky
// Telegram connection cannot fail the dashboard request.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/rs/zerolog/log"

	"github.com/zeffr-it/go-support-relay/internal/repo"
)

// TextSender pushes plain text to a chat user on the external transport.
// The Telegram bot implements it; tests substitute a fake.
type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Origin labels who authored an outbound message, for logging.
type Origin string

const (
	OriginAgent Origin = "agent"
	OriginAI    Origin = "ai"
)

// Bridge resolves a conversation's chat user and forwards text to them.
type Bridge struct {
	// DB is the GORM handle used for chat-user resolution.
	DB *gorm.DB
	// Sender is the transport; nil disables delivery (store-only mode).
	Sender TextSender
}

// NewBridge constructs a Bridge over the given transport.
func NewBridge(db *gorm.DB, sender TextSender) *Bridge {
	return &Bridge{DB: db, Sender: sender}
}

// Deliver forwards text to the owner of the conversation. It is fire and
// forget: resolution and transport failures are logged and swallowed, and
// each recorded message is handed to the transport exactly once.
func (b *Bridge) Deliver(ctx context.Context, conversationID string, origin Origin, text string) {
	if b.Sender == nil {
		return
	}

	conv, err := repo.GetConversation(ctx, b.DB, conversationID)
	if err != nil {
		ev := log.Error()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ev = log.Warn()
		}
		ev.Err(err).Str("conversation_id", conversationID).Msg("bridge: conversation lookup failed")
		return
	}
	user, err := repo.GetChatUser(ctx, b.DB, conv.ChatUserID)
	if err != nil {
		log.Error().Err(err).
			Str("conversation_id", conversationID).
			Str("chat_user_id", conv.ChatUserID).
			Msg("bridge: chat user lookup failed")
		return
	}

	if err := b.Sender.SendText(ctx, user.TelegramID, text); err != nil {
		log.Error().Err(err).
			Str("conversation_id", conversationID).
			Int64("telegram_id", user.TelegramID).
			Str("origin", string(origin)).
			Msg("bridge: outbound delivery failed")
		return
	}
	log.Debug().
		Str("conversation_id", conversationID).
		Str("origin", string(origin)).
		Msg("bridge: delivered")
}
