// Package services – SupportService
//
// This file implements the general inbound path: route the message to the
// user's conversation, append it to the log, produce the canned "AI" reply,
// append that too, and fan an activity event out to agents. It composes the
// other services rather than touching the store directly.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/notify"
)

// previewRunes caps the message excerpt carried in activity events.
const previewRunes = 120

// SupportService handles ordinary (non-contract) inbound chat traffic.
type SupportService struct {
	Contacts      *ContactService
	Conversations *ConversationService
	Messages      *MessageService
	// Events receives activity notifications; publishing is best-effort.
	Events notify.Publisher
}

// NewSupportService wires the general inbound pipeline.
func NewSupportService(contacts *ContactService, convs *ConversationService, msgs *MessageService, events notify.Publisher) *SupportService {
	return &SupportService{
		Contacts:      contacts,
		Conversations: convs,
		Messages:      msgs,
		Events:        events,
	}
}

// HandleInbound processes one general text message from a known chat user
// and returns the reply to send back. The user message and the reply are
// both durable before the reply is returned; event publishing failures are
// logged and ignored.
func (s *SupportService) HandleInbound(ctx context.Context, user *domain.ChatUser, text string) (string, error) {
	tr := otel.Tracer("services/SupportService")
	ctx, span := tr.Start(ctx, "HandleInbound",
		trace.WithAttributes(attribute.String("chat_user.id", user.ID)),
	)
	defer span.End()

	conv, err := s.Conversations.ResolveOrCreate(ctx, user.ID, KindGeneral)
	if err != nil {
		return "", err
	}

	if _, err := s.Messages.Record(ctx, conv.ID, domain.SenderUser, &user.ID, text, false); err != nil {
		return "", err
	}

	reply := Respond(text)
	if _, err := s.Messages.Record(ctx, conv.ID, domain.SenderAI, nil, reply, true); err != nil {
		return "", err
	}

	s.publish(ctx, notify.Event{
		ID:             uuid.NewString(),
		Type:           notify.EventMessageReceived,
		ConversationID: conv.ID,
		ChatUserID:     user.ID,
		Preview:        preview(text),
		OccurredAt:     time.Now().UTC(),
	})

	return reply, nil
}

func (s *SupportService) publish(ctx context.Context, e notify.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("event_type", e.Type).Msg("support: event publish failed")
	}
}

// preview truncates text for event payloads without splitting runes.
func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes]) + "…"
}
