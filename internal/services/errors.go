// Package services defines the business logic of the relay: contact
// upserts, conversation routing, the message log, the contract dialogue,
// and outbound delivery. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer; the
// translation into user-facing messages (chat replies, HTTP status codes)
// is performed at the bot-handler/HTTP-handler layer.
package services

import "errors"

var (
	// ErrChatUserNotFound indicates a referenced Telegram identity is not
	// in the contact store. Surfaced to the end user as a "use /start"
	// instruction, never fatal.
	ErrChatUserNotFound = errors.New("chat user not found")

	// ErrConversationNotFound indicates the requested conversation does
	// not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrAgentNotFound indicates the referenced staff user does not exist.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrNotAnAgent is returned when a staff user without the agent
	// capability attempts an agent-only operation.
	ErrNotAnAgent = errors.New("staff user is not an agent")

	// ErrEmptyMessage is returned when a message to record has no content.
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrTooLong is returned when message content exceeds the configured
	// maximum length limit.
	ErrTooLong = errors.New("message content too long")

	// ErrInvalidSender is returned when a sender classification is outside
	// the closed set, or its sender reference does not match the type
	// (user/agent require one, ai/bot forbid it).
	ErrInvalidSender = errors.New("invalid sender")
)
