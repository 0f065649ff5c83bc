// Package services – ContractService
//
// This file implements the guided contract-collection dialogue: a
// three-step form (full name, passport, inline agreement) layered on top of
// the session store, the conversation router, and the message log. The
// service is transport-agnostic: it consumes text/callback inputs and
// produces Reply values; rendering them to Telegram is the bot layer's job.
//
// Each step runs entirely inside the user's session lock (validation,
// persistence, reply construction), so concurrent messages from the same
// user cannot interleave half-written form state.
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/session"
)

// AgreeCallbackData is the callback payload carried by the agreement button.
const AgreeCallbackData = "contract_agree_terms"

// CallbackPrefix scopes all contract-flow callbacks.
const CallbackPrefix = "contract_"

// passportPattern accepts exactly four digits, one whitespace, six digits.
var passportPattern = regexp.MustCompile(`^\d{4}\s\d{6}$`)

// ruMonths holds Russian genitive month names for the contract date stamp.
var ruMonths = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// Button is one inline keyboard action attached to a Reply.
type Button struct {
	Text string
	Data string
}

// Reply is a transport-neutral outbound message produced by the flow.
// EditInPlace asks the transport to rewrite the triggering message (used
// for callback answers) instead of sending a new one.
type Reply struct {
	Text        string
	Buttons     []Button
	Markdown    bool
	EditInPlace bool
}

// ContractService drives the contract-collection dialogue.
type ContractService struct {
	Sessions      *session.Store
	Contacts      *ContactService
	Conversations *ConversationService
	Messages      *MessageService

	// ContractURL and PrivacyURL are the public offer documents linked in
	// the confirmation step.
	ContractURL string
	PrivacyURL  string

	// Now is a clock seam for the contract date stamp; nil means time.Now.
	Now func() time.Time
}

// NewContractService wires the flow with its collaborators and the default
// document links.
func NewContractService(store *session.Store, contacts *ContactService, convs *ConversationService, msgs *MessageService, contractURL, privacyURL string) *ContractService {
	return &ContractService{
		Sessions:      store,
		Contacts:      contacts,
		Conversations: convs,
		Messages:      msgs,
		ContractURL:   contractURL,
		PrivacyURL:    privacyURL,
	}
}

const (
	promptRestart = "Пожалуйста, начните процесс с команды /contract"

	promptNameError = "❌ Пожалуйста, введите ФИО полностью (как минимум имя и фамилию):"

	promptPassport = "Теперь введите серию и номер вашего паспорта (через пробел):\nНапример: `4510 123456`"

	promptPassportError = "❌ Неверный формат паспорта. Пожалуйста, введите серию и номер через пробел (например: `4510 123456`):"

	promptSessionExpired = "Сессия истекла. Начните с /contract"

	promptDataMissing = "❌ Данные не найдены. Пожалуйста, начните заново с /contract"
)

const promptWelcome = "🤝 **Добро пожаловать!**\n\n" +
	"Вы начинаете процесс заключения соглашения с нашей командой Zeffr.\n\n" +
	"Пожалуйста, введите ваше ФИО полностью:"

// Start begins (or restarts) the contract flow for the chat user: a fresh
// contract_process conversation is created, the session is reset to the
// name step, and the welcome prompt is returned.
func (s *ContractService) Start(ctx context.Context, user *domain.ChatUser) (Reply, error) {
	conv, err := s.Conversations.ResolveOrCreate(ctx, user.ID, KindContract)
	if err != nil {
		return Reply{}, err
	}

	s.Sessions.Begin(user.TelegramID, session.State{
		ConversationID: conv.ID,
		Step:           session.StepName,
	})

	s.record(ctx, conv.ID, domain.SenderUser, &user.ID, "User started contract process", false)
	s.record(ctx, conv.ID, domain.SenderBot, nil, promptWelcome, true)

	return Reply{Text: promptWelcome, Markdown: true}, nil
}

// Active reports whether the chat user has a contract flow in progress.
func (s *ContractService) Active(telegramID int64) bool {
	return s.Sessions.Active(telegramID)
}

// HandleText consumes one text message from a user mid-flow. The user's
// message is always recorded against the flow conversation; the returned
// Reply is the next prompt or a validation error. When no session exists
// the user is told to restart with the start command.
func (s *ContractService) HandleText(ctx context.Context, user *domain.ChatUser, text string) (Reply, error) {
	var (
		out  Reply
		oerr error
	)
	err := s.Sessions.Update(user.TelegramID, func(st *session.State) session.Action {
		s.record(ctx, st.ConversationID, domain.SenderUser, &user.ID, text, false)

		switch st.Step {
		case session.StepName:
			out, oerr = s.stepName(ctx, st, text)
		case session.StepPassport:
			out, oerr = s.stepPassport(ctx, st, text)
		default:
			// Free text is not a valid agreement answer; point the user
			// back at the command.
			s.record(ctx, st.ConversationID, domain.SenderBot, nil, promptRestart, true)
			out = Reply{Text: promptRestart}
		}
		return session.Keep
	})
	if err == session.ErrNotFound {
		return Reply{Text: promptRestart}, nil
	}
	return out, oerr
}

// stepName validates the full name (at least two whitespace-separated
// tokens), retitles the flow conversation, and advances to the passport
// step.
func (s *ContractService) stepName(ctx context.Context, st *session.State, text string) (Reply, error) {
	if len(strings.Fields(text)) < 2 {
		s.record(ctx, st.ConversationID, domain.SenderBot, nil, promptNameError, true)
		return Reply{Text: promptNameError}, nil
	}

	st.FullName = text
	st.Step = session.StepPassport

	if err := s.Conversations.UpdateTitle(ctx, st.ConversationID, fmt.Sprintf("Contract: %s", text)); err != nil {
		log.Warn().Err(err).Str("conversation_id", st.ConversationID).Msg("contract: title update failed")
	}

	s.record(ctx, st.ConversationID, domain.SenderBot, nil, promptPassport, true)
	return Reply{Text: promptPassport, Markdown: true}, nil
}

// stepPassport validates the series/number format and advances to the
// agreement step with the offer links and the consent button.
func (s *ContractService) stepPassport(ctx context.Context, st *session.State, text string) (Reply, error) {
	if !passportPattern.MatchString(text) {
		s.record(ctx, st.ConversationID, domain.SenderBot, nil, promptPassportError, true)
		return Reply{Text: promptPassportError, Markdown: true}, nil
	}

	st.Passport = text
	st.Step = session.StepAgreement

	confirmation := fmt.Sprintf(
		"Спасибо, %s!\n\n"+
			"Перед началом работы ознакомьтесь с нашей публичной офертой:\n\n"+
			"**Договор:**\n[%s](%s)\n\n"+
			"**Соглашение об обработке данных:**\n[%s](%s)\n\n"+
			"Нажимая кнопку ниже, вы подтверждаете согласие с условиями.",
		st.FullName,
		s.ContractURL, s.ContractURL,
		s.PrivacyURL, s.PrivacyURL,
	)

	s.record(ctx, st.ConversationID, domain.SenderBot, nil, confirmation, true)
	return Reply{
		Text:     confirmation,
		Markdown: true,
		Buttons:  []Button{{Text: "✅ Согласен", Data: AgreeCallbackData}},
	}, nil
}

// Confirm consumes the agreement button press. On success the flow
// conversation is completed, the final summary replaces the confirmation
// message, and the session ends. An expired session or unknown payload
// yields a plain toast-style reply; incomplete form data rewrites the
// message with an error but keeps the session.
func (s *ContractService) Confirm(ctx context.Context, user *domain.ChatUser, data string) (Reply, error) {
	if data != AgreeCallbackData {
		return Reply{Text: promptSessionExpired}, nil
	}

	var (
		out  Reply
		oerr error
	)
	err := s.Sessions.Update(user.TelegramID, func(st *session.State) session.Action {
		if st.FullName == "" || st.Passport == "" {
			out = Reply{Text: promptDataMissing, EditInPlace: true}
			return session.Keep
		}

		if cerr := s.Conversations.Complete(ctx, st.ConversationID); cerr != nil {
			oerr = cerr
			return session.Keep
		}

		success := fmt.Sprintf(
			"✅ **Спасибо! Вы приняли условия оферты.**\n\n"+
				"✅ **Договор успешно заключён.**\n\n"+
				"С уважением, команда Zeffr 🚀\n\n"+
				"**Ваши данные:**\n"+
				"• ФИО: %s\n"+
				"• Паспорт: %s\n"+
				"• Дата заключения: %s\n\n"+
				"Договор вступил в силу. Добро пожаловать в команду!",
			st.FullName, st.Passport, s.contractDate(),
		)

		s.record(ctx, st.ConversationID, domain.SenderBot, nil, success, true)

		log.Info().
			Str("conversation_id", st.ConversationID).
			Int64("telegram_id", user.TelegramID).
			Msg("contract completed")

		out = Reply{Text: success, Markdown: true, EditInPlace: true}
		return session.End
	})
	if err == session.ErrNotFound {
		return Reply{Text: promptSessionExpired}, nil
	}
	return out, oerr
}

// record appends a flow message; persistence failures are logged and
// swallowed so a database hiccup never aborts the dialogue mid-step.
func (s *ContractService) record(ctx context.Context, conversationID string, sender domain.SenderType, senderID *string, content string, isAI bool) {
	if _, err := s.Messages.Record(ctx, conversationID, sender, senderID, content, isAI); err != nil {
		log.Warn().Err(err).
			Str("conversation_id", conversationID).
			Str("sender_type", string(sender)).
			Msg("contract: message record failed")
	}
}

// contractDate renders the agreement date as "2 января 2006 года".
func (s *ContractService) contractDate() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now()
	return fmt.Sprintf("%d %s %d года", t.Day(), ruMonths[int(t.Month())-1], t.Year())
}
