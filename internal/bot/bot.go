// Package bot is the Telegram transport of the relay. It adapts incoming
// updates (commands, free text, inline-button callbacks) into service calls
// and renders transport-neutral Reply values back into Telegram messages.
// All business rules live in the services layer; this package only routes.
package bot

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/zeffr-it/go-support-relay/internal/services"
)

// welcomeText greets new and returning users on /start and /help.
const welcomeText = "🤖 Welcome to CRM Support Bot!\nWe will reach out shortly!"

// startInstruction is sent when an unregistered user writes free text.
const startInstruction = "Please use /start to begin."

// Service runs the Telegram long-poll loop and dispatches updates.
type Service struct {
	tg       *tgbot.Bot
	contacts *services.ContactService
	support  *services.SupportService
	contract *services.ContractService
	log      zerolog.Logger
}

// route binds one update pattern to its handler. The full dispatch surface
// of the bot is the routes table below; nothing is registered ad hoc.
type route struct {
	handlerType tgbot.HandlerType
	pattern     string
	matchType   tgbot.MatchType
	handler     tgbot.HandlerFunc
}

// New creates the Telegram bot, registers the dispatch table, and returns
// the service. The token is validated by the underlying client on creation.
func New(token string, contacts *services.ContactService, support *services.SupportService, contract *services.ContractService, logger zerolog.Logger) (*Service, error) {
	if token == "" {
		return nil, fmt.Errorf("bot: telegram token is empty")
	}

	s := &Service{
		contacts: contacts,
		support:  support,
		contract: contract,
		log:      logger.With().Str("component", "telegram_bot").Logger(),
	}

	b, err := tgbot.New(token, tgbot.WithDefaultHandler(s.handleText))
	if err != nil {
		return nil, fmt.Errorf("bot: create telegram client: %w", err)
	}
	s.tg = b

	for _, r := range s.routes() {
		b.RegisterHandler(r.handlerType, r.pattern, r.matchType, r.handler)
	}
	return s, nil
}

// routes is the bot's complete dispatch table. Free text that matches no
// route falls through to the default handler (handleText).
func (s *Service) routes() []route {
	return []route{
		{tgbot.HandlerTypeMessageText, "start", tgbot.MatchTypeCommandStartOnly, s.handleStart},
		{tgbot.HandlerTypeMessageText, "help", tgbot.MatchTypeCommandStartOnly, s.handleStart},
		{tgbot.HandlerTypeMessageText, "contract", tgbot.MatchTypeCommandStartOnly, s.handleContract},
		{tgbot.HandlerTypeCallbackQueryData, services.CallbackPrefix, tgbot.MatchTypePrefix, s.handleContractCallback},
	}
}

// Run blocks on the long-poll loop until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info().Msg("telegram long-poll loop starting")
	s.tg.Start(ctx)
	s.log.Info().Msg("telegram long-poll loop stopped")
	if ctx.Err() == nil {
		return fmt.Errorf("bot: telegram listener stopped unexpectedly")
	}
	return nil
}

// SendText pushes plain text to a chat. It satisfies services.TextSender so
// the dashboard bridge can deliver agent replies through this transport.
func (s *Service) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := s.tg.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}

// sendReply renders a services.Reply as a fresh outbound message.
func (s *Service) sendReply(ctx context.Context, chatID int64, r services.Reply) {
	params := &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   r.Text,
	}
	if r.Markdown {
		params.ParseMode = models.ParseModeMarkdown
		disabled := true
		params.LinkPreviewOptions = &models.LinkPreviewOptions{IsDisabled: &disabled}
	}
	if len(r.Buttons) > 0 {
		params.ReplyMarkup = keyboard(r.Buttons)
	}
	if _, err := s.tg.SendMessage(ctx, params); err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

// editReply rewrites an existing message in place (callback answers).
func (s *Service) editReply(ctx context.Context, chatID int64, messageID int, r services.Reply) {
	params := &tgbot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      r.Text,
	}
	if r.Markdown {
		params.ParseMode = models.ParseModeMarkdown
	}
	if len(r.Buttons) > 0 {
		params.ReplyMarkup = keyboard(r.Buttons)
	}
	if _, err := s.tg.EditMessageText(ctx, params); err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Int("message_id", messageID).Msg("edit failed")
	}
}

// keyboard builds a one-button-per-row inline keyboard.
func keyboard(buttons []services.Button) models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: b.Text, CallbackData: b.Data},
		})
	}
	return models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
