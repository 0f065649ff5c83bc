package bot

import (
	"context"
	"errors"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/zeffr-it/go-support-relay/internal/services"
)

// profileOf maps a Telegram user to the contact-store profile shape.
func profileOf(u *models.User) services.TelegramProfile {
	return services.TelegramProfile{
		TelegramID:   u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
	}
}

// handleStart registers (or refreshes) the contact and greets the user.
// /help shares this handler.
func (s *Service) handleStart(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if _, err := s.contacts.UpsertFromTelegram(ctx, profileOf(msg.From)); err != nil {
		s.log.Error().Err(err).Int64("telegram_id", msg.From.ID).Msg("contact upsert failed")
		return
	}
	s.sendReply(ctx, msg.Chat.ID, services.Reply{Text: welcomeText})
}

// handleContract starts the contract-collection flow. The user is upserted
// first so /contract works even without a prior /start.
func (s *Service) handleContract(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	user, err := s.contacts.UpsertFromTelegram(ctx, profileOf(msg.From))
	if err != nil {
		s.log.Error().Err(err).Int64("telegram_id", msg.From.ID).Msg("contact upsert failed")
		return
	}
	reply, err := s.contract.Start(ctx, user)
	if err != nil {
		s.log.Error().Err(err).Int64("telegram_id", msg.From.ID).Msg("contract start failed")
		return
	}
	s.sendReply(ctx, msg.Chat.ID, reply)
}

// handleText is the default handler: every text update that is not a
// registered command lands here. Mid-contract users go to the flow; known
// users go to the general support path; unknown users are pointed at
// /start.
func (s *Service) handleText(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}

	user, err := s.contacts.Lookup(ctx, msg.From.ID)
	if errors.Is(err, services.ErrChatUserNotFound) {
		s.sendReply(ctx, msg.Chat.ID, services.Reply{Text: startInstruction})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int64("telegram_id", msg.From.ID).Msg("contact lookup failed")
		return
	}

	if s.contract.Active(msg.From.ID) {
		reply, herr := s.contract.HandleText(ctx, user, msg.Text)
		if herr != nil {
			s.log.Error().Err(herr).Int64("telegram_id", msg.From.ID).Msg("contract step failed")
			return
		}
		s.sendReply(ctx, msg.Chat.ID, reply)
		return
	}

	reply, err := s.support.HandleInbound(ctx, user, msg.Text)
	if err != nil {
		s.log.Error().Err(err).Int64("telegram_id", msg.From.ID).Msg("inbound handling failed")
		return
	}
	s.sendReply(ctx, msg.Chat.ID, services.Reply{Text: reply})
}

// handleContractCallback consumes agreement-button presses. The callback is
// always answered; an expired session surfaces the toast text there, a live
// one rewrites the confirmation message in place.
func (s *Service) handleContractCallback(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		return
	}

	user, err := s.contacts.Lookup(ctx, cb.From.ID)
	if err != nil {
		s.answerCallback(ctx, cb.ID, "Сессия истекла. Начните с /contract")
		return
	}

	reply, err := s.contract.Confirm(ctx, user, cb.Data)
	if err != nil {
		s.log.Error().Err(err).Int64("telegram_id", cb.From.ID).Msg("contract confirm failed")
		s.answerCallback(ctx, cb.ID, "")
		return
	}

	if reply.EditInPlace && cb.Message.Message != nil {
		s.editReply(ctx, cb.Message.Message.Chat.ID, cb.Message.Message.ID, reply)
		s.answerCallback(ctx, cb.ID, "")
		return
	}
	// No message to edit: deliver the text through the toast.
	s.answerCallback(ctx, cb.ID, reply.Text)
}

func (s *Service) answerCallback(ctx context.Context, callbackID, text string) {
	_, err := s.tg.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("callback answer failed")
	}
}
