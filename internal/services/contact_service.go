// Package services – ContactService
//
// This file implements the contact store logic for Telegram identities.
// A chat user is created on first inbound contact and its display fields
// are rewritten in place whenever the Telegram profile changes; nothing is
// ever deleted here (removal happens only via cascading conversation
// cleanup, outside this service).
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/repo"
)

// TelegramProfile carries the identity fields the transport hands us for
// every update.
type TelegramProfile struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}

// ContactService maintains ChatUser rows from Telegram profile data.
type ContactService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewContactService constructs a ContactService.
func NewContactService(db *gorm.DB) *ContactService {
	return &ContactService{DB: db}
}

// UpsertFromTelegram returns the stored ChatUser for the profile, creating
// it on first contact and updating the display fields in place when they
// changed. The language code is normalized to a BCP 47 tag; unparseable
// codes fall back to "en".
func (s *ContactService) UpsertFromTelegram(ctx context.Context, p TelegramProfile) (*domain.ChatUser, error) {
	tr := otel.Tracer("services/ContactService")
	ctx, span := tr.Start(ctx, "UpsertFromTelegram",
		trace.WithAttributes(attribute.Int64("telegram.user_id", p.TelegramID)),
	)
	defer span.End()

	u, err := repo.GetChatUserByTelegramID(ctx, s.DB, p.TelegramID)
	switch {
	case err == nil:
		if u.Username != p.Username || u.FirstName != p.FirstName || u.LastName != p.LastName {
			if uerr := repo.UpdateChatUserProfile(ctx, s.DB, u.ID, p.Username, p.FirstName, p.LastName); uerr != nil {
				return nil, uerr
			}
			u.Username, u.FirstName, u.LastName = p.Username, p.FirstName, p.LastName
		}
		return u, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repo.CreateChatUser(ctx, s.DB, p.TelegramID, p.Username, p.FirstName, p.LastName, normalizeLang(p.LanguageCode))
	default:
		return nil, err
	}
}

// Lookup fetches a chat user by external Telegram id; a miss maps to
// ErrChatUserNotFound so callers can reply "use /start to begin".
func (s *ContactService) Lookup(ctx context.Context, telegramID int64) (*domain.ChatUser, error) {
	u, err := repo.GetChatUserByTelegramID(ctx, s.DB, telegramID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatUserNotFound
	}
	return u, err
}

// ListPage returns a page of chat users with an optional name/username
// search, newest first, plus the total for pagination metadata.
func (s *ContactService) ListPage(ctx context.Context, q string, page, pageSize int) ([]domain.ChatUser, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	q = strings.TrimSpace(q)
	total, err := repo.CountChatUsers(ctx, s.DB, q)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatUser{}, 0, nil
	}
	items, err := repo.ListChatUsersPage(ctx, s.DB, q, offset, pageSize)
	return items, total, err
}

// normalizeLang canonicalizes a client-reported language code ("ru",
// "pt-BR", …). Anything language.Parse rejects becomes "en".
func normalizeLang(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "en"
	}
	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return "en"
	}
	return tag.String()
}
