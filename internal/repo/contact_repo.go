// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the contact
// store: ChatUser (Telegram identities) and StaffUser (dashboard logins).
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zeffr-it/go-support-relay/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChatUser inserts a new ChatUser row for a Telegram identity.
// The ID is a randomly generated UUID (string), and CreatedAt is set to UTC.
func CreateChatUser(ctx context.Context, db *gorm.DB, telegramID int64, username, firstName, lastName, lang string) (*domain.ChatUser, error) {
	u := &domain.ChatUser{
		ID:           uuid.NewString(),
		TelegramID:   telegramID,
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		LanguageCode: lang,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetChatUser fetches a chat user by primary key, or ErrNotFound.
func GetChatUser(ctx context.Context, db *gorm.DB, id string) (*domain.ChatUser, error) {
	var u domain.ChatUser
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetChatUserByTelegramID fetches a chat user by its external Telegram id,
// or ErrNotFound.
func GetChatUserByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.ChatUser, error) {
	var u domain.ChatUser
	if err := db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateChatUserProfile rewrites the mutable Telegram display fields in
// place. Returns ErrNotFound when the row does not exist.
func UpdateChatUserProfile(ctx context.Context, db *gorm.DB, id, username, firstName, lastName string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatUser{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"username":   username,
			"first_name": firstName,
			"last_name":  lastName,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountChatUsers returns the total number of chat users, optionally
// filtered by a case-insensitive name/username substring.
func CountChatUsers(ctx context.Context, db *gorm.DB, q string) (int64, error) {
	var total int64
	tx := db.WithContext(ctx).Model(&domain.ChatUser{})
	if q != "" {
		like := "%" + q + "%"
		tx = tx.Where("first_name LIKE ? OR last_name LIKE ? OR username LIKE ?", like, like, like)
	}
	err := tx.Count(&total).Error
	return total, err
}

// ListChatUsersPage returns a page of chat users ordered by creation time
// descending, optionally filtered like CountChatUsers.
func ListChatUsersPage(ctx context.Context, db *gorm.DB, q string, offset, limit int) ([]domain.ChatUser, error) {
	var out []domain.ChatUser
	tx := db.WithContext(ctx).Order("created_at desc").Offset(offset).Limit(limit)
	if q != "" {
		like := "%" + q + "%"
		tx = tx.Where("first_name LIKE ? OR last_name LIKE ? OR username LIKE ?", like, like, like)
	}
	err := tx.Find(&out).Error
	return out, err
}

// CreateStaffUser inserts a staff login with a pre-hashed password.
func CreateStaffUser(ctx context.Context, db *gorm.DB, username, email, passwordHash string, isAgent bool) (*domain.StaffUser, error) {
	u := &domain.StaffUser{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsAgent:      isAgent,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetStaffUser fetches a staff user by primary key, or ErrNotFound.
func GetStaffUser(ctx context.Context, db *gorm.DB, id string) (*domain.StaffUser, error) {
	var u domain.StaffUser
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetStaffUserByUsername fetches a staff user by login name, or ErrNotFound.
func GetStaffUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.StaffUser, error) {
	var u domain.StaffUser
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CountAgents returns the number of staff users with the agent capability.
func CountAgents(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.StaffUser{}).Where("is_agent = ?", true).Count(&total).Error
	return total, err
}
