package repo

import (
	"path/filepath"
	"testing"

	"github.com/zeffr-it/go-support-relay/internal/domain"
)

func TestOpenSQLite_CreatesFileAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	// The full schema must be usable end to end.
	for _, table := range []string{"staff_users", "chat_users", "conversations", "messages", "idempotency"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table %q after migration", table)
		}
	}

	var mode string
	if err := db.Raw("PRAGMA journal_mode;").Scan(&mode).Error; err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected WAL journal mode, got %q", mode)
	}

	u := domain.ChatUser{ID: "u1", TelegramID: 1, FirstName: "F"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("insert after migrate: %v", err)
	}
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "relay.db")
	if _, err := OpenSQLite(path); err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}
