package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/repo"
)

// newSvcDB opens a throwaway SQLite store with the full relay schema. It is
// shared by every service test in this package.
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedChatUser inserts a chat user and returns it.
func seedChatUser(t *testing.T, db *gorm.DB, telegramID int64, firstName string) *domain.ChatUser {
	t.Helper()
	u, err := repo.CreateChatUser(context.Background(), db, telegramID, "user", firstName, "", "en")
	if err != nil {
		t.Fatalf("seed chat user: %v", err)
	}
	return u
}

func TestResolveOrCreate_General_FirstMessageOpensConversation(t *testing.T) {
	db := newSvcDB(t)
	svc := NewConversationService(db)
	u := seedChatUser(t, db, 1, "Ivan")

	conv, err := svc.ResolveOrCreate(context.Background(), u.ID, KindGeneral)
	if err != nil {
		t.Fatalf("ResolveOrCreate: %v", err)
	}
	if conv.Status != domain.StatusOpen {
		t.Fatalf("expected open, got %s", conv.Status)
	}
	if conv.Title != "Chat with Ivan" {
		t.Fatalf("unexpected title: %q", conv.Title)
	}
}

func TestResolveOrCreate_General_ReusesRoutableConversation(t *testing.T) {
	db := newSvcDB(t)
	svc := NewConversationService(db)
	u := seedChatUser(t, db, 1, "Ivan")

	first, err := svc.ResolveOrCreate(context.Background(), u.ID, KindGeneral)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := svc.ResolveOrCreate(context.Background(), u.ID, KindGeneral)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("general traffic must reuse the routable conversation: %s vs %s", second.ID, first.ID)
	}

	// Assigned conversations keep receiving traffic too.
	agent, err := repo.CreateStaffUser(context.Background(), db, "agent", "a@x", "h", true)
	if err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	if err := svc.Assign(context.Background(), first.ID, agent.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	third, err := svc.ResolveOrCreate(context.Background(), u.ID, KindGeneral)
	if err != nil {
		t.Fatalf("third resolve: %v", err)
	}
	if third.ID != first.ID {
		t.Fatalf("assigned conversation must still be reused")
	}
}

func TestResolveOrCreate_General_ClosedForcesNewConversation(t *testing.T) {
	db := newSvcDB(t)
	svc := NewConversationService(db)
	u := seedChatUser(t, db, 1, "Ivan")

	first, err := svc.ResolveOrCreate(context.Background(), u.ID, KindGeneral)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := svc.Close(context.Background(), first.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	next, err := svc.ResolveOrCreate(context.Background(), u.ID, KindGeneral)
	if err != nil {
		t.Fatalf("resolve after close: %v", err)
	}
	if next.ID == first.ID {
		t.Fatalf("closed conversation must not be reused")
	}
	if next.Status != domain.StatusOpen {
		t.Fatalf("expected fresh open conversation, got %s", next.Status)
	}
}

func TestResolveOrCreate_Contract_AlwaysNew(t *testing.T) {
	db := newSvcDB(t)
	svc := NewConversationService(db)
	u := seedChatUser(t, db, 1, "Anna")

	// An existing open conversation must not absorb the contract flow.
	general, err := svc.ResolveOrCreate(context.Background(), u.ID, KindGeneral)
	if err != nil {
		t.Fatalf("general: %v", err)
	}

	c1, err := svc.ResolveOrCreate(context.Background(), u.ID, KindContract)
	if err != nil {
		t.Fatalf("contract 1: %v", err)
	}
	c2, err := svc.ResolveOrCreate(context.Background(), u.ID, KindContract)
	if err != nil {
		t.Fatalf("contract 2: %v", err)
	}

	if c1.ID == general.ID || c2.ID == general.ID || c1.ID == c2.ID {
		t.Fatalf("each contract invocation must open a distinct conversation")
	}
	if c1.Status != domain.StatusContractProcess || c2.Status != domain.StatusContractProcess {
		t.Fatalf("contract conversations must start in contract_process: %s, %s", c1.Status, c2.Status)
	}
	if c1.Title != "Contract: Anna" {
		t.Fatalf("unexpected contract title: %q", c1.Title)
	}
}

func TestResolveOrCreate_UnknownChatUser(t *testing.T) {
	db := newSvcDB(t)
	svc := NewConversationService(db)

	for _, kind := range []Kind{KindGeneral, KindContract} {
		if _, err := svc.ResolveOrCreate(context.Background(), "ghost", kind); !errors.Is(err, ErrChatUserNotFound) {
			t.Fatalf("kind=%s: expected ErrChatUserNotFound, got %v", kind, err)
		}
	}
}

func TestConversationService_GetAndListPage(t *testing.T) {
	db := newSvcDB(t)
	svc := NewConversationService(db)
	u := seedChatUser(t, db, 1, "Ivan")

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}

	conv, err := svc.ResolveOrCreate(context.Background(), u.ID, KindGeneral)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, err := svc.Get(context.Background(), conv.ID)
	if err != nil || got.ID != conv.ID {
		t.Fatalf("Get: got=%+v err=%v", got, err)
	}

	items, total, err := svc.ListPage(context.Background(), domain.StatusOpen, 1, 10)
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("ListPage: total=%d len=%d err=%v", total, len(items), err)
	}

	items, total, err = svc.ListPage(context.Background(), domain.StatusClosed, 1, 10)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("ListPage closed: total=%d len=%d err=%v", total, len(items), err)
	}
}

func TestConversationService_Assign_Validation(t *testing.T) {
	db := newSvcDB(t)
	svc := NewConversationService(db)
	u := seedChatUser(t, db, 1, "Ivan")

	conv, err := svc.ResolveOrCreate(context.Background(), u.ID, KindGeneral)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if err := svc.Assign(context.Background(), conv.ID, "missing-agent"); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}

	viewer, err := repo.CreateStaffUser(context.Background(), db, "viewer", "v@x", "h", false)
	if err != nil {
		t.Fatalf("seed viewer: %v", err)
	}
	if err := svc.Assign(context.Background(), conv.ID, viewer.ID); !errors.Is(err, ErrNotAnAgent) {
		t.Fatalf("expected ErrNotAnAgent, got %v", err)
	}

	agent, err := repo.CreateStaffUser(context.Background(), db, "agent", "a@x", "h", true)
	if err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	if err := svc.Assign(context.Background(), "missing-conv", agent.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if err := svc.Assign(context.Background(), conv.ID, agent.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
}

func TestConversationService_CloseAndComplete_StampClosedAt(t *testing.T) {
	db := newSvcDB(t)
	svc := NewConversationService(db)
	u := seedChatUser(t, db, 1, "Ivan")

	cases := []struct {
		name string
		fn   func(context.Context, string) error
		want domain.Status
	}{
		{"close", svc.Close, domain.StatusClosed},
		{"complete", svc.Complete, domain.StatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conv, err := repo.CreateConversation(context.Background(), db, u.ID, "t", domain.StatusOpen)
			if err != nil {
				t.Fatalf("seed: %v", err)
			}
			before := time.Now().UTC().Add(-time.Minute)
			if err := tc.fn(context.Background(), conv.ID); err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			got, err := svc.Get(context.Background(), conv.ID)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if got.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Status)
			}
			if got.ClosedAt == nil || got.ClosedAt.Before(before) {
				t.Fatalf("closed_at not stamped: %v", got.ClosedAt)
			}
		})
	}

	if err := svc.Close(context.Background(), "missing"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestConversationService_UpdateTitle(t *testing.T) {
	db := newSvcDB(t)
	svc := NewConversationService(db)
	u := seedChatUser(t, db, 1, "Ivan")

	conv, err := svc.ResolveOrCreate(context.Background(), u.ID, KindGeneral)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := svc.UpdateTitle(context.Background(), conv.ID, "Contract: Ivan Petrov"); err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	got, _ := svc.Get(context.Background(), conv.ID)
	if got.Title != "Contract: Ivan Petrov" {
		t.Fatalf("title not updated: %q", got.Title)
	}

	if err := svc.UpdateTitle(context.Background(), "missing", "x"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}
