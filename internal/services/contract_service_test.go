package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/repo"
	"github.com/zeffr-it/go-support-relay/internal/session"
)

func newContractSvc(t *testing.T) (*ContractService, *gorm.DB, *domain.ChatUser) {
	t.Helper()
	db := newSvcDB(t)
	svc := NewContractService(
		session.NewStore(),
		NewContactService(db),
		NewConversationService(db),
		NewMessageService(db),
		"https://example.com/contract.html",
		"https://example.com/privacy.html",
	)
	u := seedChatUser(t, db, 555, "Ivan")
	return svc, db, u
}

// flowConversation returns the single contract_process conversation of the
// running flow.
func flowConversation(t *testing.T, db *gorm.DB, userID string) *domain.Conversation {
	t.Helper()
	conv, err := repo.FindRoutableConversation(context.Background(), db, userID)
	if err != nil {
		t.Fatalf("flow conversation: %v", err)
	}
	if conv.Status != domain.StatusContractProcess {
		t.Fatalf("expected contract_process, got %s", conv.Status)
	}
	return conv
}

func TestContractStart_OpensFlowAndPrompts(t *testing.T) {
	svc, db, u := newContractSvc(t)

	reply, err := svc.Start(context.Background(), u)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.Contains(reply.Text, "Добро пожаловать") || !strings.Contains(reply.Text, "ФИО полностью") {
		t.Fatalf("unexpected welcome: %q", reply.Text)
	}
	if !reply.Markdown || reply.EditInPlace || len(reply.Buttons) != 0 {
		t.Fatalf("unexpected reply shape: %+v", reply)
	}
	if !svc.Active(u.TelegramID) {
		t.Fatalf("flow must be active after Start")
	}

	conv := flowConversation(t, db, u.ID)
	if conv.Title != "Contract: Ivan" {
		t.Fatalf("unexpected flow title: %q", conv.Title)
	}
	msgs, err := repo.ListMessages(db, conv.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// The synthetic start marker plus the welcome prompt.
	if len(msgs) != 2 || msgs[0].SenderType != domain.SenderUser || msgs[1].SenderType != domain.SenderBot {
		t.Fatalf("unexpected transcript: %+v", msgs)
	}
	if msgs[0].Content != "User started contract process" {
		t.Fatalf("unexpected start marker: %q", msgs[0].Content)
	}
}

func TestContractStart_RestartDiscardsOldForm(t *testing.T) {
	svc, _, u := newContractSvc(t)

	if _, err := svc.Start(context.Background(), u); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := svc.HandleText(context.Background(), u, "Ivan Petrov"); err != nil {
		t.Fatalf("name step: %v", err)
	}
	if _, err := svc.Start(context.Background(), u); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	st, ok := svc.Sessions.Snapshot(u.TelegramID)
	if !ok || st.Step != session.StepName || st.FullName != "" {
		t.Fatalf("restart must reset the form: %+v ok=%v", st, ok)
	}
}

func TestContractHandleText_NoSession(t *testing.T) {
	svc, _, u := newContractSvc(t)

	reply, err := svc.HandleText(context.Background(), u, "anything")
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if !strings.Contains(reply.Text, "/contract") {
		t.Fatalf("expected restart instruction, got %q", reply.Text)
	}
}

func TestContractFlow_NameValidation(t *testing.T) {
	svc, _, u := newContractSvc(t)
	if _, err := svc.Start(context.Background(), u); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, bad := range []string{"Madonna", "  Single  "} {
		reply, err := svc.HandleText(context.Background(), u, bad)
		if err != nil {
			t.Fatalf("HandleText(%q): %v", bad, err)
		}
		if !strings.Contains(reply.Text, "ФИО полностью") {
			t.Fatalf("expected name error for %q, got %q", bad, reply.Text)
		}
		st, _ := svc.Sessions.Snapshot(u.TelegramID)
		if st.Step != session.StepName {
			t.Fatalf("step must not advance on invalid name")
		}
	}

	reply, err := svc.HandleText(context.Background(), u, "Ivan Petrov")
	if err != nil {
		t.Fatalf("valid name: %v", err)
	}
	if !strings.Contains(reply.Text, "паспорта") {
		t.Fatalf("expected passport prompt, got %q", reply.Text)
	}
	st, _ := svc.Sessions.Snapshot(u.TelegramID)
	if st.Step != session.StepPassport || st.FullName != "Ivan Petrov" {
		t.Fatalf("unexpected state after name: %+v", st)
	}
}

func TestContractFlow_NameRetitlesConversation(t *testing.T) {
	svc, db, u := newContractSvc(t)
	if _, err := svc.Start(context.Background(), u); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.HandleText(context.Background(), u, "Ivan Petrov"); err != nil {
		t.Fatalf("name step: %v", err)
	}
	conv := flowConversation(t, db, u.ID)
	if conv.Title != "Contract: Ivan Petrov" {
		t.Fatalf("expected retitled conversation, got %q", conv.Title)
	}
}

func TestContractFlow_PassportValidation(t *testing.T) {
	svc, _, u := newContractSvc(t)
	if _, err := svc.Start(context.Background(), u); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.HandleText(context.Background(), u, "Ivan Petrov"); err != nil {
		t.Fatalf("name step: %v", err)
	}

	for _, bad := range []string{
		"451 123456",   // three-digit series
		"4510123456",   // no separator
		"4510 12345",   // five-digit number
		"4510 1234567", // seven-digit number
		"abcd 123456",  // letters
		"4510  123456", // double space
	} {
		reply, err := svc.HandleText(context.Background(), u, bad)
		if err != nil {
			t.Fatalf("HandleText(%q): %v", bad, err)
		}
		if !strings.Contains(reply.Text, "Неверный формат паспорта") {
			t.Fatalf("expected format error for %q, got %q", bad, reply.Text)
		}
		st, _ := svc.Sessions.Snapshot(u.TelegramID)
		if st.Step != session.StepPassport {
			t.Fatalf("step must not advance on invalid passport %q", bad)
		}
	}

	reply, err := svc.HandleText(context.Background(), u, "4510 123456")
	if err != nil {
		t.Fatalf("valid passport: %v", err)
	}
	if !strings.Contains(reply.Text, "Спасибо, Ivan Petrov!") {
		t.Fatalf("confirmation must address the user: %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "https://example.com/contract.html") ||
		!strings.Contains(reply.Text, "https://example.com/privacy.html") {
		t.Fatalf("confirmation must link both documents: %q", reply.Text)
	}
	if len(reply.Buttons) != 1 || reply.Buttons[0].Data != AgreeCallbackData {
		t.Fatalf("expected single agreement button, got %+v", reply.Buttons)
	}
}

func TestContractConfirm_CompletesFlow(t *testing.T) {
	svc, db, u := newContractSvc(t)
	svc.Now = func() time.Time { return time.Date(2006, time.January, 2, 15, 4, 5, 0, time.UTC) }

	if _, err := svc.Start(context.Background(), u); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.HandleText(context.Background(), u, "Ivan Petrov"); err != nil {
		t.Fatalf("name: %v", err)
	}
	if _, err := svc.HandleText(context.Background(), u, "4510 123456"); err != nil {
		t.Fatalf("passport: %v", err)
	}
	conv := flowConversation(t, db, u.ID)

	reply, err := svc.Confirm(context.Background(), u, AgreeCallbackData)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !reply.EditInPlace || !reply.Markdown {
		t.Fatalf("success must rewrite the confirmation message: %+v", reply)
	}
	for _, want := range []string{"Договор успешно заключён", "Ivan Petrov", "4510 123456", "2 января 2006 года"} {
		if !strings.Contains(reply.Text, want) {
			t.Fatalf("success text missing %q: %q", want, reply.Text)
		}
	}

	got, err := repo.GetConversation(context.Background(), db, conv.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.StatusCompleted || got.ClosedAt == nil {
		t.Fatalf("flow conversation must be completed with closed_at: %+v", got)
	}
	if svc.Active(u.TelegramID) {
		t.Fatalf("session must end after completion")
	}
}

func TestContractConfirm_ExpiredAndUnknownPayload(t *testing.T) {
	svc, _, u := newContractSvc(t)

	// No session at all.
	reply, err := svc.Confirm(context.Background(), u, AgreeCallbackData)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !strings.Contains(reply.Text, "Сессия истекла") {
		t.Fatalf("expected expiry toast, got %q", reply.Text)
	}

	// Active session but a foreign payload.
	if _, err := svc.Start(context.Background(), u); err != nil {
		t.Fatalf("Start: %v", err)
	}
	reply, err = svc.Confirm(context.Background(), u, "contract_something_else")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !strings.Contains(reply.Text, "Сессия истекла") {
		t.Fatalf("unknown payload must be treated as expired, got %q", reply.Text)
	}
	if !svc.Active(u.TelegramID) {
		t.Fatalf("unknown payload must not consume the session")
	}
}

func TestContractConfirm_IncompleteFormKeepsSession(t *testing.T) {
	svc, db, u := newContractSvc(t)

	conv, err := repo.CreateConversation(context.Background(), db, u.ID, "Contract: Ivan", domain.StatusContractProcess)
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	// A session that somehow reached the agreement step with no data.
	svc.Sessions.Begin(u.TelegramID, session.State{ConversationID: conv.ID, Step: session.StepAgreement})

	reply, err := svc.Confirm(context.Background(), u, AgreeCallbackData)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !reply.EditInPlace || !strings.Contains(reply.Text, "Данные не найдены") {
		t.Fatalf("expected data-missing rewrite, got %+v", reply)
	}
	if !svc.Active(u.TelegramID) {
		t.Fatalf("incomplete form must keep the session")
	}

	got, _ := repo.GetConversation(context.Background(), db, conv.ID)
	if got.Status != domain.StatusContractProcess {
		t.Fatalf("conversation must stay in contract_process, got %s", got.Status)
	}
}

func TestContractHandleText_AgreementStepRejectsFreeText(t *testing.T) {
	svc, _, u := newContractSvc(t)
	if _, err := svc.Start(context.Background(), u); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.HandleText(context.Background(), u, "Ivan Petrov"); err != nil {
		t.Fatalf("name: %v", err)
	}
	if _, err := svc.HandleText(context.Background(), u, "4510 123456"); err != nil {
		t.Fatalf("passport: %v", err)
	}

	reply, err := svc.HandleText(context.Background(), u, "I agree")
	if err != nil {
		t.Fatalf("free text in agreement step: %v", err)
	}
	if !strings.Contains(reply.Text, "/contract") {
		t.Fatalf("expected restart instruction, got %q", reply.Text)
	}
	if !svc.Active(u.TelegramID) {
		t.Fatalf("free text must not consume the session")
	}
}

func TestContractFlow_TranscriptIsPersisted(t *testing.T) {
	svc, db, u := newContractSvc(t)
	if _, err := svc.Start(context.Background(), u); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.HandleText(context.Background(), u, "Ivan Petrov"); err != nil {
		t.Fatalf("name: %v", err)
	}
	if _, err := svc.HandleText(context.Background(), u, "4510 123456"); err != nil {
		t.Fatalf("passport: %v", err)
	}
	conv := flowConversation(t, db, u.ID)
	if _, err := svc.Confirm(context.Background(), u, AgreeCallbackData); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	msgs, err := repo.ListMessages(db, conv.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// start marker, welcome, name, passport prompt, passport, confirmation,
	// success summary.
	if len(msgs) != 7 {
		t.Fatalf("expected full transcript of 7 messages, got %d: %+v", len(msgs), msgs)
	}
	var users, bots int
	for _, m := range msgs {
		switch m.SenderType {
		case domain.SenderUser:
			users++
		case domain.SenderBot:
			bots++
		default:
			t.Fatalf("unexpected sender in flow transcript: %s", m.SenderType)
		}
	}
	if users != 3 || bots != 4 {
		t.Fatalf("expected 3 user / 4 bot messages, got %d/%d", users, bots)
	}
}
