package session

import (
	"sync"
	"testing"
)

func TestStore_BeginActiveSnapshot(t *testing.T) {
	s := NewStore()

	if s.Active(1) {
		t.Fatalf("fresh store must have no sessions")
	}
	if _, ok := s.Snapshot(1); ok {
		t.Fatalf("Snapshot must miss on empty store")
	}

	s.Begin(1, State{ConversationID: "c1", Step: StepName})
	if !s.Active(1) {
		t.Fatalf("expected session after Begin")
	}
	st, ok := s.Snapshot(1)
	if !ok || st.ConversationID != "c1" || st.Step != StepName {
		t.Fatalf("unexpected snapshot: %+v ok=%v", st, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 live session, got %d", s.Len())
	}
}

func TestStore_BeginReplacesExistingForm(t *testing.T) {
	s := NewStore()
	s.Begin(1, State{ConversationID: "old", Step: StepAgreement, FullName: "X Y", Passport: "4510 123456"})
	s.Begin(1, State{ConversationID: "new", Step: StepName})

	st, ok := s.Snapshot(1)
	if !ok {
		t.Fatalf("session lost after re-Begin")
	}
	if st.ConversationID != "new" || st.Step != StepName || st.FullName != "" || st.Passport != "" {
		t.Fatalf("re-Begin must discard the old form: %+v", st)
	}
}

func TestStore_Update_MutatesAndKeeps(t *testing.T) {
	s := NewStore()
	s.Begin(7, State{ConversationID: "c", Step: StepName})

	err := s.Update(7, func(st *State) Action {
		st.FullName = "Ivan Petrov"
		st.Step = StepPassport
		return Keep
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	st, _ := s.Snapshot(7)
	if st.FullName != "Ivan Petrov" || st.Step != StepPassport {
		t.Fatalf("mutation lost: %+v", st)
	}
}

func TestStore_Update_EndRemovesSession(t *testing.T) {
	s := NewStore()
	s.Begin(7, State{ConversationID: "c"})

	if err := s.Update(7, func(*State) Action { return End }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.Active(7) || s.Len() != 0 {
		t.Fatalf("session must be gone after End")
	}
	if err := s.Update(7, func(*State) Action { return Keep }); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after End, got %v", err)
	}
}

func TestStore_Update_NotFound(t *testing.T) {
	s := NewStore()
	if err := s.Update(99, func(*State) Action { return Keep }); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_End_OutsideUpdate(t *testing.T) {
	s := NewStore()
	s.Begin(3, State{})
	s.End(3)
	if s.Active(3) {
		t.Fatalf("End must remove the session")
	}
	// Ending twice is harmless.
	s.End(3)
}

func TestStore_ConcurrentUpdates_AreSerialized(t *testing.T) {
	s := NewStore()
	s.Begin(1, State{})

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = s.Update(1, func(st *State) Action {
				// Read-modify-write on the shared form: lost updates would
				// show up as a short name chain.
				st.FullName += "x"
				return Keep
			})
		}()
	}
	wg.Wait()

	st, ok := s.Snapshot(1)
	if !ok {
		t.Fatalf("session lost")
	}
	if len(st.FullName) != n {
		t.Fatalf("expected %d serialized appends, got %d", n, len(st.FullName))
	}
}

func TestStore_ConcurrentEndAndUpdate(t *testing.T) {
	s := NewStore()
	s.Begin(1, State{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.End(1)
	}()
	go func() {
		defer wg.Done()
		// Either order is fine; the call must not panic or corrupt state.
		_ = s.Update(1, func(st *State) Action { return Keep })
	}()
	wg.Wait()

	if s.Active(1) {
		t.Fatalf("session must be gone once End ran")
	}
}

func TestStep_String(t *testing.T) {
	cases := map[Step]string{
		StepName:      "awaiting_name",
		StepPassport:  "awaiting_passport",
		StepAgreement: "awaiting_agreement",
		Step(42):      "unknown",
	}
	for step, want := range cases {
		if got := step.String(); got != want {
			t.Fatalf("Step(%d).String() = %q, want %q", step, got, want)
		}
	}
}
