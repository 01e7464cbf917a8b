package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, max int) *Store {
	t.Helper()
	st, err := NewStore(t.TempDir(), max)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return st
}

func TestCreateSaveLoadRoundTrip(t *testing.T) {
	st := newTestStore(t, 0)

	s := st.Create()
	if s.ID == "" {
		t.Fatal("expected generated session id")
	}
	s.AddMessage(Message{Role: RoleUser, Content: "hello"})
	s.AddMessage(Message{Role: RoleAssistant, Content: "hi"})
	if err := st.Save(s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := st.Load(s.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded.Messages))
	}
	if loaded.Messages[0].Content != "hello" {
		t.Errorf("unexpected first message: %+v", loaded.Messages[0])
	}
}

func TestLoadMissingSessionIsNotFound(t *testing.T) {
	st := newTestStore(t, 0)
	_, err := st.Load("no-such-id")
	if err == nil {
		t.Fatal("expected error for missing session")
	}
}

func TestSaveUpdatesCurrentPointer(t *testing.T) {
	st := newTestStore(t, 0)

	s := st.Create()
	s.AddMessage(Message{Role: RoleUser, Content: "hi"})
	if err := st.Save(s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got := st.CurrentID(); got != s.ID {
		t.Errorf("CurrentID = %q, want %q", got, s.ID)
	}

	resumed, err := st.LoadCurrent()
	if err != nil {
		t.Fatalf("LoadCurrent failed: %v", err)
	}
	if resumed.ID != s.ID {
		t.Errorf("resumed wrong session: %s", resumed.ID)
	}
}

func TestListOrdersMostRecentFirst(t *testing.T) {
	st := newTestStore(t, 0)

	older := st.Create()
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	older.AddMessage(Message{Role: RoleUser, Content: "old"})
	if err := st.Save(older); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	newer := st.Create()
	newer.AddMessage(Message{Role: RoleUser, Content: "new"})
	newer.AddMessage(Message{Role: RoleUser, Content: "again"})
	if err := st.Save(newer); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	summaries, err := st.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != newer.ID {
		t.Errorf("expected newest session first, got %s", summaries[0].ID)
	}
	if summaries[1].UserMessages != 1 {
		t.Errorf("expected 1 user message in older session, got %d", summaries[1].UserMessages)
	}
}

func TestDeleteClearsCurrentPointer(t *testing.T) {
	st := newTestStore(t, 0)

	s := st.Create()
	s.AddMessage(Message{Role: RoleUser, Content: "hi"})
	if err := st.Save(s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := st.Delete(s.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := st.CurrentID(); got != "" {
		t.Errorf("expected empty current pointer after delete, got %q", got)
	}
	if err := st.Delete(s.ID); err == nil {
		t.Error("expected error deleting missing session")
	}
}

func TestClearRemovesEverything(t *testing.T) {
	st := newTestStore(t, 0)
	for i := 0; i < 3; i++ {
		s := st.Create()
		s.AddMessage(Message{Role: RoleUser, Content: "hi"})
		if err := st.Save(s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	count, err := st.Clear()
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 sessions cleared, got %d", count)
	}
	summaries, err := st.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected empty store after Clear, got %d sessions", len(summaries))
	}
}

func TestTruncateKeepsPinnedSystemMessage(t *testing.T) {
	s := &Session{}
	s.AddMessage(Message{Role: RoleSystem, Content: "system prompt"})
	for i := 0; i < 10; i++ {
		s.AddMessage(Message{Role: RoleUser, Content: "msg"})
	}

	s.Truncate(5)
	if len(s.Messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(s.Messages))
	}
	if s.Messages[0].Role != RoleSystem {
		t.Errorf("expected pinned system message first, got role %q", s.Messages[0].Role)
	}
}

func TestTruncateDropsToolCallPairTogether(t *testing.T) {
	s := &Session{}
	s.AddMessage(Message{Role: RoleSystem, Content: "system prompt"})
	s.AddMessage(Message{Role: RoleUser, Content: "do something"})
	s.AddMessage(Message{
		Role:      RoleAssistant,
		ToolCalls: []ToolCall{{ID: "call-1", Name: "read_file"}},
	})
	s.AddMessage(Message{
		Role:      RoleTool,
		Content:   `{"ok":true}`,
		ToolCalls: []ToolCall{{ID: "call-1", Name: "read_file"}},
	})
	s.AddMessage(Message{Role: RoleAssistant, Content: "done"})
	s.AddMessage(Message{Role: RoleUser, Content: "next"})
	s.AddMessage(Message{Role: RoleAssistant, Content: "sure"})

	// The cap forces dropping past the assistant tool-call message; its
	// paired result must go with it rather than surviving alone.
	s.Truncate(4)

	for _, m := range s.Messages {
		if m.Role == RoleTool {
			t.Fatalf("orphaned tool result survived truncation: %+v", m)
		}
		if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
			t.Fatalf("tool call without result survived truncation: %+v", m)
		}
	}
	if s.Messages[0].Role != RoleSystem {
		t.Errorf("pinned system message was dropped")
	}
}

func TestTruncateNoopUnderLimit(t *testing.T) {
	s := &Session{}
	s.AddMessage(Message{Role: RoleUser, Content: "hi"})
	s.Truncate(10)
	if len(s.Messages) != 1 {
		t.Errorf("expected untouched history, got %d messages", len(s.Messages))
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir, 0)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	s := st.Create()
	s.AddMessage(Message{Role: RoleUser, Content: "hi"})
	if err := st.Save(s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
	if _, err := os.Stat(filepath.Join(dir, s.ID+".json")); err != nil {
		t.Errorf("session file missing: %v", err)
	}
}
