package session

import (
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)

	sess, manager := sampleSession(t, store)
	sess.AddEvent(Event{Type: EventRunStart})
	sess.AddEvent(Event{
		Type:      EventAssistant,
		Round:     1,
		Content:   "exploring the schema",
		Model:     "gemini-2.0-flash-001",
		TokensIn:  120,
		TokensOut: 40,
	})
	sess.AddEvent(Event{
		Type:    EventToolResult,
		Round:   1,
		Tool:    "list_tables",
		Args:    map[string]interface{}{"reasoning": "see what exists"},
		Content: "users\norders",
	})
	sess.Status = StatusComplete
	sess.Result = "42"
	if err := manager.Update(sess); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	loaded, err := manager.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded.Status != StatusComplete || loaded.Result != "42" {
		t.Errorf("session fields lost: status=%s result=%q", loaded.Status, loaded.Result)
	}
	if len(loaded.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(loaded.Events))
	}
	if loaded.Events[1].TokensIn != 120 || loaded.Events[1].TokensOut != 40 {
		t.Errorf("token counts lost: %+v", loaded.Events[1])
	}
	if loaded.Events[2].Args["reasoning"] != "see what exists" {
		t.Errorf("args lost: %+v", loaded.Events[2].Args)
	}
}

func TestSQLiteUpsertReplacesEvents(t *testing.T) {
	store := newTestSQLiteStore(t)

	sess, manager := sampleSession(t, store)
	sess.AddEvent(Event{Type: EventRunStart})
	if err := manager.Update(sess); err != nil {
		t.Fatalf("first Update failed: %v", err)
	}

	sess.AddEvent(Event{Type: EventRoundStart, Round: 1})
	if err := manager.Update(sess); err != nil {
		t.Fatalf("second Update failed: %v", err)
	}

	loaded, err := manager.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	// Events are rewritten on save, not appended twice.
	if len(loaded.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(loaded.Events))
	}
}

func TestSQLiteLoadMissing(t *testing.T) {
	store := newTestSQLiteStore(t)
	if _, err := store.Load("no-such-id"); err == nil {
		t.Error("expected an error for an unknown session")
	}
}
