package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func testAuditStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := testAuditStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	entries := []Entry{
		{SessionID: "s1", User: "alice", Tool: "notion_search", Decision: DecisionAllowed, CreatedAt: base},
		{SessionID: "s1", User: "alice", Tool: "notion_get_page", Resource: "p1", Decision: DecisionDenied, CreatedAt: base.Add(time.Second)},
		{SessionID: "s2", User: "bob", Tool: "notion_query_database", Resource: "db1", Decision: DecisionError, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := s.Record(e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	// Newest first.
	if got[0].Tool != "notion_query_database" || got[0].Decision != DecisionError {
		t.Errorf("unexpected newest entry: %+v", got[0])
	}
	if got[2].Tool != "notion_search" {
		t.Errorf("unexpected oldest entry: %+v", got[2])
	}
	for _, e := range got {
		if e.ID == "" {
			t.Error("entry id should be generated")
		}
	}
}

func TestRecentLimit(t *testing.T) {
	s := testAuditStore(t)
	for i := 0; i < 5; i++ {
		if err := s.Record(Entry{SessionID: "s", User: "u", Tool: "notion_search", Decision: DecisionAllowed}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := s.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 entries, got %d", len(got))
	}
}

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	if err := s.Record(Entry{Tool: "notion_search"}); err != nil {
		t.Errorf("nil store record should no-op, got %v", err)
	}
	if entries, err := s.Recent(5); err != nil || entries != nil {
		t.Errorf("nil store recent should no-op, got %v %v", entries, err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil store close should no-op, got %v", err)
	}
}
