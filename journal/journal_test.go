package journal

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// OpenMemoryDB opens an in-memory journal database. MaxOpenConns is pinned
// to 1 because every new connection to ":memory:" is a fresh database.
func OpenMemoryDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("journal.OpenMemoryDB: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndQuery(t *testing.T) {
	db := OpenMemoryDB(t)
	j := New(db)

	j.Record(Entry{Kind: KindMessageOut, Subject: "NATIVE_READY"})
	j.Record(Entry{Kind: KindMessageIn, Subject: "APP_READY", Nav: 3})
	j.Record(Entry{Kind: KindOverlay, Subject: "app_ready", Nav: 3})

	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := j.Query(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries: got %d, want 3", len(entries))
	}
	for _, e := range entries {
		if e.EntryID == "" {
			t.Error("entry without ID")
		}
		if e.Timestamp.IsZero() {
			t.Error("entry without timestamp")
		}
	}
}

func TestQueryFilter(t *testing.T) {
	db := OpenMemoryDB(t)
	j := New(db)

	j.Record(Entry{Kind: KindMessageIn, Subject: "APP_READY", Nav: 1})
	j.Record(Entry{Kind: KindOverlay, Subject: "fallback_timer", Nav: 1})
	j.Record(Entry{Kind: KindOverlay, Subject: "app_ready", Nav: 2})
	j.Close()

	entries, err := j.Query(context.Background(), Filter{Kind: KindOverlay})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("overlay entries: got %d, want 2", len(entries))
	}

	entries, err = j.Query(context.Background(), Filter{Kind: KindOverlay, Subject: "fallback_timer"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].Nav != 1 {
		t.Fatalf("filtered entries: got %+v", entries)
	}
}

func TestCleanup(t *testing.T) {
	db := OpenMemoryDB(t)
	j := New(db)

	old := Entry{Kind: KindMessageIn, Subject: "PAGE_LOADED", Timestamp: time.Now().Add(-48 * time.Hour)}
	j.Record(old)
	j.Record(Entry{Kind: KindMessageIn, Subject: "PAGE_LOADED"})
	j.Close()

	removed, err := j.Cleanup(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed: got %d, want 1", removed)
	}

	entries, err := j.Query(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("remaining entries: got %d, want 1", len(entries))
	}
}
