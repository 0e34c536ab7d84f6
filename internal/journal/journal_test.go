package journal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "death_history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	session := NewSessionID()
	base := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		id, err := j.Record(ctx, Entry{
			Session:    session,
			Count:      i,
			Phrase:     "YOU DIED",
			Text:       "YOU DIED",
			Exact:      i != 2,
			Similarity: 1,
			DetectedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if id != int64(i) {
			t.Errorf("id = %d, want %d", id, i)
		}
	}

	entries, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Count != 3 || entries[1].Count != 2 {
		t.Errorf("order = %d,%d, want 3,2", entries[0].Count, entries[1].Count)
	}
	if entries[1].Exact {
		t.Error("entry 2 should be a fuzzy match")
	}
	if !entries[0].DetectedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("DetectedAt = %v", entries[0].DetectedAt)
	}
	if entries[0].Session != session {
		t.Errorf("Session = %q, want %q", entries[0].Session, session)
	}
}

func TestRecentEmpty(t *testing.T) {
	j := openTemp(t)

	entries, err := j.Recent(context.Background(), 10)
	if err != nil || len(entries) != 0 {
		t.Errorf("Recent() = (%v, %v), want empty", entries, err)
	}
	if entries, _ := j.Recent(context.Background(), 0); entries != nil {
		t.Error("limit 0 should return nil")
	}
}

func TestSessionCount(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	a, b := NewSessionID(), NewSessionID()

	for _, s := range []string{a, a, b} {
		if _, err := j.Record(ctx, Entry{Session: s, Count: 1, Phrase: "YOU DIED", Text: "YOU DIED"}); err != nil {
			t.Fatal(err)
		}
	}

	if n, err := j.SessionCount(ctx, a); err != nil || n != 2 {
		t.Errorf("SessionCount(a) = (%d, %v), want 2", n, err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "death_history.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Record(context.Background(), Entry{Session: "s", Count: 1, Phrase: "YOU DIED", Text: "YOU DIED"}); err != nil {
		t.Fatal(err)
	}
	j.Close()

	j, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	entries, _ := j.Recent(context.Background(), 5)
	if len(entries) != 1 {
		t.Errorf("got %d entries after reopen, want 1", len(entries))
	}
}

func TestRecentAfterClose(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "death_history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	j.Close()

	_, err = j.Recent(context.Background(), 5)
	if !apperrors.IsCode(err, apperrors.CodeJournalFailed) {
		t.Fatalf("Recent() error = %v, want JOURNAL_FAILED", err)
	}
	if !strings.Contains(err.Error(), "query 5 recent deaths") {
		t.Errorf("Recent() error = %q, want the limit in the message", err)
	}
}
