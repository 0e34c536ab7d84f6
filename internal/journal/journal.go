// Package journal keeps an append-only SQLite history of counted deaths.
// The counter file stays the source of truth for the count.
package journal

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
)

// Entry is one counted death.
type Entry struct {
	ID            int64
	Session       string
	Count         int // counter value after this death
	Phrase        string
	Text          string
	Exact         bool
	Similarity    float64
	RawPath       string
	ProcessedPath string
	DetectedAt    time.Time
}

// Journal wraps the SQLite connection.
type Journal struct {
	conn *sql.DB
	mu   sync.Mutex
}

// NewSessionID returns an id grouping the deaths of one monitoring session.
func NewSessionID() string { return uuid.NewString() }

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "open journal").WithMetadata("path", path)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	j := &Journal{conn: conn}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "migrate journal").WithMetadata("path", path)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deaths (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		count INTEGER NOT NULL,
		phrase TEXT NOT NULL,
		text TEXT NOT NULL,
		exact INTEGER NOT NULL DEFAULT 0,
		similarity REAL DEFAULT 0,
		raw_path TEXT DEFAULT '',
		processed_path TEXT DEFAULT '',
		detected_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deaths_session ON deaths(session);
	CREATE INDEX IF NOT EXISTS idx_deaths_detected_at ON deaths(detected_at);
	`
	_, err := j.conn.Exec(schema)
	return err
}

// Record appends e and returns its id. A zero DetectedAt is set to now.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if e.DetectedAt.IsZero() {
		e.DetectedAt = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	res, err := j.conn.ExecContext(ctx, `
		INSERT INTO deaths (session, count, phrase, text, exact, similarity, raw_path, processed_path, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Session, e.Count, e.Phrase, e.Text, e.Exact, e.Similarity, e.RawPath, e.ProcessedPath, e.DetectedAt.UTC())
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeJournalFailed, "record death")
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.conn.QueryContext(ctx, `
		SELECT id, session, count, phrase, text, exact, similarity, raw_path, processed_path, detected_at
		FROM deaths ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeJournalFailed, "query %d recent deaths", limit)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Session, &e.Count, &e.Phrase, &e.Text, &e.Exact,
			&e.Similarity, &e.RawPath, &e.ProcessedPath, &e.DetectedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "scan death")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeJournalFailed, "iterate deaths")
	}
	return entries, nil
}

// SessionCount returns how many deaths were recorded in session.
func (j *Journal) SessionCount(ctx context.Context, session string) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var n int
	err := j.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM deaths WHERE session = ?`, session).Scan(&n)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeJournalFailed, "count session deaths")
	}
	return n, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.conn.Close()
}
