package publish

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one journaled publish attempt.
type Entry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	OK        bool      `json:"ok"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal persists publish outcomes in an embedded database so operational
// tooling can alert on persistent push failures without blocking the
// primary operation's success signal.
type Journal struct {
	db *sql.DB
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS publish_log (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	message    TEXT NOT NULL,
	ok         INTEGER NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
`

// OpenJournal opens (creating if necessary) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Record appends one publish outcome and returns the journaled entry.
func (j *Journal) Record(ctx context.Context, message string, res Result) (Entry, error) {
	e := Entry{
		ID:        uuid.NewString(),
		Message:   message,
		OK:        res.OK,
		Detail:    res.Detail,
		CreatedAt: time.Now().UTC(),
	}
	// Timestamps round-trip as RFC 3339 text; the driver has no native
	// time.Time column type.
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO publish_log (id, message, ok, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Message, boolToInt(e.OK), e.Detail, e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Entry{}, fmt.Errorf("record publish: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, message, ok, detail, created_at FROM publish_log ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list publishes: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ok int
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Message, &ok, &e.Detail, &createdAt); err != nil {
			return nil, err
		}
		e.OK = ok != 0
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// FailureStreak returns how many of the most recent attempts failed in a
// row. Zero means the latest publish succeeded (or the journal is empty).
func (j *Journal) FailureStreak(ctx context.Context) (int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT ok FROM publish_log ORDER BY seq DESC`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	streak := 0
	for rows.Next() {
		var ok int
		if err := rows.Scan(&ok); err != nil {
			return 0, err
		}
		if ok != 0 {
			break
		}
		streak++
	}
	return streak, rows.Err()
}

// Journaled decorates a Publisher so every synchronous attempt lands in
// the journal too, keeping one observable history across sync and queued
// publishes.
type Journaled struct {
	Pub     Publisher
	Journal *Journal
}

func (p Journaled) Publish(ctx context.Context, message string) Result {
	res := p.Pub.Publish(ctx, message)
	if p.Journal != nil {
		_, _ = p.Journal.Record(ctx, message, res)
	}
	return res
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
