package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lexiqai/session-recorder/internal/catalog"
)

const schema = `
	CREATE TABLE IF NOT EXISTS records (
		name TEXT PRIMARY KEY,
		sessionId TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		audioLink TEXT NOT NULL DEFAULT '',
		transcriptLink TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		summaryUrl TEXT NOT NULL DEFAULT '',
		createdAt REAL NOT NULL,
		updatedAt REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_created ON records(createdAt);
`

// Journal persists catalog records in a local SQLite database
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path. ":memory:" keeps it in memory.
func Open(path string) (*Journal, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create journal directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps ":memory:" a single database and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Ping checks the database is reachable
func (j *Journal) Ping() error {
	return j.db.Ping()
}

// Save inserts or replaces a record
func (j *Journal) Save(r catalog.Record) error {
	_, err := j.db.Exec(`
		INSERT INTO records (name, sessionId, status, message, audioLink, transcriptLink, summary, summaryUrl, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			sessionId = excluded.sessionId,
			status = excluded.status,
			message = excluded.message,
			audioLink = excluded.audioLink,
			transcriptLink = excluded.transcriptLink,
			summary = excluded.summary,
			summaryUrl = excluded.summaryUrl,
			updatedAt = excluded.updatedAt
	`, r.Name, r.SessionID, string(r.Status), r.Message, r.AudioLink, r.TranscriptLink, r.Summary, r.SummaryURL,
		unixFromTime(r.CreatedAt), unixFromTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save record %s: %w", r.Name, err)
	}
	return nil
}

// Load returns every record, oldest first
func (j *Journal) Load() ([]catalog.Record, error) {
	rows, err := j.db.Query(`
		SELECT `+recordColumns+`
		FROM records
		ORDER BY createdAt ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []catalog.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Get returns a single record, or nil if it does not exist
func (j *Journal) Get(name string) (*catalog.Record, error) {
	row := j.db.QueryRow(`
		SELECT `+recordColumns+`
		FROM records
		WHERE name = ?
	`, name)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const recordColumns = "name, sessionId, status, message, audioLink, transcriptLink, summary, summaryUrl, createdAt, updatedAt"

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row selected with recordColumns. Statuses written in
// another case are normalized.
func scanRecord(row scanner) (catalog.Record, error) {
	var r catalog.Record
	var status string
	var createdAt, updatedAt float64
	if err := row.Scan(&r.Name, &r.SessionID, &status, &r.Message, &r.AudioLink,
		&r.TranscriptLink, &r.Summary, &r.SummaryURL, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan record: %w", err)
	}
	r.Status = catalog.ParseStatus(status)
	r.CreatedAt = timeFromUnix(createdAt)
	r.UpdatedAt = timeFromUnix(updatedAt)
	return r, nil
}

func unixFromTime(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
