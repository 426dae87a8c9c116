// Package audit persists a durable record of every tool dispatch and its
// authorization outcome.
package audit

import (
	"crypto/rand"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	apperrors "github.com/pagegate/pagegate/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// Decision classifies the outcome of one tool dispatch.
type Decision string

const (
	DecisionAllowed Decision = "allowed"
	DecisionDenied  Decision = "denied"
	DecisionError   Decision = "error"
)

// Entry is one audit record. Resource is the page or database id the call
// targeted, empty for search.
type Entry struct {
	ID        string
	SessionID string
	User      string
	Tool      string
	Resource  string
	Decision  Decision
	CreatedAt time.Time
}

// Store writes audit entries to SQLite. A nil store is a no-op so auditing
// can be disabled without branching at every call site.
type Store struct {
	db *sql.DB
}

// Open creates or opens the audit database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "create audit directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "open audit database")
	}

	// One writer at a time; WAL keeps readers unblocked.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "configure audit database")
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "apply audit schema")
	}

	return &Store{db: db}, nil
}

// Record appends one entry. Missing id and timestamp are filled in.
func (s *Store) Record(entry Entry) error {
	if s == nil || s.db == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = newEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO audit_entries (id, session_id, user_name, tool, resource, decision, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SessionID, entry.User, entry.Tool, entry.Resource, string(entry.Decision), entry.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "record audit entry")
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, session_id, user_name, tool, resource, decision, created_at
		 FROM audit_entries ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "query audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var decision string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.User, &e.Tool, &e.Resource, &decision, &e.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "scan audit entry")
		}
		e.Decision = Decision(decision)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "iterate audit entries")
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func newEntryID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	if err != nil {
		// rand.Reader failing means the process cannot do anything useful
		panic(fmt.Sprintf("generate audit entry id: %v", err))
	}
	return id.String()
}
