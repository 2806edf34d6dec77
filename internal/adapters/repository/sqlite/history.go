// Package sqlite persists run history with the pure-Go modernc SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/pkg/serialization"
	_ "modernc.org/sqlite"
)

// ErrNilDB is returned by operations on a store without a database.
var ErrNilDB = errors.New("sqlite: nil database")

const columns = "id, workflow, status, error, steps, bound_exceeded, started_at, finished_at, payload"

// Store implements history.Store for SQLite.
type Store struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
}

// Open opens (or creates) the database at dsn and ensures the schema exists.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, dsn string, serializer *serialization.Serializer) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	s := NewStore(db, serializer)
	if err := s.CreateTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database. A nil serializer means the default.
func NewStore(db *sql.DB, serializer *serialization.Serializer) *Store {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &Store{db: db, serializer: serializer, tableName: "runs"}
}

// WithTableName overrides the table name. Names other than
// [A-Za-z0-9_]+ are ignored.
func (s *Store) WithTableName(name string) *Store {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

// Save inserts or replaces a record.
func (s *Store) Save(ctx context.Context, r *history.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if s.db == nil {
		return ErrNilDB
	}

	payload, err := s.serializer.Serialize(r.Payload())
	if err != nil {
		return fmt.Errorf("failed to serialize run payload: %w", err)
	}

	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.tableName, columns)
	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.Workflow, string(r.Status), r.Error, r.Steps, r.BoundExceeded,
		r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(), payload)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load retrieves a record by ID.
func (s *Store) Load(ctx context.Context, id string) (*history.Record, error) {
	if id == "" {
		return nil, history.ErrInvalidRecordID
	}
	if s.db == nil {
		return nil, ErrNilDB
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", columns, s.tableName)
	r, err := s.scan(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, history.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return r, nil
}

// List returns records matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter history.Filter) ([]*history.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, ErrNilDB
	}

	query, args := s.buildListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	records := []*history.Record{}
	for rows.Next() {
		r, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return history.ErrInvalidRecordID
	}
	if s.db == nil {
		return ErrNilDB
	}

	result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return history.ErrRecordNotFound
	}
	return nil
}

// CreateTables creates the runs table and its indexes.
func (s *Store) CreateTables(ctx context.Context) error {
	if s.db == nil {
		return ErrNilDB
	}
	t := s.tableName
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			workflow TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			steps INTEGER NOT NULL,
			bound_exceeded INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_workflow ON %[1]s (workflow);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_started_at ON %[1]s (started_at);
	`, t)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(row scanner) (*history.Record, error) {
	var (
		r                 history.Record
		status            string
		started, finished int64
		payload           []byte
	)
	if err := row.Scan(&r.ID, &r.Workflow, &status, &r.Error, &r.Steps, &r.BoundExceeded, &started, &finished, &payload); err != nil {
		return nil, err
	}
	r.Status = history.Status(status)
	r.StartedAt = time.Unix(0, started).UTC()
	r.FinishedAt = time.Unix(0, finished).UTC()

	var p history.Payload
	if err := s.serializer.Deserialize(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to deserialize run payload: %w", err)
	}
	r.SetPayload(p)
	return &r, nil
}

func (s *Store) buildListQuery(filter history.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.Workflow != "" {
		where = append(where, "workflow = ?")
		args = append(args, filter.Workflow)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		where = append(where, "started_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Before != nil {
		where = append(where, "started_at < ?")
		args = append(args, filter.Before.UnixNano())
	}

	query := fmt.Sprintf("SELECT %s FROM %s", columns, s.tableName)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id ASC"

	// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)
	return query, args
}

var _ history.Store = (*Store)(nil)
