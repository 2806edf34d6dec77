// Package postgres persists run history in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/pkg/serialization"
)

// ErrNilPool is returned by operations on a store without a pool.
var ErrNilPool = errors.New("postgres: nil pool")

const columns = "id, workflow, status, error, steps, bound_exceeded, started_at, finished_at, payload"

// Store implements history.Store for PostgreSQL
type Store struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// Connect opens a pool for dsn and ensures the schema exists.
func Connect(ctx context.Context, dsn string, serializer *serialization.Serializer) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	s := NewStore(pool, serializer)
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing pool. A nil serializer means the default.
func NewStore(pool *pgxpool.Pool, serializer *serialization.Serializer) *Store {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &Store{pool: pool, serializer: serializer, tableName: "runs"}
}

// WithTableName overrides the table name. Names other than
// [A-Za-z0-9_]+ are ignored.
func (s *Store) WithTableName(name string) *Store {
	if name != "" && strings.Trim(name, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_") == "" {
		s.tableName = name
	}
	return s
}

// Save stores a record in PostgreSQL
func (s *Store) Save(ctx context.Context, r *history.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if s.pool == nil {
		return ErrNilPool
	}

	payload, err := s.serializer.Serialize(r.Payload())
	if err != nil {
		return fmt.Errorf("failed to serialize run payload: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			workflow = EXCLUDED.workflow,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			steps = EXCLUDED.steps,
			bound_exceeded = EXCLUDED.bound_exceeded,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			payload = EXCLUDED.payload
	`, s.tableName, columns)

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.Workflow, string(r.Status), r.Error, r.Steps, r.BoundExceeded,
		r.StartedAt, r.FinishedAt, payload)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load retrieves a record by ID
func (s *Store) Load(ctx context.Context, id string) (*history.Record, error) {
	if id == "" {
		return nil, history.ErrInvalidRecordID
	}
	if s.pool == nil {
		return nil, ErrNilPool
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", columns, s.tableName)
	r, err := s.scan(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, history.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return r, nil
}

// List retrieves records based on filter criteria, newest first
func (s *Store) List(ctx context.Context, filter history.Filter) ([]*history.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if s.pool == nil {
		return nil, ErrNilPool
	}

	query, args := s.buildListQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
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

// Delete removes a record by ID
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return history.ErrInvalidRecordID
	}
	if s.pool == nil {
		return ErrNilPool
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return history.ErrRecordNotFound
	}
	return nil
}

// CreateTables creates the runs table and its indexes
func (s *Store) CreateTables(ctx context.Context) error {
	if s.pool == nil {
		return ErrNilPool
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id VARCHAR(255) PRIMARY KEY,
			workflow VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			steps INTEGER NOT NULL,
			bound_exceeded BOOLEAN NOT NULL DEFAULT FALSE,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			payload BYTEA NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_workflow ON %[1]s (workflow);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_started_at ON %[1]s (started_at);
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the database connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) scan(row pgx.Row) (*history.Record, error) {
	var (
		r       history.Record
		status  string
		payload []byte
	)
	err := row.Scan(&r.ID, &r.Workflow, &status, &r.Error, &r.Steps, &r.BoundExceeded, &r.StartedAt, &r.FinishedAt, &payload)
	if err != nil {
		return nil, err
	}
	r.Status = history.Status(status)
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

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
	arg := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.Workflow != "" {
		arg("workflow = $%d", filter.Workflow)
	}
	if filter.Status != "" {
		arg("status = $%d", string(filter.Status))
	}
	if filter.Since != nil {
		arg("started_at >= $%d", *filter.Since)
	}
	if filter.Before != nil {
		arg("started_at < $%d", *filter.Before)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", columns, s.tableName)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id ASC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

var _ history.Store = (*Store)(nil)
