// Package history records inference outcomes so results can be replayed by ID.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no record has the requested ID
var ErrNotFound = errors.New("prediction not found")

// MaxRecent caps the number of records Recent returns
const MaxRecent = 500

var schema = []string{`
CREATE TABLE IF NOT EXISTS predictions (
	id             TEXT PRIMARY KEY,
	created_at     TIMESTAMP NOT NULL,
	bedrooms       TEXT NOT NULL,
	builder        TEXT NOT NULL,
	locality       TEXT NOT NULL,
	prime_location TEXT NOT NULL,
	property_type  TEXT NOT NULL,
	status         TEXT NOT NULL,
	features       TEXT NOT NULL,
	price          DOUBLE PRECISION,
	error_kind     TEXT NOT NULL,
	error_message  TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS predictions_created_at_idx ON predictions (created_at)`,
}

const columns = `id, created_at, bedrooms, builder, locality, prime_location,
	property_type, status, features, price, error_kind, error_message`

// Store persists prediction records in SQLite or PostgreSQL
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open connects to the database and ensures the schema exists.
// driver is "sqlite3" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s history: %w", driver, err)
	}
	if driver == "sqlite3" {
		// sqlite serialises writers; a single connection also keeps :memory: databases intact
		db.SetMaxOpenConns(1)
	}

	s, err := NewStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open connection and ensures the schema exists
func NewStore(ctx context.Context, db *sqlx.DB) (*Store, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create history schema: %w", err)
		}
	}
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Save stores rec, assigning an ID and timestamp when they are empty.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	query := `INSERT INTO predictions (` + columns + `) VALUES (
		:id, :created_at, :bedrooms, :builder, :locality, :prime_location,
		:property_type, :status, :features, :price, :error_kind, :error_message)`

	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to save prediction %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a record by ID
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var rec Record
	query := s.db.Rebind(`SELECT ` + columns + ` FROM predictions WHERE id = ?`)
	if err := s.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load prediction %s: %w", id, err)
	}
	return &rec, nil
}

// Recent returns up to limit records, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}

	records := []Record{}
	query := s.db.Rebind(`SELECT ` + columns + ` FROM predictions ORDER BY created_at DESC, id LIMIT ?`)
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	return records, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
