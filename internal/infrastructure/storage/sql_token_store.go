package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"TasteClient/internal/ports"
)

// Supported SQL dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const stateTable = "client_state"

// SQLTokenStore persists client state rows in Postgres or SQLite.
type SQLTokenStore struct {
	db      *sql.DB
	dialect string
	builder sq.StatementBuilderType
}

var _ ports.TokenPersister = (*SQLTokenStore)(nil)

// OpenSQL opens a database handle for the given dialect and verifies it answers.
func OpenSQL(ctx context.Context, dialect, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is empty", dialect)
	}

	var driver string
	switch dialect {
	case DialectPostgres:
		driver = "postgres"
	case DialectSQLite:
		driver = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One writer keeps sqlite from reporting SQLITE_BUSY under concurrent saves.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, nil
}

// NewSQLTokenStore wires a sql.DB implementation for the given dialect.
func NewSQLTokenStore(db *sql.DB, dialect string) (*SQLTokenStore, error) {
	if db == nil {
		return nil, errors.New("sql token store: nil db")
	}

	builder := sq.StatementBuilder
	switch dialect {
	case DialectPostgres:
		builder = builder.PlaceholderFormat(sq.Dollar)
	case DialectSQLite:
		builder = builder.PlaceholderFormat(sq.Question)
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	return &SQLTokenStore{db: db, dialect: dialect, builder: builder}, nil
}

// EnsureSchema creates the state table. Safe to call multiple times.
func (s *SQLTokenStore) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + stateTable + ` (
              state_key TEXT PRIMARY KEY,
              state_value TEXT NOT NULL,
              updated_at TIMESTAMP NOT NULL
              )`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", stateTable, err)
	}
	return nil
}

// Load returns the value stored under key.
func (s *SQLTokenStore) Load(ctx context.Context, key string) (string, bool, error) {
	query, args, err := s.builder.
		Select("state_value").
		From(stateTable).
		Where(sq.Eq{"state_key": key}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build select: %w", err)
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}

	return value, true, nil
}

// Save upserts the value under key.
func (s *SQLTokenStore) Save(ctx context.Context, key, value string) error {
	query, args, err := s.builder.
		Insert(stateTable).
		Columns("state_key", "state_value", "updated_at").
		Values(key, value, time.Now().UTC()).
		Suffix(`ON CONFLICT (state_key) DO UPDATE
              SET state_value = EXCLUDED.state_value,
                  updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLTokenStore) Delete(ctx context.Context, key string) error {
	query, args, err := s.builder.
		Delete(stateTable).
		Where(sq.Eq{"state_key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
