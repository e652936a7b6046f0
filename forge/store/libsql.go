package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/promptforge/promptforge/forge/convstate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// LibSQLStore persists snapshots in a libSQL database.
type LibSQLStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenLibSQL opens (or creates) the database at dsn and runs migrations.
// The dsn is passed to the libsql driver as-is, e.g. "file:forge.db".
func OpenLibSQL(dsn string, logger zerolog.Logger) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	store := &LibSQLStore{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewLibSQLStore wraps an existing database handle and runs migrations.
func NewLibSQLStore(db *sql.DB, logger zerolog.Logger) (*LibSQLStore, error) {
	store := &LibSQLStore{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *LibSQLStore) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	s.logger.Debug().Msg("conversation store migrated")
	return nil
}

// Close releases the underlying database handle.
func (s *LibSQLStore) Close() error { return s.db.Close() }

func (s *LibSQLStore) Save(ctx context.Context, id string, state *convstate.ConversationState) error {
	data, err := convstate.EncodeSnapshot(state)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO conversations (id, snapshot, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, id, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("save conversation %s: %w", id, err)
	}
	return nil
}

func (s *LibSQLStore) Load(ctx context.Context, id string) (*convstate.ConversationState, error) {
	const query = `SELECT snapshot FROM conversations WHERE id = ?`
	var data string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return convstate.DecodeSnapshot([]byte(data))
}

func (s *LibSQLStore) List(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM conversations ORDER BY updated_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return ids, nil
}

func (s *LibSQLStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM conversations WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

var _ ConversationStore = (*LibSQLStore)(nil)
