package store

import (
	"context"
	"database/sql"
	"fmt"

	"driftpad/internal/note"
)

// PostgresStore keeps the authoritative note set in a single table. The
// last-write-wins comparison runs inside the upsert itself, so a stale
// concurrent write is a no-op at the row level.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS notes (
			id         text PRIMARY KEY,
			content    text NOT NULL DEFAULT '',
			updated_at bigint NOT NULL,
			is_deleted boolean NOT NULL DEFAULT false
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure notes table: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAll(ctx context.Context) ([]note.Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, updated_at, is_deleted FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []note.Note
	for rows.Next() {
		var n note.Note
		if err := rows.Scan(&n.ID, &n.Content, &n.UpdatedAt, &n.IsDeleted); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

const upsertNote = `
	INSERT INTO notes (id, content, updated_at, is_deleted)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at, is_deleted = EXCLUDED.is_deleted
	WHERE notes.updated_at < EXCLUDED.updated_at
`

func (s *PostgresStore) UpsertBatch(ctx context.Context, notes []note.Note) error {
	if len(notes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertNote)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, n := range notes {
		if _, err := stmt.ExecContext(ctx, n.ID, n.Content, n.UpdatedAt, n.IsDeleted); err != nil {
			return fmt.Errorf("upsert note %s: %w", n.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
