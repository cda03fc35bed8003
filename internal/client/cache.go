package client

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"driftpad/internal/note"
)

// cacheKey is the fixed key the serialized note set lives under.
const cacheKey = "notes-offline"

// SQLiteCache stores the note cache as a single JSON blob in a local sqlite
// file, keeping local persistence durable across restarts without any schema
// beyond one key-value table.
type SQLiteCache struct {
	db *sql.DB
}

func OpenCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache (
			key   text NOT NULL PRIMARY KEY,
			value text NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure cache table: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Load() ([]note.Note, error) {
	var raw string
	err := c.db.QueryRow(`SELECT value FROM cache WHERE key = ?`, cacheKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}

	var notes []note.Note
	if err := json.Unmarshal([]byte(raw), &notes); err != nil {
		return nil, fmt.Errorf("parse cache: %w", err)
	}
	return notes, nil
}

func (c *SQLiteCache) Save(notes []note.Note) error {
	raw, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if _, err := c.db.Exec(`
		INSERT INTO cache (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, cacheKey, string(raw)); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
