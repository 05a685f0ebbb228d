package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps database operations
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// NewDB creates a new database connection
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}

	// Run migrations
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate runs database migrations
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS adventures (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		character_class TEXT NOT NULL,
		portrait_url TEXT NOT NULL DEFAULT '',
		base_stats_json TEXT NOT NULL,
		current_stats_json TEXT NOT NULL,
		world_description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		turn_count INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1,
		current_xp INTEGER NOT NULL DEFAULT 0,
		last_event_turn INTEGER NOT NULL DEFAULT 0,
		pending_event_id TEXT NOT NULL DEFAULT '',
		current_scene_hash TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		last_played_at INTEGER NOT NULL,
		deleted_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS turn_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		adventure_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		event_options_json TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (adventure_id) REFERENCES adventures(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS inventory (
		id TEXT PRIMARY KEY,
		adventure_id TEXT NOT NULL,
		name TEXT NOT NULL,
		name_key TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL,
		UNIQUE (adventure_id, name_key),
		FOREIGN KEY (adventure_id) REFERENCES adventures(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		adventure_id TEXT NOT NULL,
		term TEXT NOT NULL,
		term_key TEXT NOT NULL,
		definition TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (adventure_id, term_key),
		FOREIGN KEY (adventure_id) REFERENCES adventures(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS scene_backgrounds (
		id TEXT PRIMARY KEY,
		scene_hash TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		keywords_json TEXT NOT NULL,
		image_key TEXT NOT NULL,
		image_url TEXT NOT NULL,
		image_prompt TEXT NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		last_used_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adventures_user_id ON adventures(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_turn_log_adventure_id ON turn_log(adventure_id, seq);
	CREATE INDEX IF NOT EXISTS idx_inventory_adventure_id ON inventory(adventure_id);
	CREATE INDEX IF NOT EXISTS idx_glossary_adventure_id ON glossary(adventure_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
