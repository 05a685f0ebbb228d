package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qninhdt/ai-adventure/internal/scene"
)

const backgroundColumns = `id, scene_hash, category, keywords_json, image_key, image_url,
	image_prompt, usage_count, created_at, last_used_at`

func scanBackground(row scanner) (*scene.Background, error) {
	var (
		bg                scene.Background
		keywords          string
		created, lastUsed int64
	)
	err := row.Scan(&bg.ID, &bg.SceneHash, &bg.Category, &keywords, &bg.ImageKey, &bg.ImageURL,
		&bg.ImagePrompt, &bg.UsageCount, &created, &lastUsed)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(keywords), &bg.Keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords: %w", err)
	}
	bg.CreatedAt = fromMillis(created)
	bg.LastUsedAt = fromMillis(lastUsed)
	return &bg, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getBackground(ctx context.Context, q rowQuerier, hash string) (*scene.Background, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+backgroundColumns+` FROM scene_backgrounds WHERE scene_hash = ?`, hash)
	bg, err := scanBackground(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bg, true, nil
}

// GetBackground looks a background up by scene hash
func (db *DB) GetBackground(ctx context.Context, hash string) (*scene.Background, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return getBackground(ctx, db.conn, hash)
}

// CreateBackground inserts a background unless its hash already exists.
// On conflict the stored row is returned with created=false.
func (db *DB) CreateBackground(ctx context.Context, bg *scene.Background) (*scene.Background, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	keywords, err := marshalJSON(bg.Keywords)
	if err != nil {
		return nil, false, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO scene_backgrounds (`+backgroundColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, bg.ID, bg.SceneHash, bg.Category, keywords, bg.ImageKey, bg.ImageURL,
		bg.ImagePrompt, bg.UsageCount, millis(bg.CreatedAt), millis(bg.LastUsedAt))
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert background: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	stored, found, err := getBackground(ctx, tx, bg.SceneHash)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, fmt.Errorf("background %s vanished after insert", bg.SceneHash)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return stored, n > 0, nil
}

// TouchBackground records one more use of a background
func (db *DB) TouchBackground(ctx context.Context, hash string, at time.Time) (*scene.Background, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE scene_backgrounds SET usage_count = usage_count + 1, last_used_at = ? WHERE scene_hash = ?
	`, millis(at), hash)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, fmt.Errorf("background %s not found", hash)
	}

	bg, _, err := getBackground(ctx, tx, hash)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return bg, nil
}
