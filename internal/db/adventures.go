package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qninhdt/ai-adventure/internal/game"
)

var _ game.Store = (*DB)(nil)

const adventureColumns = `id, user_id, title, character_class, portrait_url, base_stats_json,
	current_stats_json, world_description, status, turn_count, level, current_xp,
	last_event_turn, pending_event_id, current_scene_hash, created_at, last_played_at, deleted_at`

func scanAdventure(row scanner) (*game.Adventure, error) {
	var (
		a                     game.Adventure
		base, current, status string
		created, played       int64
		deleted               sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Class, &a.PortraitURL, &base,
		&current, &a.WorldDescription, &status, &a.TurnCount, &a.Level, &a.CurrentXP,
		&a.LastEventTurn, &a.PendingEventID, &a.CurrentSceneHash, &created, &played, &deleted)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(base), &a.BaseStats); err != nil {
		return nil, fmt.Errorf("failed to decode base stats: %w", err)
	}
	if err := json.Unmarshal([]byte(current), &a.CurrentStats); err != nil {
		return nil, fmt.Errorf("failed to decode current stats: %w", err)
	}
	a.Status = game.Status(status)
	a.CreatedAt = fromMillis(created)
	a.LastPlayedAt = fromMillis(played)
	if deleted.Valid {
		t := fromMillis(deleted.Int64)
		a.DeletedAt = &t
	}
	return &a, nil
}

// CreateAdventure saves a new adventure together with its opening log entry
func (db *DB) CreateAdventure(ctx context.Context, a *game.Adventure, world *game.LogEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	base, err := marshalJSON(a.BaseStats)
	if err != nil {
		return err
	}
	current, err := marshalJSON(a.CurrentStats)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO adventures (`+adventureColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, a.ID, a.UserID, a.Title, a.Class, a.PortraitURL, base,
		current, a.WorldDescription, string(a.Status), a.TurnCount, a.Level, a.CurrentXP,
		a.LastEventTurn, a.PendingEventID, a.CurrentSceneHash, millis(a.CreatedAt), millis(a.LastPlayedAt))
	if err != nil {
		return fmt.Errorf("failed to insert adventure: %w", err)
	}

	if world != nil {
		if err := insertLogEntry(ctx, tx, world); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetAdventure loads an adventure; soft-deleted adventures are not found
func (db *DB) GetAdventure(ctx context.Context, id string) (*game.Adventure, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRowContext(ctx, `
		SELECT `+adventureColumns+` FROM adventures WHERE id = ? AND deleted_at IS NULL
	`, id)
	a, err := scanAdventure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// ListAdventures returns a user's adventures, newest first
func (db *DB) ListAdventures(ctx context.Context, userID string, status game.Status) ([]*game.Adventure, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	query := `SELECT ` + adventureColumns + ` FROM adventures WHERE user_id = ? AND deleted_at IS NULL`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	adventures := []*game.Adventure{}
	for rows.Next() {
		a, err := scanAdventure(rows)
		if err != nil {
			return nil, err
		}
		adventures = append(adventures, a)
	}
	return adventures, rows.Err()
}

// UpdateAdventureStatus sets the status and refreshes last played
func (db *DB) UpdateAdventureStatus(ctx context.Context, id string, status game.Status, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE adventures SET status = ?, last_played_at = ? WHERE id = ? AND deleted_at IS NULL
	`, string(status), millis(at), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateAdventureStats writes the character sheet after a turn
func (db *DB) UpdateAdventureStats(ctx context.Context, id string, u game.StatsUpdate) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	base, err := marshalJSON(u.Base)
	if err != nil {
		return err
	}
	current, err := marshalJSON(u.Current)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE adventures SET base_stats_json = ?, current_stats_json = ?, level = ?, current_xp = ?
		WHERE id = ? AND deleted_at IS NULL
	`, base, current, u.Level, u.XP, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SoftDeleteAdventure hides an adventure from every read
func (db *DB) SoftDeleteAdventure(ctx context.Context, id string, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE adventures SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, millis(at), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetAdventureScene points the adventure at a scene background
func (db *DB) SetAdventureScene(ctx context.Context, adventureID, hash string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE adventures SET current_scene_hash = ? WHERE id = ? AND deleted_at IS NULL
	`, hash, adventureID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return game.ErrNotFound
	}
	return nil
}
